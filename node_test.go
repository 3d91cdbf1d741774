// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vaultguard_test

import (
	"context"
	"testing"

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/governor"
	"github.com/blinklabs-io/vaultguard/guard"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const start uint64 = 1_700_000_000

func newTestNode(t *testing.T, opts ...vaultguard.ConfigOptionFunc) (*vaultguard.Node, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	opts = append(
		[]vaultguard.ConfigOptionFunc{
			vaultguard.WithOwner("admin"),
			vaultguard.WithClock(clk),
			vaultguard.WithPrometheusRegistry(prometheus.NewRegistry()),
			vaultguard.WithTimelockPeriod(100),
			vaultguard.WithExecutionPeriod(100),
		},
		opts...,
	)
	n, err := vaultguard.New(vaultguard.NewConfig(opts...))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	return n, clk
}

func TestNodeLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	n, err := vaultguard.New(vaultguard.NewConfig(vaultguard.WithOwner("admin")))
	require.NoError(t, err)
	require.ErrorIs(t, n.View(func(*database.Txn) error { return nil }), vaultguard.ErrNotStarted)
	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Start(context.Background()))
	require.NotNil(t, n.Governor())
	require.NotNil(t, n.Vault())
	assert.Nil(t, n.Veto())
	assert.Nil(t, n.Linear())
	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
	require.ErrorIs(t, n.Update(func(*database.Txn) error { return nil }), vaultguard.ErrNotStarted)
}

// A proposal that mints voting weight through the vault
func TestNodeProposalMintsWeight(t *testing.T) {
	n, clk := newTestNode(t, vaultguard.WithProposers("alice"))
	defer n.Stop()
	payload, err := weight.MintPayload("bob", 250)
	require.NoError(t, err)
	txs := []common.Transaction{{Target: vaultguard.LedgerAddress, Payload: payload}}

	var id uint64
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		var err error
		id, err = n.Governor().SubmitProposal(context.Background(), txn, txs, "mint", "alice", nil)
		return err
	}))
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		return n.Manual().Resolve(txn, "admin", id, true)
	}))
	clk.Advance(100)
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		return n.Governor().ExecuteProposal(context.Background(), txn, id, txs)
	}))
	require.NoError(t, n.View(func(txn *database.Txn) error {
		w, err := n.Ledger().CurrentWeight(txn, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(250), w)
		state, err := n.Governor().ProposalState(txn, id)
		require.NoError(t, err)
		assert.Equal(t, governor.StateExecuted, state)
		return nil
	}))
}

func TestNodeFreezeBlocksDirectCalls(t *testing.T) {
	n, _ := newTestNode(t, vaultguard.WithFreeze(vaultguard.OverrideConfig{
		Owner:          "parent",
		VotesThreshold: 10,
		RoundPeriod:    60,
	}))
	defer n.Stop()
	require.NotNil(t, n.Override("freeze"))
	require.Nil(t, n.Override("veto"))
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		if err := n.Vault().Deposit(txn, "treasurer", 100); err != nil {
			return err
		}
		if err := n.Ledger().SeedBalance(txn, "parent-voter", 10); err != nil {
			return err
		}
		_, err := n.Freeze().CastVote(txn, "parent-voter")
		return err
	}))
	err := n.Update(func(txn *database.Txn) error {
		_, err := n.Vault().Execute(
			context.Background(),
			txn,
			common.Transaction{Target: "alice", Value: 1},
			common.DispatchContext{Caller: "admin"},
		)
		return err
	})
	require.ErrorIs(t, err, guard.ErrDAOFrozen)
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		return n.Freeze().Lift(txn, "parent")
	}))
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		ok, err := n.Vault().Execute(
			context.Background(),
			txn,
			common.Transaction{Target: "alice", Value: 1},
			common.DispatchContext{Caller: "admin"},
		)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		return nil
	}))
}

func TestNodeOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	n, _ := newTestNode(t, vaultguard.WithDatabasePath(dir))
	require.NoError(t, n.Update(func(txn *database.Txn) error {
		return n.Vault().Deposit(txn, "treasurer", 77)
	}))
	require.NoError(t, n.Stop())

	n2, _ := newTestNode(t, vaultguard.WithDatabasePath(dir))
	defer n2.Stop()
	require.NoError(t, n2.View(func(txn *database.Txn) error {
		bal, err := n2.Vault().Balance(txn)
		require.NoError(t, err)
		assert.Equal(t, uint64(77), bal)
		return nil
	}))
}
