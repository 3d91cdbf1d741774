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

package weight_test

import (
	"context"
	"strings"
	"testing"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *database.Database
	clock  *clock.Manual
	ledger *weight.Ledger
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clk := clock.NewManual(1000)
	reg := prometheus.NewRegistry()
	return &testEnv{
		db:    db,
		clock: clk,
		reg:   reg,
		ledger: weight.NewLedger(weight.LedgerConfig{
			Clock:        clk,
			PromRegistry: reg,
		}),
	}
}

func (e *testEnv) update(t *testing.T, fn func(txn *database.Txn) error) {
	t.Helper()
	require.NoError(t, e.db.Transaction(true).Do(fn))
}

func TestWeightAtNoCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	env.update(t, func(txn *database.Txn) error {
		return env.ledger.SeedBalance(txn, "alice", 50)
	})
	txn := env.db.Transaction(false)
	defer txn.Release()
	_, err := env.ledger.WeightAt(txn, "alice", 2000)
	require.ErrorIs(t, err, common.ErrNoCheckpoint)
	cur, err := env.ledger.CurrentWeight(txn, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), cur)
	total, err := env.ledger.TotalSupply(txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), total)
}

func TestWeightAtHistory(t *testing.T) {
	env := newTestEnv(t)
	env.update(t, func(txn *database.Txn) error {
		return env.ledger.Mint(txn, "alice", 100)
	})
	env.clock.Set(1010)
	env.update(t, func(txn *database.Txn) error {
		return env.ledger.Transfer(txn, "alice", "bob", 30)
	})
	env.clock.Set(1020)
	env.update(t, func(txn *database.Txn) error {
		return env.ledger.Burn(txn, "bob", 10)
	})

	txn := env.db.Transaction(false)
	defer txn.Release()
	tests := []struct {
		voter common.Address
		ts    uint64
		want  uint64
	}{
		{voter: "alice", ts: 999, want: 0},
		{voter: "alice", ts: 1000, want: 100},
		{voter: "alice", ts: 1009, want: 100},
		{voter: "alice", ts: 1010, want: 70},
		{voter: "bob", ts: 1009, want: 0},
		{voter: "bob", ts: 1015, want: 30},
		{voter: "bob", ts: 5000, want: 20},
	}
	for _, test := range tests {
		got, err := env.ledger.WeightAt(txn, test.voter, test.ts)
		require.NoError(t, err)
		assert.Equal(t, test.want, got, "%s at %d", test.voter, test.ts)
	}
	ckpts, err := env.ledger.Checkpoints(txn, "bob")
	require.NoError(t, err)
	assert.Equal(
		t,
		[]weight.Checkpoint{{Timestamp: 1010, Balance: 30}, {Timestamp: 1020, Balance: 20}},
		ckpts,
	)
	total, err := env.ledger.TotalSupply(txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), total)
	expected := `
# HELP weight_total_supply total voting weight in existence
# TYPE weight_total_supply gauge
weight_total_supply 90
`
	require.NoError(t, testutil.GatherAndCompare(env.reg, strings.NewReader(expected), "weight_total_supply"))
}

func TestVoterPrefixIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.update(t, func(txn *database.Txn) error {
		return env.ledger.Mint(txn, "al", 5)
	})
	txn := env.db.Transaction(false)
	defer txn.Release()
	_, err := env.ledger.WeightAt(txn, "a", 2000)
	require.ErrorIs(t, err, common.ErrNoCheckpoint)
}

func TestBurnInsufficient(t *testing.T) {
	env := newTestEnv(t)
	err := env.db.Transaction(true).Do(func(txn *database.Txn) error {
		return env.ledger.Burn(txn, "nobody", 1)
	})
	require.ErrorIs(t, err, weight.ErrInsufficientBalance)
	err = env.db.Transaction(true).Do(func(txn *database.Txn) error {
		return env.ledger.Mint(txn, "x", 0)
	})
	require.ErrorIs(t, err, weight.ErrZeroAmount)
}

func TestLedgerCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mint, err := weight.MintPayload("carol", 40)
	require.NoError(t, err)
	transfer, err := weight.TransferPayload("carol", "dave", 15)
	require.NoError(t, err)
	env.update(t, func(txn *database.Txn) error {
		if err := env.ledger.Call(ctx, txn, "vault", 0, mint, common.CallKindCall); err != nil {
			return err
		}
		return env.ledger.Call(ctx, txn, "vault", 0, transfer, common.CallKindCall)
	})
	txn := env.db.Transaction(true)
	defer txn.Release()
	carol, err := env.ledger.CurrentWeight(txn, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(25), carol)
	dave, err := env.ledger.CurrentWeight(txn, "dave")
	require.NoError(t, err)
	assert.Equal(t, uint64(15), dave)

	require.ErrorIs(
		t,
		env.ledger.Call(ctx, txn, "vault", 1, mint, common.CallKindCall),
		weight.ErrUnexpectedValue,
	)
	require.ErrorIs(
		t,
		env.ledger.Call(ctx, txn, "vault", 0, mint, common.CallKindDelegateCall),
		weight.ErrDelegateCall,
	)
	bad, err := weight.Op{Op: 9}.Encode()
	require.NoError(t, err)
	require.ErrorIs(t, env.ledger.Call(ctx, txn, "vault", 0, bad, common.CallKindCall), weight.ErrUnknownOp)
	require.Error(t, env.ledger.Call(ctx, txn, "vault", 0, []byte{0xff}, common.CallKindCall))
}
