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

package strategy_test

import (
	"math"
	"testing"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linearEnv struct {
	db     *database.Database
	clock  *clock.Manual
	ledger *weight.Ledger
	linear *strategy.Linear
}

func newLinearEnv(t *testing.T, quorum uint64, basis uint64) *linearEnv {
	t.Helper()
	db, err := database.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clk := clock.NewManual(1000)
	ledger := weight.NewLedger(weight.LedgerConfig{Clock: clk})
	linear, err := strategy.NewLinear(strategy.LinearConfig{
		Clock:        clk,
		WeightSource: ledger,
		VotingPeriod: 100,
		Quorum:       quorum,
		Basis:        basis,
	})
	require.NoError(t, err)
	env := &linearEnv{db: db, clock: clk, ledger: ledger, linear: linear}
	env.do(t, func(txn *database.Txn) error {
		for voter, amount := range map[common.Address]uint64{"alice": 60, "bob": 30, "carol": 10} {
			if err := ledger.Mint(txn, voter, amount); err != nil {
				return err
			}
		}
		return nil
	})
	clk.Advance(1)
	return env
}

func (e *linearEnv) do(t *testing.T, fn func(txn *database.Txn) error) {
	t.Helper()
	require.NoError(t, e.db.Transaction(true).Do(fn))
}

func (e *linearEnv) state(t *testing.T, id uint64) (bool, bool) {
	t.Helper()
	txn := e.db.Transaction(false)
	defer txn.Release()
	passed, err := e.linear.IsPassed(txn, id)
	require.NoError(t, err)
	failed, err := e.linear.IsFailed(txn, id)
	require.NoError(t, err)
	return passed, failed
}

func TestLinearPasses(t *testing.T) {
	env := newLinearEnv(t, 50, 500_000)
	env.do(t, func(txn *database.Txn) error {
		if err := env.linear.InitializeProposal(txn, 0); err != nil {
			return err
		}
		if err := env.linear.Vote(txn, 0, "alice", strategy.ChoiceYes); err != nil {
			return err
		}
		return env.linear.Vote(txn, 0, "bob", strategy.ChoiceNo)
	})
	passed, failed := env.state(t, 0)
	assert.False(t, passed)
	assert.False(t, failed)

	// Still open at exactly EndsAt
	env.clock.Set(1101)
	passed, failed = env.state(t, 0)
	assert.False(t, passed)
	assert.False(t, failed)

	env.clock.Set(1102)
	passed, failed = env.state(t, 0)
	assert.True(t, passed)
	assert.False(t, failed)

	txn := env.db.Transaction(false)
	defer txn.Release()
	endsAt, err := env.linear.VotingEndsAt(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1101), endsAt)
	tally, err := env.linear.Tally(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), tally.Yes)
	assert.Equal(t, uint64(30), tally.No)
}

func TestLinearFailsOnQuorum(t *testing.T) {
	env := newLinearEnv(t, 50, 500_000)
	env.do(t, func(txn *database.Txn) error {
		if err := env.linear.InitializeProposal(txn, 0); err != nil {
			return err
		}
		return env.linear.Vote(txn, 0, "bob", strategy.ChoiceYes)
	})
	env.clock.Advance(200)
	passed, failed := env.state(t, 0)
	assert.False(t, passed)
	assert.True(t, failed)
}

func TestLinearAbstainCountsTowardQuorumOnly(t *testing.T) {
	env := newLinearEnv(t, 50, 500_000)
	env.do(t, func(txn *database.Txn) error {
		if err := env.linear.InitializeProposal(txn, 0); err != nil {
			return err
		}
		if err := env.linear.Vote(txn, 0, "alice", strategy.ChoiceAbstain); err != nil {
			return err
		}
		return env.linear.Vote(txn, 0, "carol", strategy.ChoiceYes)
	})
	env.clock.Advance(200)
	passed, _ := env.state(t, 0)
	assert.True(t, passed)
}

func TestLinearBasisIsStrict(t *testing.T) {
	// 30 yes vs 30 no at a 50% basis is not a majority
	env := newLinearEnv(t, 1, 500_000)
	env.do(t, func(txn *database.Txn) error {
		if err := env.ledger.Transfer(txn, "alice", "dave", 30); err != nil {
			return err
		}
		return nil
	})
	env.clock.Advance(1)
	env.do(t, func(txn *database.Txn) error {
		if err := env.linear.InitializeProposal(txn, 0); err != nil {
			return err
		}
		if err := env.linear.Vote(txn, 0, "bob", strategy.ChoiceYes); err != nil {
			return err
		}
		return env.linear.Vote(txn, 0, "dave", strategy.ChoiceNo)
	})
	env.clock.Advance(200)
	passed, failed := env.state(t, 0)
	assert.False(t, passed)
	assert.True(t, failed)
}

func TestLinearVoteErrors(t *testing.T) {
	env := newLinearEnv(t, 50, 500_000)
	env.do(t, func(txn *database.Txn) error {
		return env.linear.InitializeProposal(txn, 0)
	})
	// Weight acquired after voting opened does not count
	env.do(t, func(txn *database.Txn) error {
		return env.ledger.Mint(txn, "eve", 1000)
	})
	txn := env.db.Transaction(true)
	defer txn.Release()
	require.ErrorIs(t, env.linear.InitializeProposal(txn, 0), strategy.ErrProposalExists)
	require.ErrorIs(t, env.linear.Vote(txn, 0, "eve", strategy.ChoiceYes), strategy.ErrNoVotes)
	require.NoError(t, env.linear.Vote(txn, 0, "alice", strategy.ChoiceYes))
	require.ErrorIs(t, env.linear.Vote(txn, 0, "alice", strategy.ChoiceNo), strategy.ErrAlreadyVoted)
	require.ErrorIs(t, env.linear.Vote(txn, 1, "alice", strategy.ChoiceNo), strategy.ErrUnknownProposal)
	require.ErrorIs(t, env.linear.Vote(txn, 0, "bob", strategy.Choice(7)), strategy.ErrInvalidChoice)
	env.clock.Advance(500)
	require.ErrorIs(t, env.linear.Vote(txn, 0, "bob", strategy.ChoiceNo), strategy.ErrVotingClosed)
}

func TestLinearSeededWeightFallsBack(t *testing.T) {
	env := newLinearEnv(t, 5, 500_000)
	env.do(t, func(txn *database.Txn) error {
		if err := env.ledger.SeedBalance(txn, "frank", 7); err != nil {
			return err
		}
		if err := env.linear.InitializeProposal(txn, 0); err != nil {
			return err
		}
		return env.linear.Vote(txn, 0, "frank", strategy.ChoiceYes)
	})
	txn := env.db.Transaction(false)
	defer txn.Release()
	tally, err := env.linear.Tally(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tally.Yes)
}

func TestNewLinearValidation(t *testing.T) {
	ledger := weight.NewLedger(weight.LedgerConfig{})
	_, err := strategy.NewLinear(strategy.LinearConfig{WeightSource: ledger})
	require.ErrorIs(t, err, strategy.ErrInvalidParameter)
	_, err = strategy.NewLinear(strategy.LinearConfig{
		WeightSource: ledger,
		VotingPeriod: 1,
		Basis:        strategy.BasisDenominator,
	})
	require.ErrorIs(t, err, strategy.ErrInvalidParameter)
	_, err = strategy.NewLinear(strategy.LinearConfig{VotingPeriod: 1})
	require.ErrorIs(t, err, strategy.ErrInvalidParameter)
}

func TestParseChoice(t *testing.T) {
	c, err := strategy.ParseChoice("YES")
	require.NoError(t, err)
	assert.Equal(t, strategy.ChoiceYes, c)
	_, err = strategy.ParseChoice("maybe")
	require.ErrorIs(t, err, strategy.ErrInvalidChoice)
}

func TestSaturatingAdd(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), common.SaturatingAdd(math.MaxUint64-1, 5))
	assert.Equal(t, uint64(7), common.SaturatingAdd(3, 4))
}
