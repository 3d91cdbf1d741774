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
	"testing"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualResolve(t *testing.T) {
	db, err := database.New(nil)
	require.NoError(t, err)
	defer db.Close()
	clk := clock.NewManual(500)
	manual := strategy.NewManual(strategy.ManualConfig{Clock: clk, Owner: "owner"})

	txn := db.Transaction(true)
	defer txn.Release()
	require.NoError(t, manual.InitializeProposal(txn, 0))
	require.NoError(t, manual.InitializeProposal(txn, 1))

	passed, err := manual.IsPassed(txn, 0)
	require.NoError(t, err)
	assert.False(t, passed)
	failed, err := manual.IsFailed(txn, 0)
	require.NoError(t, err)
	assert.False(t, failed)

	require.ErrorIs(t, manual.Resolve(txn, "mallory", 0, true), strategy.ErrUnauthorized)
	clk.Set(510)
	require.NoError(t, manual.Resolve(txn, "owner", 0, true))
	require.ErrorIs(t, manual.Resolve(txn, "owner", 0, false), strategy.ErrAlreadyResolved)
	require.NoError(t, manual.Resolve(txn, "owner", 1, false))
	require.ErrorIs(t, manual.Resolve(txn, "owner", 2, false), strategy.ErrUnknownProposal)

	passed, err = manual.IsPassed(txn, 0)
	require.NoError(t, err)
	assert.True(t, passed)
	endsAt, err := manual.VotingEndsAt(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(510), endsAt)
	failed, err = manual.IsFailed(txn, 1)
	require.NoError(t, err)
	assert.True(t, failed)
}
