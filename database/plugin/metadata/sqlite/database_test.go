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

package sqlite_test

import (
	"math"
	"strings"
	"testing"

	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/plugin"
	"github.com/blinklabs-io/vaultguard/database/plugin/metadata"
	"github.com/blinklabs-io/vaultguard/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, opts ...sqlite.SqliteOptionFunc) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testProposal(id uint64) (*models.Proposal, []models.ProposalTransaction) {
	return &models.Proposal{
			ProposalID:      types.Uint64(id),
			Proposer:        "alice",
			Strategy:        "linear",
			SubmittedAt:     types.Uint64(100 + id),
			TimelockPeriod:  60,
			ExecutionPeriod: 120,
		}, []models.ProposalTransaction{
			{Hash: make([]byte, 32), Target: "treasury", Value: 10, Payload: []byte{0x01}},
			{Hash: make([]byte, 32), Target: "weight", Value: 0},
		}
}

func TestAddAndGetProposal(t *testing.T) {
	store := setupTestStore(t)
	proposal, txs := testProposal(0)
	require.NoError(t, store.AddProposal(proposal, txs, nil))

	got, err := store.GetProposal(0, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Proposer)
	assert.Equal(t, 2, got.TxCount)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "treasury", got.Transactions[0].Target)
	assert.Equal(t, 1, got.Transactions[1].TxIndex)

	_, err = store.GetProposal(99, nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestGetProposalsPaging(t *testing.T) {
	store := setupTestStore(t)
	for i := range uint64(5) {
		p, txs := testProposal(i)
		require.NoError(t, store.AddProposal(p, txs, nil))
	}
	all, err := store.GetProposals(0, 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	page, err := store.GetProposals(2, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, types.Uint64(2), page[0].ProposalID)
	assert.Equal(t, types.Uint64(3), page[1].ProposalID)
}

func TestTransactionRollback(t *testing.T) {
	store := setupTestStore(t)
	txn := store.Transaction()
	p, txs := testProposal(7)
	require.NoError(t, store.AddProposal(p, txs, txn))
	require.NoError(t, txn.Rollback())
	// Finished txn can't be reused
	require.Error(t, store.AddProposalExecution(&models.ProposalExecution{}, txn))

	_, err := store.GetProposal(7, nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)

	txn = store.Transaction()
	p, txs = testProposal(7)
	require.NoError(t, store.AddProposal(p, txs, txn))
	require.NoError(t, txn.Commit())
	_, err = store.GetProposal(7, nil)
	require.NoError(t, err)
}

func TestProposalExecutions(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.AddProposalExecution(&models.ProposalExecution{
		ProposalID: 1, Executor: "bob", FirstIndex: 0, Count: 2, ExecutedAt: 500,
	}, nil))
	require.NoError(t, store.AddProposalExecution(&models.ProposalExecution{
		ProposalID: 1, Executor: "bob", FirstIndex: 2, Count: 1, ExecutedAt: 510,
	}, nil))
	execs, err := store.GetProposalExecutions(1, nil)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, 2, execs[1].FirstIndex)
}

func TestOverrideRecords(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.AddOverrideVote(&models.OverrideVote{
		Kind: "veto", Nonce: 1, Voter: "carol", Weight: 40, VotedAt: 10,
	}, nil))
	// Same voter in the same round is a unique violation
	require.Error(t, store.AddOverrideVote(&models.OverrideVote{
		Kind: "veto", Nonce: 1, Voter: "carol", Weight: 40, VotedAt: 11,
	}, nil))
	require.NoError(t, store.AddOverrideVote(&models.OverrideVote{
		Kind: "freeze", Nonce: 1, Voter: "carol", Weight: 40, VotedAt: 11,
	}, nil))
	votes, err := store.GetOverrideVotes("veto", 1, nil)
	require.NoError(t, err)
	require.Len(t, votes, 1)

	require.NoError(t, store.AddOverrideActivation(&models.OverrideActivation{
		Kind: "freeze", Nonce: 1, VoteCount: 40, Threshold: 30, ActivatedAt: 11,
	}, nil))
	acts, err := store.GetOverrideActivations("freeze", nil)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	acts, err = store.GetOverrideActivations("veto", nil)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestSeparateInMemoryStores(t *testing.T) {
	a := setupTestStore(t)
	b := setupTestStore(t)
	p, txs := testProposal(0)
	require.NoError(t, a.AddProposal(p, txs, nil))
	_, err := b.GetProposal(0, nil)
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestCommitTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)
	require.NoError(t, store.SetCommitTimestamp(42, nil))
	require.NoError(t, store.SetCommitTimestamp(43, nil))
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(43), ts)
}

func TestRecordMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := setupTestStore(t, sqlite.WithPromRegistry(reg))
	p, txs := testProposal(0)
	txn := store.Transaction()
	require.NoError(t, store.AddProposal(p, txs, txn))
	require.NoError(t, txn.Commit())
	expected := `
# HELP database_metadata_records_written_total number of archive records written, by table
# TYPE database_metadata_records_written_total counter
database_metadata_records_written_total{table="proposal"} 1
database_metadata_records_written_total{table="proposal_transaction"} 2
`
	require.NoError(t, testutil.GatherAndCompare(
		reg,
		strings.NewReader(expected),
		"database_metadata_records_written_total",
	))
}

func TestOnDiskStore(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.New(sqlite.WithDataDir(dir))
	require.NoError(t, err)
	p, txs := testProposal(3)
	require.NoError(t, store.AddProposal(p, txs, nil))
	require.NoError(t, store.Close())

	store, err = sqlite.New(sqlite.WithDataDir(dir))
	require.NoError(t, err)
	defer store.Close()
	got, err := store.GetProposal(3, nil)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, 2)
}

func TestRegisteredPlugin(t *testing.T) {
	store, err := metadata.New("sqlite", plugin.PluginOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Stop())
}

func TestFullRangeUint64Columns(t *testing.T) {
	store := setupTestStore(t)
	proposal, txs := testProposal(math.MaxUint64)
	proposal.TimelockPeriod = math.MaxUint64
	txs[0].Value = math.MaxUint64
	require.NoError(t, store.AddProposal(proposal, txs, nil))
	got, err := store.GetProposal(math.MaxUint64, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Uint64(math.MaxUint64), got.TimelockPeriod)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, types.Uint64(math.MaxUint64), got.Transactions[0].Value)

	require.NoError(t, store.AddOverrideVote(&models.OverrideVote{
		Kind: "veto", Nonce: 1 << 63, Voter: "whale", Weight: math.MaxUint64, VotedAt: 1,
	}, nil))
	votes, err := store.GetOverrideVotes("veto", 1<<63, nil)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, types.Uint64(math.MaxUint64), votes[0].Weight)
}

func TestGetProposalsNumericOrder(t *testing.T) {
	store := setupTestStore(t)
	for i := range uint64(12) {
		p, txs := testProposal(i)
		require.NoError(t, store.AddProposal(p, txs, nil))
	}
	all, err := store.GetProposals(0, 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i, row := range all {
		assert.Equal(t, types.Uint64(i), row.ProposalID) //nolint:gosec
	}
}
