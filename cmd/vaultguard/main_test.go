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

package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	metadata, txs, err := parseBatch([]byte(`
metadata: pay the auditors
transactions:
  - target: auditor
    value: 40
  - target: ledger
    ledger:
      op: mint
      to: alice
      amount: 5
  - target: registry
    payload: deadbeef
    kind: delegatecall
`))
	require.NoError(t, err)
	assert.Equal(t, "pay the auditors", metadata)
	require.Len(t, txs, 3)
	assert.Equal(t, common.Transaction{Target: "auditor", Value: 40}, txs[0])
	mint, err := weight.MintPayload("alice", 5)
	require.NoError(t, err)
	assert.Equal(t, mint, txs[1].Payload)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, txs[2].Payload)
	assert.Equal(t, common.CallKindDelegateCall, txs[2].Kind)
}

func TestParseBatchErrors(t *testing.T) {
	testDefs := []struct {
		name    string
		content string
	}{
		{name: "bad hex", content: "transactions:\n  - target: x\n    payload: zz\n"},
		{name: "bad kind", content: "transactions:\n  - target: x\n    kind: staticcall\n"},
		{name: "bad op", content: "transactions:\n  - target: ledger\n    ledger:\n      op: melt\n"},
		{
			name:    "payload and ledger",
			content: "transactions:\n  - target: ledger\n    payload: 00\n    ledger:\n      op: mint\n",
		},
		{name: "bad yaml", content: "transactions: [\n"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, _, err := parseBatch([]byte(testDef.content))
			require.Error(t, err)
		})
	}
}

func TestArchivedTransactionsOrder(t *testing.T) {
	p := &models.Proposal{
		Transactions: []models.ProposalTransaction{
			{TxIndex: 1, Target: "b", Value: 2},
			{TxIndex: 0, Target: "a", Value: 1, Kind: 1},
		},
	}
	txs := archivedTransactions(p)
	require.Len(t, txs, 2)
	assert.Equal(t, common.Address("a"), txs[0].Target)
	assert.Equal(t, common.CallKindDelegateCall, txs[0].Kind)
	assert.Equal(t, common.Address("b"), txs[1].Target)
}

func TestPendingTransactions(t *testing.T) {
	p := &models.Proposal{
		ProposalID: 4,
		TxCount:    3,
		Transactions: []models.ProposalTransaction{
			{TxIndex: 0, Target: "a"},
			{TxIndex: 1, Target: "b"},
			{TxIndex: 2, Target: "c"},
		},
	}
	txs, err := pendingTransactions(p, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, common.Address("b"), txs[0].Target)
	txs, err = pendingTransactions(p, 3)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = pendingTransactions(p, 4)
	require.ErrorIs(t, err, errArchiveOutOfSync)
	// Rows missing from the archive
	p.Transactions = p.Transactions[:2]
	_, err = pendingTransactions(p, 2)
	require.ErrorIs(t, err, errArchiveOutOfSync)
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), "command: %s", strings.Join(args, " "))
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vaultguard.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"owner: admin\n"+
			"databasePath: "+filepath.Join(dir, "db")+"\n"+
			"timelockPeriod: 0\n"+
			"executionPeriod: 3600\n"+
			"freeze:\n  enabled: true\n  votesThreshold: 100\n  roundPeriod: 3600\n",
	), 0o600))
	batchPath := filepath.Join(dir, "batch.yaml")
	payload, err := weight.MintPayload("alice", 5)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(batchPath, []byte(
		"metadata: first\n"+
			"transactions:\n"+
			"  - target: auditor\n    value: 40\n"+
			"  - target: ledger\n    payload: "+hex.EncodeToString(payload)+"\n",
	), 0o600))
	cfgFlag := "--config=" + cfgPath

	runCommand(t, cfgFlag, "weight", "seed", "whale", "50")
	runCommand(t, cfgFlag, "vault", "deposit", "100", "--caller=treasurer")
	out := runCommand(t, cfgFlag, "proposal", "submit", "-f", batchPath, "--caller=alice")
	assert.Contains(t, out, "proposal 0 submitted with 2 transactions")
	out = runCommand(t, cfgFlag, "proposal", "state", "0")
	assert.Contains(t, out, "ACTIVE")
	runCommand(t, cfgFlag, "proposal", "resolve", "0", "--caller=admin")
	out = runCommand(t, cfgFlag, "proposal", "execute", "0", "-n", "1", "--caller=keeper")
	assert.Contains(t, out, "executed 1 transactions")
	out = runCommand(t, cfgFlag, "proposal", "execute", "0", "--caller=keeper")
	assert.Contains(t, out, "executed 1 transactions")
	out = runCommand(t, cfgFlag, "proposal", "state", "0")
	assert.Contains(t, out, "EXECUTED")
	assert.Contains(t, out, "executed:  2/2")

	assert.Equal(t, "60\n", runCommand(t, cfgFlag, "vault", "balance"))
	assert.Equal(t, "40\n", runCommand(t, cfgFlag, "vault", "balance", "auditor"))
	out = runCommand(t, cfgFlag, "weight", "show", "alice")
	assert.Contains(t, out, "balance: 5 of 55")

	out = runCommand(t, cfgFlag, "proposal", "list")
	assert.Contains(t, out, "first")

	out = runCommand(t, cfgFlag, "override", "vote", "freeze", "--caller=whale")
	assert.Contains(t, out, "activated false")
	out = runCommand(t, cfgFlag, "override", "status", "freeze")
	assert.Contains(t, out, "active:        false")
	assert.Contains(t, out, "votes 50")
}
