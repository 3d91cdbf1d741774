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
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/weight"
	"gopkg.in/yaml.v3"
)

// batchTx is one transaction in a batch file. Payload is hex. A ledger
// op may be given instead of a payload and is encoded for the caller.
type batchTx struct {
	Target  string    `yaml:"target"`
	Value   uint64    `yaml:"value"`
	Payload string    `yaml:"payload"`
	Kind    string    `yaml:"kind"`
	Ledger  *ledgerOp `yaml:"ledger"`
}

type ledgerOp struct {
	Op     string `yaml:"op"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount uint64 `yaml:"amount"`
}

type batchFile struct {
	Metadata     string    `yaml:"metadata"`
	Transactions []batchTx `yaml:"transactions"`
}

var errArchiveOutOfSync = errors.New("proposal archive out of sync, pass --file")

var errPayloadAndLedger = errors.New("payload and ledger are mutually exclusive")

func (o *ledgerOp) payload() ([]byte, error) {
	switch o.Op {
	case "mint":
		return weight.MintPayload(common.Address(o.To), o.Amount)
	case "burn":
		return weight.BurnPayload(common.Address(o.From), o.Amount)
	case "transfer":
		return weight.TransferPayload(
			common.Address(o.From),
			common.Address(o.To),
			o.Amount,
		)
	default:
		return nil, fmt.Errorf("unknown ledger op: %q", o.Op)
	}
}

func (b batchTx) transaction() (common.Transaction, error) {
	var ret common.Transaction
	kind, err := common.ParseCallKind(b.Kind)
	if err != nil {
		return ret, err
	}
	var payload []byte
	switch {
	case b.Ledger != nil && b.Payload != "":
		return ret, errPayloadAndLedger
	case b.Ledger != nil:
		if payload, err = b.Ledger.payload(); err != nil {
			return ret, err
		}
	case b.Payload != "":
		if payload, err = hex.DecodeString(b.Payload); err != nil {
			return ret, fmt.Errorf("decode payload: %w", err)
		}
	}
	return common.Transaction{
		Target:  common.Address(b.Target),
		Value:   b.Value,
		Payload: payload,
		Kind:    kind,
	}, nil
}

func parseBatch(data []byte) (string, []common.Transaction, error) {
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return "", nil, fmt.Errorf("parse batch: %w", err)
	}
	txs := make([]common.Transaction, 0, len(bf.Transactions))
	for idx, b := range bf.Transactions {
		tx, err := b.transaction()
		if err != nil {
			return "", nil, fmt.Errorf("transaction %d: %w", idx, err)
		}
		txs = append(txs, tx)
	}
	return bf.Metadata, txs, nil
}

func loadBatch(path string) (string, []common.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read batch: %w", err)
	}
	return parseBatch(data)
}

// archivedTransactions rebuilds the submitted batch from its archive rows
func archivedTransactions(p *models.Proposal) []common.Transaction {
	ret := make([]common.Transaction, len(p.Transactions))
	for _, row := range p.Transactions {
		if row.TxIndex < 0 || row.TxIndex >= len(ret) {
			continue
		}
		ret[row.TxIndex] = common.Transaction{
			Target:  common.Address(row.Target),
			Value:   uint64(row.Value),
			Payload: row.Payload,
			Kind:    common.CallKind(row.Kind),
		}
	}
	return ret
}

// pendingTransactions returns the archived transactions not yet executed. The
// archive can trail the blob store, for example after a commit timestamp
// recovery, so the counter is checked against what the archive holds.
func pendingTransactions(p *models.Proposal, executed uint64) ([]common.Transaction, error) {
	txs := archivedTransactions(p)
	if len(p.Transactions) != p.TxCount || executed > uint64(len(txs)) {
		return nil, fmt.Errorf(
			"%w: proposal %d has %d of %d archived transactions, %d already executed",
			errArchiveOutOfSync,
			p.ProposalID,
			len(p.Transactions),
			p.TxCount,
			executed,
		)
	}
	return txs[executed:], nil
}
