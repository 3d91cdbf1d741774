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

// Package weight holds the token ledger that voting weight is derived from.
// Balances are checkpointed on every change so weight can be read as of any
// past instant.
package weight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

const NamespaceTag = "vaultguard/weight/v1"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOverflow            = errors.New("balance overflow")
	ErrUnexpectedValue     = errors.New("ledger calls cannot carry native value")
	ErrDelegateCall        = errors.New("ledger does not accept delegate calls")
	ErrUnknownOp           = errors.New("unknown ledger operation")
	ErrZeroAmount          = errors.New("amount must be non-zero")
)

var (
	keyTotal      = []byte("total")
	keyBalancePfx = []byte("bal/")
	keyCkptPfx    = []byte("ckpt/")
)

// Source is a weight oracle
type Source interface {
	// WeightAt returns the voter's weight as of ts. It returns
	// common.ErrNoCheckpoint when the voter has no history at all.
	WeightAt(txn *database.Txn, voter common.Address, ts uint64) (uint64, error)
	CurrentWeight(txn *database.Txn, voter common.Address) (uint64, error)
}

type LedgerConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Clock        clock.Clock
}

type Ledger struct {
	config  LedgerConfig
	ns      database.Namespace
	metrics *ledgerMetrics
}

func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "weight")
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	return &Ledger{
		config:  cfg,
		ns:      database.NewNamespace(NamespaceTag),
		metrics: newLedgerMetrics(cfg.PromRegistry),
	}
}

// voterKey terminates the address so one voter's keys never prefix another's
func voterKey(prefix []byte, voter common.Address) []byte {
	ret := make([]byte, 0, len(prefix)+len(voter)+1)
	ret = append(ret, prefix...)
	ret = append(ret, voter...)
	return append(ret, 0x00)
}

func (l *Ledger) getUint(txn *database.Txn, key []byte) (uint64, error) {
	val, err := l.ns.Get(txn, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return types.Uint64FromKey(val)
}

func (l *Ledger) CurrentWeight(txn *database.Txn, voter common.Address) (uint64, error) {
	return l.getUint(txn, voterKey(keyBalancePfx, voter))
}

func (l *Ledger) TotalSupply(txn *database.Txn) (uint64, error) {
	return l.getUint(txn, keyTotal)
}

func (l *Ledger) WeightAt(
	txn *database.Txn,
	voter common.Address,
	ts uint64,
) (uint64, error) {
	prefix := voterKey(keyCkptPfx, voter)
	_, val, err := l.ns.SeekLast(txn, prefix, types.Uint64Key(ts))
	if err == nil {
		return types.Uint64FromKey(val)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return 0, err
	}
	// Nothing at or before ts. Tell apart "no history" from "history starts later".
	_, _, err = l.ns.SeekLast(txn, prefix, types.Uint64Key(math.MaxUint64))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, common.ErrNoCheckpoint
		}
		return 0, err
	}
	return 0, nil
}

// Checkpoint is a recorded balance change
type Checkpoint struct {
	Timestamp uint64
	Balance   uint64
}

// Checkpoints returns the voter's history in ascending time order
func (l *Ledger) Checkpoints(
	txn *database.Txn,
	voter common.Address,
) ([]Checkpoint, error) {
	prefix := voterKey(keyCkptPfx, voter)
	var ret []Checkpoint
	err := l.ns.Iterate(txn, prefix, func(key, val []byte) error {
		ts, err := types.Uint64FromKey(key[len(prefix):])
		if err != nil {
			return err
		}
		bal, err := types.Uint64FromKey(val)
		if err != nil {
			return err
		}
		ret = append(ret, Checkpoint{Timestamp: ts, Balance: bal})
		return nil
	})
	return ret, err
}

// SeedBalance sets a balance without recording a checkpoint. Such a voter
// has no history, so oracle lookups fall back to the current balance.
func (l *Ledger) SeedBalance(
	txn *database.Txn,
	voter common.Address,
	amount uint64,
) error {
	prev, err := l.CurrentWeight(txn, voter)
	if err != nil {
		return err
	}
	total, err := l.TotalSupply(txn)
	if err != nil {
		return err
	}
	total -= prev
	if total > math.MaxUint64-amount {
		return ErrOverflow
	}
	if err := l.ns.Set(txn, voterKey(keyBalancePfx, voter), types.Uint64Key(amount)); err != nil {
		return err
	}
	if err := l.setTotal(txn, total+amount); err != nil {
		return err
	}
	l.config.Logger.Debug(
		"seeded balance",
		"voter", voter,
		"amount", amount,
	)
	return nil
}

func (l *Ledger) setTotal(txn *database.Txn, total uint64) error {
	if err := l.ns.Set(txn, keyTotal, types.Uint64Key(total)); err != nil {
		return err
	}
	txn.OnCommit(func() {
		l.metrics.totalSupply.Set(float64(total))
	})
	return nil
}

// setBalance writes the balance and a checkpoint at the current time
func (l *Ledger) setBalance(
	txn *database.Txn,
	voter common.Address,
	amount uint64,
) error {
	if err := l.ns.Set(txn, voterKey(keyBalancePfx, voter), types.Uint64Key(amount)); err != nil {
		return err
	}
	ckptKey := append(voterKey(keyCkptPfx, voter), types.Uint64Key(l.config.Clock.Now())...)
	return l.ns.Set(txn, ckptKey, types.Uint64Key(amount))
}

func (l *Ledger) Mint(txn *database.Txn, to common.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	bal, err := l.CurrentWeight(txn, to)
	if err != nil {
		return err
	}
	total, err := l.TotalSupply(txn)
	if err != nil {
		return err
	}
	if total > math.MaxUint64-amount {
		return ErrOverflow
	}
	if err := l.setBalance(txn, to, bal+amount); err != nil {
		return err
	}
	if err := l.setTotal(txn, total+amount); err != nil {
		return err
	}
	l.config.Logger.Info(
		"minted weight",
		"to", to,
		"amount", amount,
	)
	return nil
}

func (l *Ledger) Burn(txn *database.Txn, from common.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	bal, err := l.CurrentWeight(txn, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s has %d, burning %d", ErrInsufficientBalance, from, bal, amount)
	}
	total, err := l.TotalSupply(txn)
	if err != nil {
		return err
	}
	if err := l.setBalance(txn, from, bal-amount); err != nil {
		return err
	}
	if err := l.setTotal(txn, total-amount); err != nil {
		return err
	}
	l.config.Logger.Info(
		"burned weight",
		"from", from,
		"amount", amount,
	)
	return nil
}

func (l *Ledger) Transfer(
	txn *database.Txn,
	from common.Address,
	to common.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	fromBal, err := l.CurrentWeight(txn, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s has %d, sending %d", ErrInsufficientBalance, from, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := l.CurrentWeight(txn, to)
	if err != nil {
		return err
	}
	if toBal > math.MaxUint64-amount {
		return ErrOverflow
	}
	if err := l.setBalance(txn, from, fromBal-amount); err != nil {
		return err
	}
	if err := l.setBalance(txn, to, toBal+amount); err != nil {
		return err
	}
	l.config.Logger.Info(
		"transferred weight",
		"from", from,
		"to", to,
		"amount", amount,
	)
	return nil
}

// Call lets the vault drive the ledger from an executed proposal. The
// payload is an encoded Op.
func (l *Ledger) Call(
	_ context.Context,
	txn *database.Txn,
	_ common.Address,
	value uint64,
	payload []byte,
	kind common.CallKind,
) error {
	if kind != common.CallKindCall {
		return ErrDelegateCall
	}
	if value != 0 {
		return ErrUnexpectedValue
	}
	op, err := DecodeOp(payload)
	if err != nil {
		return err
	}
	switch op.Op {
	case OpMint:
		return l.Mint(txn, common.Address(op.To), op.Amount)
	case OpBurn:
		return l.Burn(txn, common.Address(op.From), op.Amount)
	case OpTransfer:
		return l.Transfer(txn, common.Address(op.From), common.Address(op.To), op.Amount)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOp, op.Op)
	}
}
