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

// Package vault is the custodial account. It holds a native balance and
// dispatches transactions to registered targets, running the execution
// guard around every call.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/blinklabs-io/vaultguard/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const NamespaceTag = "vaultguard/vault/v1"

var (
	ErrZeroAmount          = errors.New("amount must be non-zero")
	ErrBalanceOverflow     = errors.New("vault balance overflow")
	ErrInsufficientBalance = errors.New("insufficient vault balance")
	ErrDelegateNotAllowed  = errors.New("target does not allow delegate calls")
	ErrUnknownTarget       = errors.New("payload sent to unregistered target")
	ErrTargetExists        = errors.New("target already registered")
)

var (
	keyBalance   = []byte("balance")
	keyPayoutPfx = []byte("payout/")
)

// Target is something the vault can call into
type Target interface {
	Call(
		ctx context.Context,
		txn *database.Txn,
		from common.Address,
		value uint64,
		payload []byte,
		kind common.CallKind,
	) error
}

// Guard is consulted before and after every dispatched transaction
type Guard interface {
	CheckBeforeExecution(txn *database.Txn, dctx common.DispatchContext, tx common.Transaction) error
	CheckAfterExecution(txn *database.Txn, txHash common.Hash, success bool) error
}

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	Guard        Guard
	// Address is the vault's own identity, passed to targets as the caller
	Address common.Address
}

type registeredTarget struct {
	target        Target
	allowDelegate bool
}

type Vault struct {
	config  Config
	logger  *slog.Logger
	ns      database.Namespace
	metrics *vaultMetrics
	tracer  trace.Tracer
	targets map[common.Address]registeredTarget
	mu      sync.RWMutex
}

func New(cfg Config) *Vault {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Address == "" {
		cfg.Address = "vault"
	}
	return &Vault{
		config:  cfg,
		logger:  cfg.Logger.With("component", "vault"),
		ns:      database.NewNamespace(NamespaceTag),
		metrics: newVaultMetrics(cfg.PromRegistry),
		tracer:  otel.Tracer("github.com/blinklabs-io/vaultguard/vault"),
		targets: make(map[common.Address]registeredTarget),
	}
}

func (v *Vault) Address() common.Address {
	return v.config.Address
}

// RegisterTarget makes addr callable with a payload. Delegate calls are
// refused unless allowDelegate is set.
func (v *Vault) RegisterTarget(
	addr common.Address,
	target Target,
	allowDelegate bool,
) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.targets[addr]; ok {
		return fmt.Errorf("%w: %s", ErrTargetExists, addr)
	}
	v.targets[addr] = registeredTarget{
		target:        target,
		allowDelegate: allowDelegate,
	}
	v.logger.Debug(
		"registered target",
		"target", addr,
		"allow_delegate", allowDelegate,
	)
	return nil
}

func (v *Vault) lookupTarget(addr common.Address) (registeredTarget, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ret, ok := v.targets[addr]
	return ret, ok
}

func (v *Vault) getUint(txn *database.Txn, key []byte) (uint64, error) {
	val, err := v.ns.Get(txn, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return types.Uint64FromKey(val)
}

func (v *Vault) Balance(txn *database.Txn) (uint64, error) {
	return v.getUint(txn, keyBalance)
}

func payoutKey(addr common.Address) []byte {
	ret := make([]byte, 0, len(keyPayoutPfx)+len(addr)+1)
	ret = append(ret, keyPayoutPfx...)
	ret = append(ret, addr...)
	return append(ret, 0)
}

// Payouts returns the total native value the vault has sent to addr
func (v *Vault) Payouts(txn *database.Txn, addr common.Address) (uint64, error) {
	return v.getUint(txn, payoutKey(addr))
}

func (v *Vault) Deposit(
	txn *database.Txn,
	from common.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	bal, err := v.Balance(txn)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrBalanceOverflow
	}
	bal += amount
	if err := v.ns.Set(txn, keyBalance, types.Uint64Key(bal)); err != nil {
		return err
	}
	v.logger.Info(
		"deposit",
		"from", from,
		"amount", amount,
		"balance", bal,
	)
	txn.OnCommit(func() {
		v.metrics.balance.Set(float64(bal))
	})
	return nil
}

// Execute runs a single transaction. Guard rejections are returned as
// errors. A failed dispatch is reported as false with a nil error, leaving
// it to the caller whether to abort.
func (v *Vault) Execute(
	ctx context.Context,
	txn *database.Txn,
	tx common.Transaction,
	dctx common.DispatchContext,
) (bool, error) {
	ctx, span := v.tracer.Start(
		ctx,
		"vault.Execute",
		trace.WithAttributes(
			attribute.String("target", string(tx.Target)),
			attribute.String("kind", tx.Kind.String()),
			attribute.Int64("proposal_id", int64(dctx.ProposalID)), //nolint:gosec
			attribute.Bool("has_proposal", dctx.HasProposal),
		),
	)
	defer span.End()

	txHash, err := tx.Hash()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	if v.config.Guard != nil {
		if err := v.config.Guard.CheckBeforeExecution(txn, dctx, tx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			v.metrics.calls.WithLabelValues("rejected").Inc()
			return false, err
		}
	}
	callErr := v.dispatch(ctx, txn, tx)
	success := callErr == nil
	if callErr != nil {
		// Storage failures are not a target's fault, surface them
		if isStorageError(callErr) {
			span.RecordError(callErr)
			span.SetStatus(codes.Error, callErr.Error())
			return false, callErr
		}
		v.logger.Info(
			"call failed",
			"target", tx.Target,
			"hash", txHash.String(),
			"error", callErr,
		)
		span.SetAttributes(attribute.String("failure", callErr.Error()))
	}
	if v.config.Guard != nil {
		if err := v.config.Guard.CheckAfterExecution(txn, txHash, success); err != nil {
			return false, err
		}
	}
	result := "success"
	if !success {
		result = "failure"
	}
	span.SetAttributes(attribute.Bool("success", success))
	txn.OnCommit(func() {
		v.metrics.calls.WithLabelValues(result).Inc()
		if v.config.EventBus != nil {
			v.config.EventBus.Publish(
				event.VaultCallEventType,
				event.NewEvent(event.VaultCallEventType, event.VaultCallEvent{
					Target:  tx.Target,
					Hash:    txHash,
					Value:   tx.Value,
					Kind:    tx.Kind,
					Success: success,
				}),
			)
		}
	})
	return success, nil
}

// dispatch moves value and calls the target. Any returned error means
// nothing was debited.
func (v *Vault) dispatch(
	ctx context.Context,
	txn *database.Txn,
	tx common.Transaction,
) error {
	bal, err := v.Balance(txn)
	if err != nil {
		return storageError{err}
	}
	if tx.Value > bal {
		return fmt.Errorf(
			"%w: need %d, have %d",
			ErrInsufficientBalance,
			tx.Value,
			bal,
		)
	}
	reg, ok := v.lookupTarget(tx.Target)
	if !ok {
		// Unregistered addresses only receive plain value transfers
		if len(tx.Payload) > 0 || tx.Kind != common.CallKindCall {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, tx.Target)
		}
	} else {
		if tx.Kind == common.CallKindDelegateCall && !reg.allowDelegate {
			return fmt.Errorf("%w: %s", ErrDelegateNotAllowed, tx.Target)
		}
		if err := reg.target.Call(
			ctx,
			txn,
			v.config.Address,
			tx.Value,
			tx.Payload,
			tx.Kind,
		); err != nil {
			return err
		}
	}
	if tx.Value == 0 {
		return nil
	}
	bal -= tx.Value
	if err := v.ns.Set(txn, keyBalance, types.Uint64Key(bal)); err != nil {
		return storageError{err}
	}
	paid, err := v.Payouts(txn, tx.Target)
	if err != nil {
		return storageError{err}
	}
	// Payouts never exceed total deposits, which fit in a uint64
	if err := v.ns.Set(txn, payoutKey(tx.Target), types.Uint64Key(paid+tx.Value)); err != nil {
		return storageError{err}
	}
	txn.OnCommit(func() {
		v.metrics.balance.Set(float64(bal))
		v.metrics.paidOut.Add(float64(tx.Value))
	})
	return nil
}

type storageError struct {
	err error
}

func (e storageError) Error() string {
	return "vault storage: " + e.err.Error()
}

func (e storageError) Unwrap() error {
	return e.err
}

func isStorageError(err error) bool {
	var se storageError
	return errors.As(err, &se)
}
