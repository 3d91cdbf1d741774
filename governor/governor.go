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

// Package governor implements the proposal registry: submission with hash
// commitments, state derivation, and timelocked, resumable execution
// through the vault.
package governor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/blinklabs-io/vaultguard/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	NamespaceTag   = "vaultguard/governor/v1"
	DefaultAddress = "governor"
)

var (
	keySettings    = []byte("settings")
	keyCount       = []byte("count")
	keyProposalPfx = []byte("p/")
)

type GovernorConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	Clock        clock.Clock
	Executor     Executor
	Authorizer   ProposerAuthorizer
	Owner        common.Address
	// Address identifies the registry to the vault and guard
	Address common.Address
	// Defaults used until the owner changes them
	TimelockPeriod  uint64
	ExecutionPeriod uint64
	Strategy        string
}

// Settings are the defaults snapshotted into each new proposal
type Settings struct {
	_               struct{} `cbor:",toarray"`
	TimelockPeriod  uint64
	ExecutionPeriod uint64
	Strategy        string
}

// Proposal is the canonical stored form of a proposal
type Proposal struct {
	_                struct{} `cbor:",toarray"`
	Hashes           [][]byte
	TimelockPeriod   uint64
	ExecutionPeriod  uint64
	Strategy         string
	ExecutionCounter uint64
	Proposer         string
	CreatedAt        uint64
}

func (p *Proposal) Len() int {
	return len(p.Hashes)
}

type Governor struct {
	config     GovernorConfig
	logger     *slog.Logger
	ns         database.Namespace
	metrics    *governorMetrics
	tracer     trace.Tracer
	strategies map[string]Strategy
	mu         sync.RWMutex
}

func NewGovernor(cfg GovernorConfig) (*Governor, error) {
	if cfg.Executor == nil {
		return nil, errors.New("governor requires an executor")
	}
	if cfg.Authorizer == nil {
		return nil, errors.New("governor requires a proposer authorizer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	return &Governor{
		config:     cfg,
		logger:     cfg.Logger.With("component", "governor"),
		ns:         database.NewNamespace(NamespaceTag),
		metrics:    newGovernorMetrics(cfg.PromRegistry),
		tracer:     otel.Tracer("github.com/blinklabs-io/vaultguard/governor"),
		strategies: make(map[string]Strategy),
	}, nil
}

// RegisterStrategy makes a strategy selectable by name
func (g *Governor) RegisterStrategy(name string, s Strategy) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.strategies[name]; ok {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	g.strategies[name] = s
	return nil
}

func (g *Governor) Strategies() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ret := make([]string, 0, len(g.strategies))
	for name := range g.strategies {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

func (g *Governor) strategy(name string) (Strategy, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.strategies[name]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
	return s, nil
}

// Config returns the current defaults
func (g *Governor) Config(txn *database.Txn) (Settings, error) {
	var ret Settings
	err := g.ns.GetCbor(txn, keySettings, &ret)
	if err == nil {
		return ret, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return ret, err
	}
	return Settings{
		TimelockPeriod:  g.config.TimelockPeriod,
		ExecutionPeriod: g.config.ExecutionPeriod,
		Strategy:        g.config.Strategy,
	}, nil
}

func (g *Governor) ProposalCount(txn *database.Txn) (uint64, error) {
	val, err := g.ns.Get(txn, keyCount)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return types.Uint64FromKey(val)
}

func proposalKey(id uint64) []byte {
	return slices.Concat(keyProposalPfx, types.Uint64Key(id))
}

func (g *Governor) Proposal(txn *database.Txn, id uint64) (*Proposal, error) {
	var p Proposal
	if err := g.ns.GetCbor(txn, proposalKey(id), &p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidProposal, id)
		}
		return nil, err
	}
	return &p, nil
}

// ListProposals returns archived creation records, oldest first
func (g *Governor) ListProposals(
	txn *database.Txn,
	offset int,
	limit int,
) ([]models.Proposal, error) {
	return txn.DB().GetProposals(offset, limit, txn)
}

// SubmitProposal commits to the hashes of txs and snapshots the current
// defaults into a new proposal
func (g *Governor) SubmitProposal(
	ctx context.Context,
	txn *database.Txn,
	txs []common.Transaction,
	metadata string,
	proposer common.Address,
	authData []byte,
) (uint64, error) {
	_, span := g.tracer.Start(
		ctx,
		"governor.SubmitProposal",
		trace.WithAttributes(
			attribute.String("proposer", string(proposer)),
			attribute.Int("tx_count", len(txs)),
		),
	)
	defer span.End()
	id, err := g.submitProposal(txn, txs, metadata, proposer, authData)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("proposal_id", int64(id))) //nolint:gosec
	return id, nil
}

func (g *Governor) submitProposal(
	txn *database.Txn,
	txs []common.Transaction,
	metadata string,
	proposer common.Address,
	authData []byte,
) (uint64, error) {
	authorized, err := g.config.Authorizer.IsAuthorized(txn, proposer, authData)
	if err != nil {
		return 0, fmt.Errorf("proposer authorization: %w", err)
	}
	if !authorized {
		return 0, fmt.Errorf("%w: %s", ErrInvalidProposer, proposer)
	}
	settings, err := g.Config(txn)
	if err != nil {
		return 0, err
	}
	strat, err := g.strategy(settings.Strategy)
	if err != nil {
		return 0, err
	}
	hashes := make([][]byte, 0, len(txs))
	archived := make([]models.ProposalTransaction, 0, len(txs))
	for i, tx := range txs {
		h, err := tx.Hash()
		if err != nil {
			return 0, fmt.Errorf("%w: index %d: %w", ErrInvalidTxs, i, err)
		}
		hashes = append(hashes, h.Bytes())
		archived = append(archived, models.ProposalTransaction{
			Hash:    h.Bytes(),
			Target:  string(tx.Target),
			Value:   types.Uint64(tx.Value),
			Payload: tx.Payload,
			Kind:    uint8(tx.Kind),
		})
	}
	id, err := g.ProposalCount(txn)
	if err != nil {
		return 0, err
	}
	now := g.config.Clock.Now()
	p := &Proposal{
		Hashes:          hashes,
		TimelockPeriod:  settings.TimelockPeriod,
		ExecutionPeriod: settings.ExecutionPeriod,
		Strategy:        settings.Strategy,
		Proposer:        string(proposer),
		CreatedAt:       now,
	}
	if err := g.ns.SetCbor(txn, proposalKey(id), p); err != nil {
		return 0, err
	}
	if err := g.ns.Set(txn, keyCount, types.Uint64Key(id+1)); err != nil {
		return 0, err
	}
	if initializer, ok := strat.(ProposalInitializer); ok {
		if err := initializer.InitializeProposal(txn, id); err != nil {
			return 0, fmt.Errorf("initialize proposal in strategy: %w", err)
		}
	}
	if err := txn.DB().AddProposal(
		&models.Proposal{
			ProposalID:      types.Uint64(id),
			Proposer:        string(proposer),
			Strategy:        settings.Strategy,
			Metadata:        metadata,
			SubmittedAt:     types.Uint64(now),
			TimelockPeriod:  types.Uint64(settings.TimelockPeriod),
			ExecutionPeriod: types.Uint64(settings.ExecutionPeriod),
		},
		archived,
		txn,
	); err != nil {
		return 0, fmt.Errorf("archive proposal: %w", err)
	}
	g.logger.Info(
		"proposal submitted",
		"proposal_id", id,
		"proposer", proposer,
		"strategy", settings.Strategy,
		"tx_count", len(txs),
	)
	txCopy := slices.Clone(txs)
	txn.OnCommit(func() {
		g.metrics.submitted.Inc()
		g.publish(event.ProposalCreatedEventType, event.ProposalCreatedEvent{
			ProposalID:      id,
			Proposer:        proposer,
			Strategy:        settings.Strategy,
			Metadata:        metadata,
			TimelockPeriod:  settings.TimelockPeriod,
			ExecutionPeriod: settings.ExecutionPeriod,
			Transactions:    txCopy,
		})
	})
	return id, nil
}

// TimelockStart is the instant the proposal's vote resolved. It is only
// meaningful once the strategy reports the proposal passed.
func (g *Governor) TimelockStart(txn *database.Txn, id uint64) (uint64, error) {
	p, err := g.Proposal(txn, id)
	if err != nil {
		return 0, err
	}
	strat, err := g.strategy(p.Strategy)
	if err != nil {
		return 0, err
	}
	return strat.VotingEndsAt(txn, id)
}

func (g *Governor) ProposalState(txn *database.Txn, id uint64) (ProposalState, error) {
	p, err := g.Proposal(txn, id)
	if err != nil {
		return 0, err
	}
	state, _, err := g.state(txn, id, p)
	return state, err
}

// state derives the proposal state, also returning the timelock start
func (g *Governor) state(
	txn *database.Txn,
	id uint64,
	p *Proposal,
) (ProposalState, uint64, error) {
	strat, err := g.strategy(p.Strategy)
	if err != nil {
		return 0, 0, err
	}
	passed, err := strat.IsPassed(txn, id)
	if err != nil {
		return 0, 0, fmt.Errorf("strategy: %w", err)
	}
	failed, err := strat.IsFailed(txn, id)
	if err != nil {
		return 0, 0, fmt.Errorf("strategy: %w", err)
	}
	if !passed && !failed {
		return StateActive, 0, nil
	}
	if failed {
		return StateFailed, 0, nil
	}
	start, err := strat.VotingEndsAt(txn, id)
	if err != nil {
		return 0, 0, fmt.Errorf("strategy: %w", err)
	}
	if p.ExecutionCounter == uint64(p.Len()) {
		return StateExecuted, start, nil
	}
	now := g.config.Clock.Now()
	executableAt := common.SaturatingAdd(start, p.TimelockPeriod)
	if now < executableAt {
		return StateTimelocked, start, nil
	}
	if now <= common.SaturatingAdd(executableAt, p.ExecutionPeriod) {
		return StateExecutable, start, nil
	}
	return StateExpired, start, nil
}

type callerKey struct{}

// WithCaller records who is driving an execution, for the archive
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func callerFromContext(ctx context.Context) common.Address {
	if caller, ok := ctx.Value(callerKey{}).(common.Address); ok {
		return caller
	}
	return ""
}

// ExecuteProposal dispatches txs starting at the proposal's execution
// counter. Any failure aborts the whole call and the counter is left
// unchanged; the caller is expected to roll back txn.
func (g *Governor) ExecuteProposal(
	ctx context.Context,
	txn *database.Txn,
	id uint64,
	txs []common.Transaction,
) error {
	ctx, span := g.tracer.Start(
		ctx,
		"governor.ExecuteProposal",
		trace.WithAttributes(
			attribute.Int64("proposal_id", int64(id)), //nolint:gosec
			attribute.Int("tx_count", len(txs)),
		),
	)
	defer span.End()
	if err := g.executeProposal(ctx, txn, id, txs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.executionErrors.Inc()
		return err
	}
	return nil
}

func (g *Governor) executeProposal(
	ctx context.Context,
	txn *database.Txn,
	id uint64,
	txs []common.Transaction,
) error {
	if len(txs) == 0 {
		return fmt.Errorf("%w: no transactions supplied", ErrInvalidTxs)
	}
	p, err := g.Proposal(txn, id)
	if err != nil {
		return err
	}
	state, timelockStart, err := g.state(txn, id, p)
	if err != nil {
		return err
	}
	if state != StateExecutable {
		return fmt.Errorf("%w: proposal %d is %s", ErrProposalNotExecutable, id, state)
	}
	first := p.ExecutionCounter
	if first+uint64(len(txs)) > uint64(p.Len()) {
		return fmt.Errorf(
			"%w: %d supplied, %d remaining",
			ErrInvalidTxs,
			len(txs),
			uint64(p.Len())-first,
		)
	}
	for i, tx := range txs {
		idx := int(first) + i //nolint:gosec
		h, err := tx.Hash()
		if err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrInvalidTxs, idx, err)
		}
		if !bytes.Equal(h.Bytes(), p.Hashes[idx]) {
			return fmt.Errorf("%w: index %d", ErrInvalidTxHash, idx)
		}
		dctx := common.ForProposal(g.config.Address, id, timelockStart, idx)
		ok, err := g.config.Executor.Execute(ctx, txn, tx, dctx)
		if err != nil {
			return err
		}
		if !ok {
			return &TxFailedError{ProposalID: id, Index: idx, Hash: h}
		}
	}
	p.ExecutionCounter += uint64(len(txs))
	if err := g.ns.SetCbor(txn, proposalKey(id), p); err != nil {
		return err
	}
	caller := callerFromContext(ctx)
	now := g.config.Clock.Now()
	if err := txn.DB().AddProposalExecution(&models.ProposalExecution{
		ProposalID: types.Uint64(id),
		Executor:   string(caller),
		FirstIndex: int(first), //nolint:gosec
		Count:      len(txs),
		ExecutedAt: types.Uint64(now),
	}, txn); err != nil {
		return fmt.Errorf("archive execution: %w", err)
	}
	g.logger.Info(
		"proposal executed",
		"proposal_id", id,
		"first_index", first,
		"count", len(txs),
		"execution_counter", p.ExecutionCounter,
		"total", p.Len(),
	)
	counter := int(p.ExecutionCounter) //nolint:gosec
	total := p.Len()
	txn.OnCommit(func() {
		g.metrics.executedTxs.Add(float64(len(txs)))
		if counter == total {
			g.metrics.completed.Inc()
		}
		g.publish(event.ProposalExecutedEventType, event.ProposalExecutedEvent{
			Executor:   caller,
			ProposalID: id,
			FirstIndex: int(first), //nolint:gosec
			Count:      len(txs),
			Counter:    counter,
			Total:      total,
		})
	})
	return nil
}

func (g *Governor) updateSettings(
	txn *database.Txn,
	caller common.Address,
	field string,
	apply func(s *Settings) (string, string, error),
) error {
	if caller != g.config.Owner {
		return ErrUnauthorized
	}
	settings, err := g.Config(txn)
	if err != nil {
		return err
	}
	oldValue, newValue, err := apply(&settings)
	if err != nil {
		return err
	}
	if err := g.ns.SetCbor(txn, keySettings, &settings); err != nil {
		return err
	}
	g.logger.Info(
		"governor configuration updated",
		"field", field,
		"old", oldValue,
		"new", newValue,
	)
	txn.OnCommit(func() {
		g.publish(event.GovernorConfigEventType, event.GovernorConfigEvent{
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
		})
	})
	return nil
}

func (g *Governor) UpdateTimelockPeriod(
	txn *database.Txn,
	caller common.Address,
	period uint64,
) error {
	return g.updateSettings(
		txn,
		caller,
		"timelock_period",
		func(s *Settings) (string, string, error) {
			old := s.TimelockPeriod
			s.TimelockPeriod = period
			return strconv.FormatUint(old, 10), strconv.FormatUint(period, 10), nil
		},
	)
}

func (g *Governor) UpdateExecutionPeriod(
	txn *database.Txn,
	caller common.Address,
	period uint64,
) error {
	return g.updateSettings(
		txn,
		caller,
		"execution_period",
		func(s *Settings) (string, string, error) {
			old := s.ExecutionPeriod
			s.ExecutionPeriod = period
			return strconv.FormatUint(old, 10), strconv.FormatUint(period, 10), nil
		},
	)
}

func (g *Governor) UpdateStrategy(
	txn *database.Txn,
	caller common.Address,
	name string,
) error {
	return g.updateSettings(
		txn,
		caller,
		"strategy",
		func(s *Settings) (string, string, error) {
			if _, err := g.strategy(name); err != nil {
				return "", "", err
			}
			old := s.Strategy
			s.Strategy = name
			return old, name, nil
		},
	)
}

func (g *Governor) publish(evtType event.EventType, data any) {
	if g.config.EventBus == nil {
		return
	}
	g.config.EventBus.Publish(evtType, event.NewEvent(evtType, data))
}
