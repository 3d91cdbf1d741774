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

// Package guard holds the checks the vault runs around every dispatched
// transaction. It keeps no state of its own: everything it decides is read
// from the override controllers.
package guard

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/event"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrDAOVetoed                       = errors.New("execution vetoed")
	ErrDAOFrozen                       = errors.New("execution frozen")
	ErrTransactionTimelockBeforeFreeze = errors.New(
		"transaction timelocked before the most recent halt",
	)
)

// Controller is the part of an override controller the guard reads
type Controller interface {
	Kind() string
	IsActive(txn *database.Txn) (bool, error)
	LastHaltTimestamp(txn *database.Txn) (uint64, error)
}

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	// Either controller may be nil, in which case it is not consulted
	Veto   Controller
	Freeze Controller
}

type Guard struct {
	config  Config
	logger  *slog.Logger
	metrics *guardMetrics
	checks  []check
}

type check struct {
	controller Controller
	activeErr  error
}

func New(cfg Config) *Guard {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	g := &Guard{
		config:  cfg,
		logger:  cfg.Logger.With("component", "guard"),
		metrics: newGuardMetrics(cfg.PromRegistry),
	}
	if cfg.Veto != nil {
		g.checks = append(g.checks, check{cfg.Veto, ErrDAOVetoed})
	}
	if cfg.Freeze != nil {
		g.checks = append(g.checks, check{cfg.Freeze, ErrDAOFrozen})
	}
	return g
}

// CheckBeforeExecution rejects the transaction while any override is active,
// and rejects proposal transactions whose timelock began at or before the
// most recent halt of any override, even once that halt has lifted.
func (g *Guard) CheckBeforeExecution(
	txn *database.Txn,
	dctx common.DispatchContext,
	tx common.Transaction,
) error {
	for _, c := range g.checks {
		active, err := c.controller.IsActive(txn)
		if err != nil {
			return fmt.Errorf("%s status: %w", c.controller.Kind(), err)
		}
		if active {
			return g.reject(txn, dctx, tx, c.activeErr)
		}
	}
	if !dctx.HasProposal {
		g.metrics.allowed.Inc()
		return nil
	}
	for _, c := range g.checks {
		lastHalt, err := c.controller.LastHaltTimestamp(txn)
		if err != nil {
			return fmt.Errorf("%s halt timestamp: %w", c.controller.Kind(), err)
		}
		if lastHalt > 0 && dctx.TimelockStart <= lastHalt {
			g.logger.Debug(
				"timelock predates halt",
				"kind", c.controller.Kind(),
				"timelock_start", dctx.TimelockStart,
				"last_halt_timestamp", lastHalt,
			)
			return g.reject(txn, dctx, tx, ErrTransactionTimelockBeforeFreeze)
		}
	}
	g.metrics.allowed.Inc()
	return nil
}

func (g *Guard) reject(
	txn *database.Txn,
	dctx common.DispatchContext,
	tx common.Transaction,
	reason error,
) error {
	g.logger.Warn(
		"transaction rejected",
		"reason", reason.Error(),
		"target", tx.Target,
		"proposal_id", dctx.ProposalID,
		"has_proposal", dctx.HasProposal,
		"tx_index", dctx.Index,
	)
	g.metrics.rejected.WithLabelValues(reasonLabel(reason)).Inc()
	if g.config.EventBus != nil {
		evt := event.GuardRejectedEvent{
			Reason:     reason.Error(),
			Target:     tx.Target,
			ProposalID: dctx.ProposalID,
			TxIndex:    dctx.Index,
		}
		// Rejections abort the caller's transaction, so publish right away
		g.config.EventBus.Publish(
			event.GuardRejectedEventType,
			event.NewEvent(event.GuardRejectedEventType, evt),
		)
	}
	return reason
}

// CheckAfterExecution records the outcome of a dispatched transaction
func (g *Guard) CheckAfterExecution(
	txn *database.Txn,
	txHash common.Hash,
	success bool,
) error {
	if success {
		g.logger.Debug("transaction executed", "hash", txHash.String())
	} else {
		g.logger.Info("transaction failed", "hash", txHash.String())
	}
	g.metrics.outcomes.WithLabelValues(outcomeLabel(success)).Inc()
	return nil
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrDAOVetoed):
		return "vetoed"
	case errors.Is(err, ErrDAOFrozen):
		return "frozen"
	case errors.Is(err, ErrTransactionTimelockBeforeFreeze):
		return "timelock_before_halt"
	default:
		return "other"
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
