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

package vaultguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/event"
	"github.com/blinklabs-io/vaultguard/governor"
	"github.com/blinklabs-io/vaultguard/guard"
	"github.com/blinklabs-io/vaultguard/override"
	"github.com/blinklabs-io/vaultguard/proposer"
	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/blinklabs-io/vaultguard/vault"
	"github.com/blinklabs-io/vaultguard/weight"
)

var ErrNotStarted = errors.New("node not started")

// Node wires the registry, the override controllers, the guard and the
// vault around one database. Every call into the subsystem goes through
// Update or View, which serialize access.
type Node struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	ledger        *weight.Ledger
	manual        *strategy.Manual
	linear        *strategy.Linear
	veto          *override.Controller
	freeze        *override.Controller
	guard         *guard.Guard
	vault         *vault.Vault
	governor      *governor.Governor
	shutdownFuncs []func(context.Context) error
	mu            sync.Mutex
	started       bool
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.clock == nil {
		cfg.clock = clock.NewSystem()
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Start opens the database and builds every component
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		MetadataDSN:    n.config.metadataDSN,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			_ = db.Close()
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error", err,
		)
		if err := db.RecoverCommitTimestamp(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	n.db = db
	if err := n.wire(); err != nil {
		_ = db.Close()
		n.db = nil
		return err
	}
	n.started = true
	n.config.logger.Info(
		"node started",
		"component", "node",
		"data_dir", n.config.dataDir,
		"strategy", n.config.strategy,
		"veto", n.veto != nil,
		"freeze", n.freeze != nil,
	)
	return nil
}

func (n *Node) wire() error {
	cfg := n.config
	n.ledger = weight.NewLedger(weight.LedgerConfig{
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		Clock:        cfg.clock,
	})
	sources := map[string]weight.Source{LedgerWeightSource: n.ledger}
	newController := func(kind string, ovr *OverrideConfig) (*override.Controller, error) {
		if ovr == nil {
			return nil, nil
		}
		source := ovr.WeightSource
		if source == "" {
			source = LedgerWeightSource
		}
		owner := ovr.Owner
		if owner == "" {
			owner = cfg.owner
		}
		return override.NewController(override.ControllerConfig{
			Logger:         cfg.logger,
			PromRegistry:   cfg.promRegistry,
			EventBus:       n.eventBus,
			Clock:          cfg.clock,
			WeightSources:  sources,
			Kind:           kind,
			Owner:          owner,
			WeightSource:   source,
			VotesThreshold: ovr.VotesThreshold,
			RoundPeriod:    ovr.RoundPeriod,
			HaltDuration:   ovr.HaltDuration,
		})
	}
	var err error
	if n.veto, err = newController(override.KindVeto, cfg.veto); err != nil {
		return fmt.Errorf("veto: %w", err)
	}
	if n.freeze, err = newController(override.KindFreeze, cfg.freeze); err != nil {
		return fmt.Errorf("freeze: %w", err)
	}
	guardCfg := guard.Config{
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		EventBus:     n.eventBus,
	}
	// Assigning a nil *Controller would make a non-nil interface
	if n.veto != nil {
		guardCfg.Veto = n.veto
	}
	if n.freeze != nil {
		guardCfg.Freeze = n.freeze
	}
	n.guard = guard.New(guardCfg)
	n.vault = vault.New(vault.Config{
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		EventBus:     n.eventBus,
		Guard:        n.guard,
	})
	if err := n.vault.RegisterTarget(LedgerAddress, n.ledger, false); err != nil {
		return err
	}
	var authorizer governor.ProposerAuthorizer = proposer.Any{}
	switch {
	case len(cfg.proposers) > 0:
		authorizer = proposer.NewAllowlist(cfg.proposers...)
	case cfg.proposerWeight > 0:
		authorizer = proposer.NewMinWeight(n.ledger, cfg.proposerWeight)
	}
	n.governor, err = governor.NewGovernor(governor.GovernorConfig{
		Logger:          cfg.logger,
		PromRegistry:    cfg.promRegistry,
		EventBus:        n.eventBus,
		Clock:           cfg.clock,
		Executor:        n.vault,
		Authorizer:      authorizer,
		Owner:           cfg.owner,
		TimelockPeriod:  cfg.timelockPeriod,
		ExecutionPeriod: cfg.executionPeriod,
		Strategy:        cfg.strategy,
	})
	if err != nil {
		return err
	}
	n.manual = strategy.NewManual(strategy.ManualConfig{
		Logger: cfg.logger,
		Clock:  cfg.clock,
		Owner:  cfg.owner,
	})
	if err := n.governor.RegisterStrategy(strategy.ManualName, n.manual); err != nil {
		return err
	}
	if cfg.linear != nil {
		n.linear, err = strategy.NewLinear(strategy.LinearConfig{
			Logger:       cfg.logger,
			PromRegistry: cfg.promRegistry,
			Clock:        cfg.clock,
			WeightSource: n.ledger,
			VotingPeriod: cfg.linear.VotingPeriod,
			Quorum:       cfg.linear.Quorum,
			Basis:        cfg.linear.Basis,
		})
		if err != nil {
			return fmt.Errorf("linear strategy: %w", err)
		}
		if err := n.governor.RegisterStrategy(strategy.LinearName, n.linear); err != nil {
			return err
		}
	}
	return nil
}

// Update runs fn in a read-write transaction, committed when fn succeeds
func (n *Node) Update(fn func(txn *database.Txn) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return ErrNotStarted
	}
	return n.db.Transaction(true).Do(fn)
}

// View runs fn in a read-only transaction
func (n *Node) View(fn func(txn *database.Txn) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return ErrNotStarted
	}
	txn := n.db.Transaction(false)
	defer txn.Release()
	return fn(txn)
}

func (n *Node) Database() *database.Database {
	return n.db
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Clock() clock.Clock {
	return n.config.clock
}

func (n *Node) Governor() *governor.Governor {
	return n.governor
}

func (n *Node) Vault() *vault.Vault {
	return n.vault
}

func (n *Node) Ledger() *weight.Ledger {
	return n.ledger
}

func (n *Node) Manual() *strategy.Manual {
	return n.manual
}

// Linear is nil unless the linear strategy was configured
func (n *Node) Linear() *strategy.Linear {
	return n.linear
}

// Veto is nil unless a veto controller was configured
func (n *Node) Veto() *override.Controller {
	return n.veto
}

// Freeze is nil unless a freeze controller was configured
func (n *Node) Freeze() *override.Controller {
	return n.freeze
}

// Override returns the controller of the given kind, or nil
func (n *Node) Override(kind string) *override.Controller {
	switch kind {
	case override.KindVeto:
		return n.veto
	case override.KindFreeze:
		return n.freeze
	default:
		return nil
	}
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.config.logger.Debug("starting graceful shutdown", "component", "node")
	var err error
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil
	n.eventBus.Stop()
	n.started = false
	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}
