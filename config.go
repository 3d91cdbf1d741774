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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// LedgerWeightSource is the name the weight ledger is registered under
	// for the override controllers
	LedgerWeightSource = "ledger"
	// LedgerAddress is the vault target address of the weight ledger
	LedgerAddress common.Address = "ledger"
)

// OverrideConfig holds the initial settings of a veto or freeze controller
type OverrideConfig struct {
	Owner          common.Address
	WeightSource   string
	VotesThreshold uint64
	RoundPeriod    uint64
	// HaltDuration of 0 disables auto-lift
	HaltDuration uint64
}

type LinearStrategyConfig struct {
	VotingPeriod uint64
	Quorum       uint64
	Basis        uint64
}

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	clock           clock.Clock
	linear          *LinearStrategyConfig
	veto            *OverrideConfig
	freeze          *OverrideConfig
	dataDir         string
	blobPlugin      string
	metadataPlugin  string
	metadataDSN     string
	owner           common.Address
	strategy        string
	proposers       []common.Address
	proposerWeight  uint64
	timelockPeriod  uint64
	executionPeriod uint64
	tracing         bool
	tracingStdout   bool
	shutdownTimeout time.Duration
}

func (n *Node) configValidate() error {
	if n.config.owner == "" {
		return errors.New("owner must be set")
	}
	switch n.config.strategy {
	case strategy.ManualName:
	case strategy.LinearName:
		if n.config.linear == nil {
			return errors.New("linear strategy selected without linear strategy config")
		}
	default:
		return fmt.Errorf("unknown strategy: %q", n.config.strategy)
	}
	if n.config.linear != nil && n.config.linear.VotingPeriod == 0 {
		return errors.New("linear strategy voting period must be non-zero")
	}
	for name, ovr := range map[string]*OverrideConfig{
		"veto":   n.config.veto,
		"freeze": n.config.freeze,
	} {
		if ovr == nil {
			continue
		}
		if ovr.VotesThreshold == 0 || ovr.RoundPeriod == 0 {
			return fmt.Errorf(
				"%s: votes threshold and round period must be non-zero",
				name,
			)
		}
		if ovr.WeightSource != "" && ovr.WeightSource != LedgerWeightSource {
			return fmt.Errorf("%s: unknown weight source: %q", name, ovr.WeightSource)
		}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new vaultguard config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		strategy: strategy.ManualName,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithMetadataDSN sets the connection string for server-backed metadata plugins
func WithMetadataDSN(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDSN = dsn
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock specifies the time source. This defaults to the wall clock
func WithClock(clk clock.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clk
	}
}

// WithOwner specifies the administrator of the registry and of the manual strategy
func WithOwner(owner common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.owner = owner
	}
}

// WithTimelockPeriod specifies the default timelock, in seconds
func WithTimelockPeriod(seconds uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.timelockPeriod = seconds
	}
}

// WithExecutionPeriod specifies the default execution window, in seconds
func WithExecutionPeriod(seconds uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.executionPeriod = seconds
	}
}

// WithStrategy selects the default voting strategy by name. The default is "manual"
func WithStrategy(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.strategy = name
	}
}

// WithLinearStrategy enables the token-weighted strategy
func WithLinearStrategy(cfg LinearStrategyConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.linear = &cfg
	}
}

// WithVeto enables the veto controller
func WithVeto(cfg OverrideConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.veto = &cfg
	}
}

// WithFreeze enables the freeze controller
func WithFreeze(cfg OverrideConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.freeze = &cfg
	}
}

// WithProposers restricts proposal submission to the given addresses
func WithProposers(proposers ...common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.proposers = append(c.proposers, proposers...)
	}
}

// WithProposerWeight requires proposers to hold at least this much weight.
// It is ignored when an explicit proposer list is configured.
func WithProposerWeight(threshold uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.proposerWeight = threshold
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
