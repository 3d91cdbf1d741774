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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func overrideConfig(cfg config.OverrideConfig) *vaultguard.OverrideConfig {
	if !cfg.Enabled {
		return nil
	}
	return &vaultguard.OverrideConfig{
		Owner:          common.Address(cfg.Owner),
		WeightSource:   cfg.WeightSource,
		VotesThreshold: cfg.VotesThreshold,
		RoundPeriod:    cfg.RoundPeriod,
		HaltDuration:   cfg.HaltDuration,
	}
}

// NewNode translates the file/env config into node options. The returned
// node has not been started.
func NewNode(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*vaultguard.Node, error) {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	proposers := make([]common.Address, 0, len(cfg.Proposers))
	for _, p := range cfg.Proposers {
		proposers = append(proposers, common.Address(p))
	}
	opts := []vaultguard.ConfigOptionFunc{
		vaultguard.WithLogger(logger),
		vaultguard.WithDatabasePath(cfg.DatabasePath),
		vaultguard.WithBlobPlugin(cfg.BlobPlugin),
		vaultguard.WithMetadataPlugin(cfg.MetadataPlugin),
		vaultguard.WithMetadataDSN(cfg.MetadataDSN),
		vaultguard.WithOwner(common.Address(cfg.Owner)),
		vaultguard.WithTimelockPeriod(cfg.TimelockPeriod),
		vaultguard.WithExecutionPeriod(cfg.ExecutionPeriod),
		vaultguard.WithStrategy(cfg.Strategy),
		vaultguard.WithProposers(proposers...),
		vaultguard.WithProposerWeight(cfg.ProposerWeight),
		vaultguard.WithTracing(cfg.Tracing),
		vaultguard.WithTracingStdout(cfg.TracingStdout),
		vaultguard.WithShutdownTimeout(shutdownTimeout),
	}
	if promRegistry != nil {
		opts = append(opts, vaultguard.WithPrometheusRegistry(promRegistry))
	}
	if cfg.Linear.Enabled {
		opts = append(
			opts,
			vaultguard.WithLinearStrategy(vaultguard.LinearStrategyConfig{
				VotingPeriod: cfg.Linear.VotingPeriod,
				Quorum:       cfg.Linear.Quorum,
				Basis:        cfg.Linear.Basis,
			}),
		)
	}
	if veto := overrideConfig(cfg.Veto); veto != nil {
		opts = append(opts, vaultguard.WithVeto(*veto))
	}
	if freeze := overrideConfig(cfg.Freeze); freeze != nil {
		opts = append(opts, vaultguard.WithFreeze(*freeze))
	}
	return vaultguard.New(vaultguard.NewConfig(opts...))
}

// Open builds and starts a node for one-shot administrative commands
func Open(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*vaultguard.Node, error) {
	n, err := NewNode(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	if err := n.Start(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// Run starts the node and serves metrics until a signal arrives
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	// Enable metrics with default prometheus registry
	n, err := NewNode(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	if err := n.Start(signalCtx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "node",
	)

	g, gctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if signalCtx.Err() != nil {
			logger.Info("signal received, initiating graceful shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
		return nil
	})
	runErr := g.Wait()
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	}
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	logger.Info("shutdown complete")
	return runErr
}
