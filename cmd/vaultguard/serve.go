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
	"errors"
	"log/slog"
	"os"

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/internal/config"
	"github.com/blinklabs-io/vaultguard/internal/node"
	"github.com/spf13/cobra"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()
	if err := node.Run(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node and serve metrics",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
	return cmd
}

var errNoConfig = errors.New("no config found in context")

// withNode opens the node for the duration of one administrative command.
// The database is exclusive, so these cannot run against a serving node.
func withNode(cmd *cobra.Command, fn func(n *vaultguard.Node) error) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errNoConfig
	}
	logger := newLogger(cmd.ErrOrStderr(), slog.LevelWarn)
	n, err := node.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = n.Stop() }()
	return fn(n)
}

func addCallerFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "caller", "", "address the operation is performed as")
	_ = cmd.MarkFlagRequired("caller")
}
