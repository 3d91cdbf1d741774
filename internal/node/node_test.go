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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeFromConfig(t *testing.T) {
	cfg := &config.Config{
		DatabasePath:    "",
		BlobPlugin:      config.DefaultBlobPlugin,
		MetadataPlugin:  config.DefaultMetadataPlugin,
		Owner:           "admin",
		Strategy:        "linear",
		TimelockPeriod:  60,
		ExecutionPeriod: 60,
		ShutdownTimeout: "1s",
		Proposers:       []string{"alice"},
		Linear: config.LinearConfig{
			Enabled:      true,
			VotingPeriod: 30,
			Quorum:       10,
		},
		Veto: config.OverrideConfig{
			Enabled:        true,
			VotesThreshold: 5,
			RoundPeriod:    10,
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	n, err := NewNode(cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop() })

	assert.NotNil(t, n.Linear())
	assert.NotNil(t, n.Veto())
	assert.Nil(t, n.Freeze())
	err = n.View(func(txn *database.Txn) error {
		settings, err := n.Governor().Config(txn)
		if err != nil {
			return err
		}
		assert.Equal(t, "linear", settings.Strategy)
		assert.Equal(t, uint64(60), settings.TimelockPeriod)
		return nil
	})
	require.NoError(t, err)
	// Allowlist is in effect
	err = n.Update(func(txn *database.Txn) error {
		_, err := n.Governor().SubmitProposal(
			context.Background(), txn, nil, "", common.Address("mallory"), nil,
		)
		return err
	})
	require.Error(t, err)
}

func TestNewNodeBadTimeout(t *testing.T) {
	cfg := &config.Config{Owner: "admin", ShutdownTimeout: "later"}
	_, err := NewNode(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
	require.Error(t, err)
}
