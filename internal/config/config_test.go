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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, `
owner: admin
databasePath: /var/lib/vaultguard
timelockPeriod: 3600
strategy: linear
proposers:
  - alice
  - bob
linear:
  enabled: true
  votingPeriod: 600
  quorum: 1000
  basis: 500000
veto:
  enabled: true
  owner: council
  votesThreshold: 100
  roundPeriod: 3600
  haltDuration: 86400
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.Owner)
	assert.Equal(t, "/var/lib/vaultguard", cfg.DatabasePath)
	assert.Equal(t, uint64(3600), cfg.TimelockPeriod)
	// Untouched defaults survive
	assert.Equal(t, uint64(259200), cfg.ExecutionPeriod)
	assert.Equal(t, DefaultBlobPlugin, cfg.BlobPlugin)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Proposers)
	assert.Equal(t, uint64(500000), cfg.Linear.Basis)
	assert.True(t, cfg.Veto.Enabled)
	assert.Equal(t, "council", cfg.Veto.Owner)
	assert.Equal(t, uint64(86400), cfg.Veto.HaltDuration)
	assert.False(t, cfg.Freeze.Enabled)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, "owner: admin\nmetricsPort: 9000\n")
	t.Setenv("VAULTGUARD_METRICS_PORT", "9100")
	t.Setenv("VAULTGUARD_FREEZE_ENABLED", "true")
	t.Setenv("VAULTGUARD_FREEZE_VOTES_THRESHOLD", "7")
	t.Setenv("VAULTGUARD_FREEZE_ROUND_PERIOD", "60")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9100), cfg.MetricsPort)
	assert.True(t, cfg.Freeze.Enabled)
	assert.Equal(t, uint64(7), cfg.Freeze.VotesThreshold)
	assert.Equal(t, uint64(60), cfg.Freeze.RoundPeriod)
}

func TestLoadConfigInvalid(t *testing.T) {
	testDefs := []struct {
		name    string
		content string
	}{
		{name: "no owner", content: "strategy: manual\n"},
		{name: "unknown strategy", content: "owner: a\nstrategy: quadratic\n"},
		{name: "linear disabled", content: "owner: a\nstrategy: linear\n"},
		{name: "veto without threshold", content: "owner: a\nveto:\n  enabled: true\n  roundPeriod: 5\n"},
		{name: "bad timeout", content: "owner: a\nshutdownTimeout: soon\n"},
		{name: "bad yaml", content: "owner: [\n"},
		{name: "postgres without dsn", content: "owner: a\nmetadataPlugin: postgres\n"},
		{name: "mysql without dsn", content: "owner: a\nmetadataPlugin: mysql\n"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			resetGlobalConfig()
			_, err := LoadConfig(writeConfig(t, testDef.content))
			require.Error(t, err)
		})
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := defaultConfig()
	d, err := cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
	cfg.ShutdownTimeout = "5s"
	d, err = cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}
