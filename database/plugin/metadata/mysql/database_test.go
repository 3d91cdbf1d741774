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

package mysql

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blinklabs-io/vaultguard/database/plugin"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m, err := NewWithOptions(
		WithDSN("  vaultguard:secret@tcp(db.local:3306)/archive  "),
		WithLogger(logger),
		WithPromRegistry(reg),
		WithMaxOpenConns(4),
		WithConnMaxLifetime(time.Minute),
		WithCreateDatabase(false),
	)
	require.NoError(t, err)
	assert.Equal(t, "vaultguard", m.config.User)
	assert.Equal(t, "db.local:3306", m.config.Addr)
	assert.Equal(t, "archive", m.config.DBName)
	assert.True(t, m.config.ParseTime)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, reg, m.promRegistry)
	assert.Equal(t, 4, m.maxOpenConns)
	assert.Equal(t, time.Minute, m.connMaxLifetime)
	assert.False(t, m.createDatabase)
}

func TestDSNValidation(t *testing.T) {
	_, err := NewWithOptions(WithDSN("   "))
	require.ErrorIs(t, err, ErrNoDSN)
	_, err = NewWithOptions(WithDSN("vaultguard@tcp(db.local:3306"))
	require.Error(t, err)

	// The registry hands back a plugin that fails on start
	p := NewFromPluginOptions(plugin.PluginOptions{})
	require.ErrorIs(t, p.Start(), ErrNoDSN)
}

func TestRegistered(t *testing.T) {
	entry := plugin.GetPlugin(plugin.PluginTypeMetadata, "mysql")
	require.NotNil(t, entry)
	assert.Equal(t, "MySQL relational database", entry.Description)
}

func TestStartUnreachable(t *testing.T) {
	m, err := NewWithOptions(
		WithDSN("vaultguard@tcp(127.0.0.1:1)/archive?timeout=1s"),
	)
	require.NoError(t, err)
	require.Error(t, m.Start())
	require.NoError(t, m.Close())
}

type otherTxn struct{}

func (otherTxn) Commit() error   { return nil }
func (otherTxn) Rollback() error { return nil }

func TestResolveDBRejectsForeignTxn(t *testing.T) {
	m, err := NewWithOptions(WithDSN("root@tcp(localhost:3306)/archive"))
	require.NoError(t, err)
	_, err = m.resolveDB(otherTxn{})
	require.ErrorIs(t, err, types.ErrTxnWrongType)

	other, err := NewWithOptions(WithDSN("root@tcp(localhost:3306)/archive"))
	require.NoError(t, err)
	_, err = m.resolveDB(&mysqlTxn{store: other})
	require.Error(t, err)

	_, err = m.resolveDB(&mysqlTxn{store: m, finished: true})
	require.ErrorIs(t, err, types.ErrTxnFinished)
}
