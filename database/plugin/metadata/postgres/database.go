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

package postgres

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var ErrNoDSN = errors.New("postgres metadata store requires a DSN")

// MetadataStorePostgres keeps the archive in a shared Postgres database, for
// deployments that query proposal history from outside the node
type MetadataStorePostgres struct {
	promRegistry    prometheus.Registerer
	db              *gorm.DB
	logger          *slog.Logger
	metrics         *metadataMetrics
	dsn             string
	maxOpenConns    int
	connMaxLifetime time.Duration
}

func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	d := &MetadataStorePostgres{
		maxOpenConns:    10,
		connMaxLifetime: time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.dsn = strings.TrimSpace(d.dsn)
	if d.dsn == "" {
		return nil, ErrNoDSN
	}
	// Note: the connection is opened in Start()
	return d, nil
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	metadataDb, err := gorm.Open(
		postgres.Open(d.dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
	if err != nil {
		return err
	}
	d.db = metadataDb
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(d.maxOpenConns)
	sqlDB.SetMaxOpenConns(d.maxOpenConns)
	sqlDB.SetConnMaxLifetime(d.connMaxLifetime)
	d.metrics = newMetadataMetrics(d.promRegistry)
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if err := d.db.AutoMigrate(&commitMarker{}); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

func (d *MetadataStorePostgres) Close() error {
	// Start may have failed or never been called
	if d.db == nil {
		return nil
	}
	db, err := d.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (d *MetadataStorePostgres) DB() *gorm.DB {
	return d.db
}

func (d *MetadataStorePostgres) Transaction() types.Txn {
	tx := d.db.Begin()
	if tx.Error != nil {
		d.logger.Error(
			"failed to begin transaction",
			"component", "database",
			"error", tx.Error,
		)
	}
	return &postgresTxn{store: d, tx: tx}
}

func (d *MetadataStorePostgres) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return d.db, nil
	}
	pTxn, ok := txn.(*postgresTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if pTxn.store != d {
		return nil, errors.New("transaction from different store")
	}
	if pTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if pTxn.tx.Error != nil {
		return nil, pTxn.tx.Error
	}
	return pTxn.tx, nil
}
