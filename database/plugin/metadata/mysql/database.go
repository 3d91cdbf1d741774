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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// MySQL server error for a missing schema
const errUnknownDatabase = 1049

var ErrNoDSN = errors.New("mysql metadata store requires a DSN")

// MetadataStoreMysql keeps the archive in a shared MySQL database
type MetadataStoreMysql struct {
	promRegistry    prometheus.Registerer
	db              *gorm.DB
	logger          *slog.Logger
	metrics         *metadataMetrics
	config          *mysql.Config
	dsn             string
	maxOpenConns    int
	connMaxLifetime time.Duration
	createDatabase  bool
}

func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	d := &MetadataStoreMysql{
		maxOpenConns:    10,
		connMaxLifetime: time.Hour,
		createDatabase:  true,
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
	cfg, err := mysql.ParseDSN(d.dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// Archive rows carry no time columns, but the gorm driver expects it
	cfg.ParseTime = true
	d.config = cfg
	return d, nil
}

func (d *MetadataStoreMysql) open(dsn string) (*gorm.DB, error) {
	return gorm.Open(
		gormmysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	dsn := d.config.FormatDSN()
	metadataDb, err := d.open(dsn)
	var mysqlErr *mysql.MySQLError
	if err != nil && d.createDatabase &&
		errors.As(err, &mysqlErr) && mysqlErr.Number == errUnknownDatabase {
		if createErr := d.ensureDatabase(); createErr != nil {
			return fmt.Errorf("create database %q: %w", d.config.DBName, createErr)
		}
		metadataDb, err = d.open(dsn)
	}
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
		"connected to mysql metadata store",
		"component", "database",
		"addr", d.config.Addr,
		"database", d.config.DBName,
	)
	return nil
}

// ensureDatabase connects without a schema and creates the configured one
func (d *MetadataStoreMysql) ensureDatabase() error {
	if d.config.DBName == "" {
		return errors.New("dsn names no database")
	}
	adminCfg := *d.config
	adminCfg.DBName = ""
	adminDb, err := d.open(adminCfg.FormatDSN())
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	name := strings.ReplaceAll(d.config.DBName, "`", "``")
	return adminDb.Exec("CREATE DATABASE IF NOT EXISTS `" + name + "`").Error
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

func (d *MetadataStoreMysql) Close() error {
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

func (d *MetadataStoreMysql) DB() *gorm.DB {
	return d.db
}

func (d *MetadataStoreMysql) Transaction() types.Txn {
	tx := d.db.Begin()
	if tx.Error != nil {
		d.logger.Error(
			"failed to begin transaction",
			"component", "database",
			"error", tx.Error,
		)
	}
	return &mysqlTxn{store: d, tx: tx}
}

func (d *MetadataStoreMysql) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return d.db, nil
	}
	mTxn, ok := txn.(*mysqlTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if mTxn.store != d {
		return nil, errors.New("transaction from different store")
	}
	if mTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if mTxn.tx.Error != nil {
		return nil, mTxn.tx.Error
	}
	return mTxn.tx, nil
}
