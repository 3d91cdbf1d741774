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

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/vaultguard/database/plugin"
	"github.com/blinklabs-io/vaultguard/database/plugin/blob"
	_ "github.com/blinklabs-io/vaultguard/database/plugin/blob/badger"
	"github.com/blinklabs-io/vaultguard/database/plugin/metadata"
	_ "github.com/blinklabs-io/vaultguard/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/vaultguard/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/vaultguard/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// ErrNotFound is returned when a key does not exist in the blob store
var ErrNotFound = types.ErrBlobKeyNotFound

// Config holds the database configuration
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	BlobPlugin     string
	MetadataPlugin string
	// DataDir selects on-disk storage. Leave empty for an in-memory database.
	DataDir string
	// MetadataDSN is passed to metadata plugins that connect to a server
	MetadataDSN string
}

// Database pairs the blob store holding canonical component state with the
// metadata store holding the relational archive
type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	dataDir  string
}

func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	blobPlugin := config.BlobPlugin
	if blobPlugin == "" {
		blobPlugin = DefaultBlobPlugin
	}
	metadataPlugin := config.MetadataPlugin
	if metadataPlugin == "" {
		metadataPlugin = DefaultMetadataPlugin
	}
	pluginOpts := plugin.PluginOptions{
		DataDir:      config.DataDir,
		MetadataDSN:  config.MetadataDSN,
		Logger:       logger,
		PromRegistry: config.PromRegistry,
	}
	blobDb, err := blob.New(blobPlugin, pluginOpts)
	if err != nil {
		return nil, err
	}
	metadataDb, err := metadata.New(metadataPlugin, pluginOpts)
	if err != nil {
		_ = blobDb.Close()
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  config.DataDir,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	logger.Debug(
		"database opened",
		"component", "database",
		"blob", blobPlugin,
		"metadata", metadataPlugin,
		"in_memory", config.DataDir == "",
	)
	return db, nil
}

func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

func (d *Database) DataDir() string {
	return d.dataDir
}

func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a transaction. A read-write transaction spans both
// stores, a read-only one only the blob store.
func (d *Database) Transaction(readWrite bool) *Txn {
	if readWrite {
		return NewTxn(d, true)
	}
	return NewBlobOnlyTxn(d, false)
}

func (d *Database) Close() error {
	return errors.Join(
		d.metadata.Close(),
		d.blob.Close(),
	)
}
