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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MysqlOptionFunc func(*MetadataStoreMysql)

func WithLogger(logger *slog.Logger) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.promRegistry = registry
	}
}

// WithDSN sets the go-sql-driver connection string,
// user:pass@tcp(host:3306)/dbname
func WithDSN(dsn string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.dsn = dsn
	}
}

func WithMaxOpenConns(n int) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.maxOpenConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.connMaxLifetime = d
	}
}

// WithCreateDatabase controls whether Start creates a missing database.
// It is on by default.
func WithCreateDatabase(create bool) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.createDatabase = create
	}
}
