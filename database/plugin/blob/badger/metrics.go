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

package badger

import (
	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const blobMetricNamePrefix = "database_blob_"

type blobMetrics struct {
	commits      prometheus.Counter
	commitErrors prometheus.Counter
	gcRuns       prometheus.Counter
}

// newBlobMetrics always returns usable collectors. With a nil registry they
// are simply never exported.
func newBlobMetrics(
	promRegistry prometheus.Registerer,
	db *badger.DB,
) *blobMetrics {
	factory := promauto.With(promRegistry)
	m := &blobMetrics{
		commits: factory.NewCounter(prometheus.CounterOpts{
			Name: blobMetricNamePrefix + "commits_total",
			Help: "number of committed blob transactions",
		}),
		commitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: blobMetricNamePrefix + "commit_errors_total",
			Help: "number of blob transaction commits that failed",
		}),
		gcRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: blobMetricNamePrefix + "gc_runs_total",
			Help: "number of successful value log GC passes",
		}),
	}
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: blobMetricNamePrefix + "lsm_size_bytes",
			Help: "size of the badger LSM tree",
		},
		func() float64 {
			lsm, _ := db.Size()
			return float64(lsm)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: blobMetricNamePrefix + "vlog_size_bytes",
			Help: "size of the badger value log",
		},
		func() float64 {
			_, vlog := db.Size()
			return float64(vlog)
		},
	)
	return m
}
