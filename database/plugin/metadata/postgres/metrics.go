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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metadataMetricNamePrefix = "database_metadata_"

type metadataMetrics struct {
	commits      prometheus.Counter
	commitErrors prometheus.Counter
	records      *prometheus.CounterVec
}

func newMetadataMetrics(promRegistry prometheus.Registerer) *metadataMetrics {
	factory := promauto.With(promRegistry)
	return &metadataMetrics{
		commits: factory.NewCounter(prometheus.CounterOpts{
			Name: metadataMetricNamePrefix + "commits_total",
			Help: "number of committed metadata transactions",
		}),
		commitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: metadataMetricNamePrefix + "commit_errors_total",
			Help: "number of metadata transaction commits that failed",
		}),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metadataMetricNamePrefix + "records_written_total",
				Help: "number of archive records written, by table",
			},
			[]string{"table"},
		),
	}
}
