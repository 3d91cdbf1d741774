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

package governor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const governorMetricNamePrefix = "governor_"

type governorMetrics struct {
	submitted       prometheus.Counter
	executedTxs     prometheus.Counter
	completed       prometheus.Counter
	executionErrors prometheus.Counter
}

func newGovernorMetrics(promRegistry prometheus.Registerer) *governorMetrics {
	factory := promauto.With(promRegistry)
	return &governorMetrics{
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Name: governorMetricNamePrefix + "proposals_submitted_total",
			Help: "proposals submitted",
		}),
		executedTxs: factory.NewCounter(prometheus.CounterOpts{
			Name: governorMetricNamePrefix + "transactions_executed_total",
			Help: "proposal transactions executed",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Name: governorMetricNamePrefix + "proposals_executed_total",
			Help: "proposals whose every transaction has executed",
		}),
		executionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: governorMetricNamePrefix + "execution_errors_total",
			Help: "ExecuteProposal calls that failed",
		}),
	}
}
