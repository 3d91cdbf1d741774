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

package override

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const overrideMetricNamePrefix = "override_"

type controllerMetrics struct {
	votes       prometheus.Counter
	activations prometheus.Counter
	lifts       prometheus.Counter
	active      prometheus.Gauge
	lastHalt    prometheus.Gauge
	roundNonce  prometheus.Gauge
}

// Veto and freeze share one registry, so every series carries a kind label
func newControllerMetrics(
	promRegistry prometheus.Registerer,
	kind string,
) *controllerMetrics {
	factory := promauto.With(promRegistry)
	labels := prometheus.Labels{"kind": kind}
	return &controllerMetrics{
		votes: factory.NewCounter(prometheus.CounterOpts{
			Name:        overrideMetricNamePrefix + "votes_total",
			Help:        "override votes accepted",
			ConstLabels: labels,
		}),
		activations: factory.NewCounter(prometheus.CounterOpts{
			Name:        overrideMetricNamePrefix + "activations_total",
			Help:        "inactive to active override transitions",
			ConstLabels: labels,
		}),
		lifts: factory.NewCounter(prometheus.CounterOpts{
			Name:        overrideMetricNamePrefix + "lifts_total",
			Help:        "manual override lifts",
			ConstLabels: labels,
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name:        overrideMetricNamePrefix + "active",
			Help:        "1 while the override flag is set",
			ConstLabels: labels,
		}),
		lastHalt: factory.NewGauge(prometheus.GaugeOpts{
			Name:        overrideMetricNamePrefix + "last_halt_timestamp",
			Help:        "instant of the most recent halt",
			ConstLabels: labels,
		}),
		roundNonce: factory.NewGauge(prometheus.GaugeOpts{
			Name:        overrideMetricNamePrefix + "round_nonce",
			Help:        "nonce of the live voting round",
			ConstLabels: labels,
		}),
	}
}
