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

package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type guardMetrics struct {
	allowed  prometheus.Counter
	rejected *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func newGuardMetrics(promRegistry prometheus.Registerer) *guardMetrics {
	factory := promauto.With(promRegistry)
	return &guardMetrics{
		allowed: factory.NewCounter(prometheus.CounterOpts{
			Name: "guard_allowed_total",
			Help: "transactions passing the pre-execution check",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_rejected_total",
			Help: "transactions rejected by the pre-execution check",
		}, []string{"reason"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_outcomes_total",
			Help: "dispatched transaction outcomes",
		}, []string{"outcome"}),
	}
}
