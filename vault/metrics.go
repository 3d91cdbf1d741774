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

package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type vaultMetrics struct {
	calls   *prometheus.CounterVec
	balance prometheus.Gauge
	paidOut prometheus.Counter
}

func newVaultMetrics(promRegistry prometheus.Registerer) *vaultMetrics {
	factory := promauto.With(promRegistry)
	return &vaultMetrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_calls_total",
			Help: "transactions dispatched by the vault, by result",
		}, []string{"result"}),
		balance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vault_balance",
			Help: "native balance held by the vault",
		}),
		paidOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "vault_paid_out_total",
			Help: "native value sent out by the vault",
		}),
	}
}
