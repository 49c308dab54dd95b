// Copyright 2026 AegisGate
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

package gatekeeper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the pipeline. Construct one per process with the
// process registry; tests pass their own registry to keep collectors
// isolated.
type Metrics struct {
	decisions     *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	findings      *prometheus.CounterVec
	incidents     *prometheus.CounterVec
	blocked       prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_decisions_total",
			Help: "Pipeline decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatekeeper_check_duration_seconds",
			Help:    "End-to-end pipeline check latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"kind"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_findings_total",
			Help: "Threat findings by type and severity.",
		}, []string{"type", "severity"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_incidents_total",
			Help: "Incidents raised by type and severity.",
		}, []string{"type", "severity"}),
		blocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_blocked_identities",
			Help: "Identities currently on the block list.",
		}),
	}
	reg.MustRegister(m.decisions, m.checkDuration, m.findings, m.incidents, m.blocked)
	return m
}

// NopMetrics returns metrics bound to a throwaway registry.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func (m *Metrics) observeDecision(kind string, d Decision, elapsed time.Duration) {
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	m.decisions.WithLabelValues(outcome, string(d.Reason)).Inc()
	m.checkDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) observeFindingCount(typ, severity string) {
	m.findings.WithLabelValues(typ, severity).Inc()
}

func (m *Metrics) observeIncident(typ, severity string) {
	m.incidents.WithLabelValues(typ, severity).Inc()
}

// SetBlockedIdentities updates the block list gauge.
func (m *Metrics) SetBlockedIdentities(n int) {
	m.blocked.Set(float64(n))
}
