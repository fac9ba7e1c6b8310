// Copyright Project Conflux Authors
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

// Package metrics provides Prometheus metrics for the dataflow engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	wavesTotal          prometheus.Counter
	waveDurationSeconds prometheus.Summary
	computationsTotal   *prometheus.CounterVec
	cacheHitsTotal      prometheus.Counter
	suppressedTotal     *prometheus.CounterVec
	deadlocksTotal      prometheus.Counter
}

const (
	WavesTotal          = "conflux_waves_total"
	WaveDurationSeconds = "conflux_wave_duration_seconds"
	ComputationsTotal   = "conflux_computations_total"
	CacheHitsTotal      = "conflux_cache_hits_total"
	SuppressedTotal     = "conflux_suppressed_total"
	DeadlocksTotal      = "conflux_deadlocks_total"
)

// NewMetrics creates a new set of metrics and registers them with the
// supplied registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := Metrics{
		wavesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: WavesTotal,
				Help: "Total number of update waves driven to completion.",
			},
		),
		waveDurationSeconds: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name:       WaveDurationSeconds,
				Help:       "Time spent settling one update wave.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
		),
		computationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ComputationsTotal,
				Help: "Total number of user computations run, by kind.",
			},
			[]string{"kind"},
		),
		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: CacheHitsTotal,
				Help: "Total number of fetches served from an output's cache slot.",
			},
		),
		suppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: SuppressedTotal,
				Help: "Total number of propagations stopped by a condition, by phase.",
			},
			[]string{"phase"},
		),
		deadlocksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: DeadlocksTotal,
				Help: "Total number of waves failed on ready-set starvation.",
			},
		),
	}
	registry.MustRegister(
		m.wavesTotal,
		m.waveDurationSeconds,
		m.computationsTotal,
		m.cacheHitsTotal,
		m.suppressedTotal,
		m.deadlocksTotal,
	)
	return &m
}

// RecordWave accounts one settled wave.
func (m *Metrics) RecordWave(d time.Duration) {
	m.wavesTotal.Inc()
	m.waveDurationSeconds.Observe(d.Seconds())
}

// RecordComputation accounts one user computation of the given kind
// ("getter" or "setter").
func (m *Metrics) RecordComputation(kind string) {
	m.computationsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheHit accounts one fetch served without running a getter.
func (m *Metrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordSuppressed accounts one propagation stopped by a condition in
// the given phase ("announce" or "notify").
func (m *Metrics) RecordSuppressed(phase string) {
	m.suppressedTotal.WithLabelValues(phase).Inc()
}

// RecordDeadlock accounts one wave failed on starvation.
func (m *Metrics) RecordDeadlock() {
	m.deadlocksTotal.Inc()
}
