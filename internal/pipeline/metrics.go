// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts turns by outcome and stage executions. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	turns       *prometheus.CounterVec
	stages      *prometheus.CounterVec
	stageErrors *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_agent_turns_total",
				Help: "Total number of chat turns completed, by outcome",
			},
			[]string{"outcome"},
		),
		stages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_agent_stage_runs_total",
				Help: "Total number of pipeline stage executions",
			},
			[]string{"stage"},
		),
		stageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_agent_stage_errors_total",
				Help: "Total number of turns aborted, by stage",
			},
			[]string{"stage"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_agent_turn_duration_seconds",
				Help:    "Duration of chat turns in seconds",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
	}
}

func (m *Metrics) stage(s Stage) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) failed(s Stage) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) completed(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(o.String()).Inc()
	m.duration.Observe(elapsed.Seconds())
}
