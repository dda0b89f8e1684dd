// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// TurnsTotal counts processed turns by resulting confidence band.
	TurnsTotal *prometheus.CounterVec

	// TurnDuration observes end-to-end turn processing time.
	TurnDuration prometheus.Histogram

	// SkillExecutions counts skill executions by skill name and status
	// (ok, error, timeout).
	SkillExecutions *prometheus.CounterVec

	// LoopSignals counts loop guard outcomes by status.
	LoopSignals *prometheus.CounterVec

	// ConfidenceScore tracks the latest confidence score per case.
	ConfidenceScore *prometheus.GaugeVec
}

// New creates the engine metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests for isolation.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converge",
			Name:      "turns_total",
			Help:      "Processed turns by resulting confidence band.",
		}, []string{"band"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "converge",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		SkillExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converge",
			Name:      "skill_executions_total",
			Help:      "Skill executions by skill name and status.",
		}, []string{"skill", "status"}),
		LoopSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converge",
			Name:      "loop_signals_total",
			Help:      "Loop guard outcomes by status.",
		}, []string{"status"}),
		ConfidenceScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "converge",
			Name:      "confidence_score",
			Help:      "Latest aggregated confidence score per case.",
		}, []string{"case_id"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TurnsTotal,
			m.TurnDuration,
			m.SkillExecutions,
			m.LoopSignals,
			m.ConfidenceScore,
		)
	}
	return m
}
