package deployer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks orchestration outcomes per stage.
type Metrics struct {
	stagesTotal    *prometheus.CounterVec
	deployDuration prometheus.Histogram
}

// NewMetrics registers the orchestrator's collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		stagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "market_deployer",
				Name:      "stages_total",
				Help:      "Orchestration stages by outcome (deployed, reused, skipped, failed).",
			},
			[]string{"stage", "outcome"},
		),
		deployDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "market_deployer",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a full orchestration run.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
	registry.MustRegister(m.stagesTotal, m.deployDuration)
	return m
}

func (m *Metrics) observeStage(stage, outcome string) {
	m.stagesTotal.WithLabelValues(stage, outcome).Inc()
}
