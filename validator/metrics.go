package validator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks validation outcomes.
type Metrics struct {
	findings *prometheus.CounterVec
	checks   prometheus.Counter
}

// NewMetrics registers the validator's collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "market_validator",
				Name:      "findings_total",
				Help:      "Validation findings by severity.",
			},
			[]string{"severity"},
		),
		checks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "market_validator",
				Name:      "checks_total",
				Help:      "Validation checks executed.",
			},
		),
	}
	registry.MustRegister(m.findings, m.checks)
	return m
}

func (m *Metrics) observe(result *Result) {
	m.checks.Add(float64(result.Checked))
	m.findings.WithLabelValues("error").Add(float64(result.ErrorCount()))
	m.findings.WithLabelValues("warning").Add(float64(result.WarningCount()))
}
