package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
type Metrics struct {
	// Check outcomes by compliance result
	CheckOutcome *prometheus.CounterVec

	// Violations found, labelled by violation type
	Violations *prometheus.CounterVec

	// Full check latency including classification and aggregation
	CheckLatency prometheus.Histogram

	// Classification requests by outcome
	ClassifyOutcome *prometheus.CounterVec

	// Active tolerance schedule version
	ScheduleInfo *prometheus.GaugeVec
}

// New creates a new Metrics instance with all compliance module metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tridcheck_compliance_checks_total",
			Help: "Total compliance checks by outcome",
		}, []string{"outcome"}), // outcome: "compliant", "not_compliant", "error"

		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tridcheck_compliance_violations_total",
			Help: "Total violations detected by violation type",
		}, []string{"type"}),

		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tridcheck_compliance_check_duration_seconds",
			Help:    "Duration of full compliance evaluation including classification",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		ClassifyOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tridcheck_compliance_classifications_total",
			Help: "Total fee classification requests by outcome",
		}, []string{"outcome"}), // outcome: "ok", "error"

		ScheduleInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tridcheck_compliance_schedule_info",
			Help: "Active tolerance schedule version (value is always 1)",
		}, []string{"version"}),
	}
}

// IncrementCheckOutcome records a completed compliance check outcome.
func (m *Metrics) IncrementCheckOutcome(outcome string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(outcome).Inc()
	}
}

// CountViolations records the violations found during a check.
func (m *Metrics) CountViolations(violationType string, n int) {
	if m != nil && n > 0 {
		m.Violations.WithLabelValues(violationType).Add(float64(n))
	}
}

// ObserveCheckLatency records the total check duration.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}

// IncrementClassifyOutcome records a classification request outcome.
func (m *Metrics) IncrementClassifyOutcome(outcome string) {
	if m != nil {
		m.ClassifyOutcome.WithLabelValues(outcome).Inc()
	}
}

// SetScheduleVersion marks the tolerance schedule version currently in use.
func (m *Metrics) SetScheduleVersion(version string) {
	if m != nil {
		m.ScheduleInfo.WithLabelValues(version).Set(1)
	}
}
