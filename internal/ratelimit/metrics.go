package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for rate limiting.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics creates and registers rate limit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tridcheck_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome (allowed, rejected, error).",
		}, []string{"class", "outcome"}),
	}
}

// IncrementDecision records one rate limit decision. Nil-safe.
func (m *Metrics) IncrementDecision(class EndpointClass, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(string(class), outcome).Inc()
}
