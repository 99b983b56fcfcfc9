package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the quoting engine collectors. It satisfies both the pricer
// observer and the snapshot recorder.
type Metrics struct {
	pricingRequests *prometheus.CounterVec
	pricingDuration prometheus.Histogram
	freezes         *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pricingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_requests_total",
			Help: "Pricing computations by result code.",
		}, []string{"result"}),
		pricingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_duration_seconds",
			Help:    "Time to load and price one part for every requested quantity.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		freezes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freeze_total",
			Help: "Freeze attempts by kind (batch, set) and result code.",
		}, []string{"kind", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimistic_conflicts_total",
			Help: "Writes rejected because the stored version moved.",
		}, []string{"entity"}),
	}
	reg.MustRegister(m.pricingRequests, m.pricingDuration, m.freezes, m.conflicts)
	return m
}

func (m *Metrics) ObservePricing(result string, d time.Duration) {
	m.pricingRequests.WithLabelValues(result).Inc()
	m.pricingDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveFreeze(kind, result string) {
	m.freezes.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveConflict(entity string) {
	m.conflicts.WithLabelValues(entity).Inc()
}
