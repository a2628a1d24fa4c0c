// Package metrics exposes Prometheus instrumentation for administration calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records facade calls and roster mutations.
type Collector struct {
	calls        *prometheus.CounterVec
	callLatency  *prometheus.HistogramVec
	rejectedMuts *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_admin_calls_total",
			Help: "Administration backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_admin_call_duration_seconds",
			Help:    "Administration backend call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		rejectedMuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_admin_rejected_mutations_total",
			Help: "Role changes rejected before reaching the backend.",
		}, []string{"reason"}),
	}

	reg.MustRegister(c.calls, c.callLatency, c.rejectedMuts)
	return c
}

// ObserveCall records one backend call.
func (c *Collector) ObserveCall(op, outcome string, elapsed time.Duration) {
	c.calls.WithLabelValues(op, outcome).Inc()
	c.callLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRejectedMutation records a role change refused locally.
func (c *Collector) ObserveRejectedMutation(reason string) {
	c.rejectedMuts.WithLabelValues(reason).Inc()
}

// RegisterSessionGauge exposes the number of operator sessions reported by count.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "portal_admin_sessions",
		Help: "Operator view models currently held.",
	}, func() float64 { return float64(count()) }))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
