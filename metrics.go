package lyralink

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects allocation and resolution counters. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	allocations *prometheus.CounterVec
	collisions  prometheus.Counter
	attempts    prometheus.Histogram
	resolutions *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lyralink_allocations_total",
			Help: "Allocation requests by outcome (created or existing).",
		}, []string{"result"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lyralink_code_collisions_total",
			Help: "Candidate codes rejected because they were already taken.",
		}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lyralink_allocation_attempts",
			Help:    "Insert attempts needed to mint a new short code.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lyralink_resolutions_total",
			Help: "Resolve requests by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.allocations,
		m.collisions,
		m.attempts,
		m.resolutions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) allocated(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

func (m *Metrics) collided() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}

func (m *Metrics) observeAttempts(n int) {
	if m == nil {
		return
	}
	m.attempts.Observe(float64(n))
}

func (m *Metrics) resolved(result string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(result).Inc()
}
