// internal/app/system/metrics/metrics.go

// Package metrics registers the service's Prometheus metrics in a
// private registry so tests can construct it repeatedly without
// duplicate-collector panics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// Registry owns these metrics; the /metrics endpoint serves it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	reviewsSubmitted *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	exportsGenerated *prometheus.CounterVec
}

// New creates a registry and registers all collectors in it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "branchrate_request_duration_seconds",
				Help:    "Duration of handled requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		reviewsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branchrate_reviews_submitted_total",
				Help: "Accepted public review submissions.",
			},
			[]string{"rating"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branchrate_store_errors_total",
				Help: "MongoDB operation failures by collection.",
			},
			[]string{"collection"},
		),
		exportsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branchrate_exports_generated_total",
				Help: "CSV exports generated by kind.",
			},
			[]string{"kind"},
		),
	}
}

// ObserveRequest records a handled request's duration.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ReviewSubmitted counts an accepted submission by rating value.
func (m *Metrics) ReviewSubmitted(rating string) {
	m.reviewsSubmitted.WithLabelValues(rating).Inc()
}

// StoreError counts a failed store operation.
func (m *Metrics) StoreError(collection string) {
	m.storeErrors.WithLabelValues(collection).Inc()
}

// ExportGenerated counts a produced CSV export.
func (m *Metrics) ExportGenerated(kind string) {
	m.exportsGenerated.WithLabelValues(kind).Inc()
}
