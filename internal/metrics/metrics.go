// Package metrics provides Prometheus metrics for deepforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SessionsTotal *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	CommitsTotal  prometheus.Counter
	MergesTotal   *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepforge_sessions_total",
				Help: "Collaboration sessions by terminal status.",
			},
			[]string{"status"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deepforge_phase_duration_seconds",
				Help:    "Workflow phase duration by phase.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		CommitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deepforge_commits_total",
				Help: "Total commits recorded across all repositories.",
			},
		),
		MergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepforge_merges_total",
				Help: "Branch merges by result.",
			},
			[]string{"result"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deepforge_errors_total",
				Help: "Total errors by component and type.",
			},
			[]string{"component", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SessionsTotal)
	reg.MustRegister(m.PhaseDuration)
	reg.MustRegister(m.CommitsTotal)
	reg.MustRegister(m.MergesTotal)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSession increments the session counter for a terminal status.
func (m *Metrics) RecordSession(status string) {
	m.SessionsTotal.WithLabelValues(status).Inc()
}

// ObservePhase records a workflow phase duration.
func (m *Metrics) ObservePhase(phase string, seconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordCommit increments the commit counter.
func (m *Metrics) RecordCommit() {
	m.CommitsTotal.Inc()
}

// RecordMerge increments the merge counter.
func (m *Metrics) RecordMerge(result string) {
	m.MergesTotal.WithLabelValues(result).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errType string) {
	m.ErrorsTotal.WithLabelValues(component, errType).Inc()
}
