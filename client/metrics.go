package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the backend API client.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	ErrorsTotal      *prometheus.CounterVec
	SubmissionsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_api_requests_total",
			Help: "Total backend API requests by action.",
		},
		[]string{"action"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_api_request_duration_seconds",
			Help:    "Backend API request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_api_errors_total",
			Help: "Total backend API errors by type.",
		},
		[]string{"error_type"},
	)
	submissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_submissions_total",
			Help: "Unified-entry submissions by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, errorsTotal, submissions)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ErrorsTotal:      errorsTotal,
		SubmissionsTotal: submissions,
	}
}

// IncRequest increments the request counter for an action.
func (m *Metrics) IncRequest(action string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(action).Inc()
}

// ObserveDuration records an API request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSubmission increments the submission counter for an outcome label.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}
