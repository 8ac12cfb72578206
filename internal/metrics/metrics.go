// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package metrics holds the Prometheus collectors for postviews.
//
// Collectors register with the default registry through promauto and are
// exposed by the HTTP surface at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics

	ViewsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_views_recorded_total",
			Help: "Observations appended to the local view log",
		},
		[]string{"source"},
	)

	ViewsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_views_deduplicated_total",
			Help: "trackView calls suppressed by the dedup window",
		},
		[]string{"source"},
	)

	ViewsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postviews_views_evicted_total",
			Help: "Observations evicted to keep the view log within capacity",
		},
	)

	ViewsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_views_purged_total",
			Help: "Observations removed by retention or clear-all",
		},
		[]string{"reason"}, // "retention", "clear_all"
	)

	ViewLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postviews_view_log_size",
			Help: "Current number of observations in the view log",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postviews_active_sessions",
			Help: "Open duration-measurement sessions",
		},
	)

	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postviews_session_duration_seconds",
			Help:    "Measured view durations",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"source"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_store_errors_total",
			Help: "Persistent store failures",
		},
		[]string{"operation"}, // "load", "save", "clear", "decode"
	)

	FallbackServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postviews_location_fallback_total",
			Help: "Top-locations queries answered with placeholder data",
		},
	)

	// Remote sync metrics

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_remote_requests_total",
			Help: "Remote backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	RemoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postviews_remote_request_duration_seconds",
			Help:    "Remote backend call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RemoteInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postviews_remote_in_flight",
			Help: "Background remote calls not yet finished",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event and API metrics

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_events_published_total",
			Help: "Local view events published",
		},
		[]string{"result"}, // "ok", "error"
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postviews_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postviews_api_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postviews_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postviews_api_active_requests",
			Help: "HTTP requests currently being served",
		},
	)

	RetentionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postviews_retention_runs_total",
			Help: "Scheduled old-view purges executed",
		},
	)
)

// RecordRemoteCall records the outcome and latency of a remote call.
func RecordRemoteCall(operation, outcome string, duration time.Duration) {
	RemoteRequests.WithLabelValues(operation, outcome).Inc()
	RemoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSessionDuration observes a closed session.
func RecordSessionDuration(source string, ms int64) {
	SessionDuration.WithLabelValues(source).Observe(float64(ms) / 1000)
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
