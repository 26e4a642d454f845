// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesIngested tracks inbound messages accepted by the pipeline.
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_ingested_total",
			Help: "Inbound messages accepted by the ingestion pipeline",
		},
		[]string{"tenant_id", "platform"},
	)

	// DuplicatesSuppressed tracks inbound events dropped by the duplicate guard.
	DuplicatesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_duplicates_suppressed_total",
			Help: "Inbound events dropped because their platform message id was already ingested",
		},
		[]string{"tenant_id", "platform"},
	)

	// EventsSkipped tracks raw platform events the normalizer declined.
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_skipped_total",
			Help: "Raw platform events with no normalizable content",
		},
		[]string{"platform", "reason"}, // reason: normalize_error|unhandled_type
	)

	// CasesTotal tracks case dedup outcomes.
	CasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_cases_total",
			Help: "Case dedup engine outcomes",
		},
		[]string{"tenant_id", "outcome"}, // outcome: created|merged
	)

	// ClassifierFallbacks tracks classifier calls that fell back to the default triple.
	ClassifierFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_classifier_fallbacks_total",
			Help: "Classifier invocations recovered with the fallback reply",
		},
		[]string{"reason"}, // reason: call_error|parse_error|no_config
	)

	// ClassifierDuration tracks classifier round-trip latency.
	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_classifier_duration_seconds",
			Help:    "Classifier round-trip latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider", "status"},
	)

	// BroadcastFailures tracks swallowed broadcast publish errors.
	BroadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_broadcast_failures_total",
			Help: "Broadcast publishes that failed and were dropped",
		},
		[]string{"event"},
	)

	// NotificationsCreated tracks operator notifications emitted.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_notifications_created_total",
			Help: "Operator notifications created by the notification filter",
		},
		[]string{"tenant_id", "kind"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordClassifier records the outcome of one classifier round trip.
func RecordClassifier(provider, status string, seconds float64) {
	ClassifierDuration.WithLabelValues(provider, status).Observe(seconds)
}
