// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Timeline metrics
	TimelineFetches       *prometheus.CounterVec
	TimelineFetchLatency  prometheus.Histogram
	TimelineEntriesServed prometheus.Counter
	CursorDecodeFailures  prometheus.Counter

	// Upstream metrics
	UpstreamCallLatency *prometheus.HistogramVec
	UpstreamCallErrors  *prometheus.CounterVec

	// Processor metrics
	ProcessorEvents    *prometheus.CounterVec
	ReplayRunsTotal    *prometheus.CounterVec
	ReplayEventsServed prometheus.Counter
	StreamReconnects   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "loyalty_service"
	}

	return &Metrics{
		// Timeline metrics
		TimelineFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "fetches_total",
			Help:      "Total number of timeline fetches by status",
		}, []string{"status"}),
		TimelineFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "fetch_duration_seconds",
			Help:      "Timeline fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TimelineEntriesServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "entries_served_total",
			Help:      "Total number of timeline entries returned to callers",
		}),
		CursorDecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "cursor_decode_failures_total",
			Help:      "Total number of malformed cursor tokens that restarted pagination",
		}),

		// Upstream metrics
		UpstreamCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Upstream loyalty API call latency in seconds by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		UpstreamCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_errors_total",
			Help:      "Total number of failed upstream calls by endpoint",
		}, []string{"endpoint"}),

		// Processor metrics
		ProcessorEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_total",
			Help:      "Total number of processor events by provider and outcome",
		}, []string{"provider", "outcome"}),
		ReplayRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "replay_runs_total",
			Help:      "Total number of replay runs by status",
		}, []string{"status"}),
		ReplayEventsServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "replay_events_delivered_total",
			Help:      "Total number of archived events delivered by replay",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "stream_reconnects_total",
			Help:      "Total number of firehose reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTimelineFetch records one timeline fetch and its latency.
func RecordTimelineFetch(status string, seconds float64, entries int) {
	DefaultMetrics.TimelineFetches.WithLabelValues(status).Inc()
	DefaultMetrics.TimelineFetchLatency.Observe(seconds)
	DefaultMetrics.TimelineEntriesServed.Add(float64(entries))
}

// RecordCursorDecodeFailure counts a malformed cursor token.
func RecordCursorDecodeFailure() {
	DefaultMetrics.CursorDecodeFailures.Inc()
}

// RecordUpstreamCall records an upstream loyalty API call.
func RecordUpstreamCall(endpoint string, seconds float64, err error) {
	DefaultMetrics.UpstreamCallLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.UpstreamCallErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordProcessorEvent counts a processor event by provider and outcome.
func RecordProcessorEvent(provider, outcome string) {
	DefaultMetrics.ProcessorEvents.WithLabelValues(provider, outcome).Inc()
}

// RecordReplayRun records a completed replay run.
func RecordReplayRun(status string, delivered int) {
	DefaultMetrics.ReplayRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ReplayEventsServed.Add(float64(delivered))
}

// RecordStreamReconnect counts a firehose reconnect attempt.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
