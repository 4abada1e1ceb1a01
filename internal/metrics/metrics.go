// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"store"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_cache_misses_total",
			Help: "Total number of cache misses (absent or expired)",
		},
		[]string{"store"},
	)

	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_cache_sets_total",
			Help: "Total number of cache writes",
		},
		[]string{"store"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_cache_evictions_total",
			Help: "Total number of least-recently-used evictions",
		},
		[]string{"store"},
	)

	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_cache_expirations_total",
			Help: "Total number of entries removed because their TTL elapsed",
		},
		[]string{"store"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfcore_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"store"},
	)

	// Monitor Metrics
	MonitorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_monitor_requests_total",
			Help: "Total number of request metrics recorded",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	MonitorResponseTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfcore_monitor_response_time_seconds",
			Help:    "Response times reported to the metrics recorder",
			Buckets: prometheus.DefBuckets,
		},
	)

	MonitorAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_monitor_alerts_total",
			Help: "Performance alerts by kind and delivery result",
		},
		[]string{"kind", "result"}, // result: "emitted", "dropped", "suppressed"
	)

	// Error Metrics
	ErrorsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_errors_logged_total",
			Help: "Total number of errors logged by type",
		},
		[]string{"type"},
	)

	// Task Metrics
	TasksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfcore_tasks_submitted_total",
			Help: "Total number of background tasks submitted",
		},
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_tasks_finished_total",
			Help: "Total number of background tasks finished by outcome",
		},
		[]string{"outcome"}, // "completed", "failed", "cancelled"
	)

	TasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfcore_tasks_running",
			Help: "Current number of running background tasks",
		},
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfcore_task_duration_seconds",
			Help:    "Execution time of background tasks",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	// Stream Metrics
	StreamRecordsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_stream_records_pushed_total",
			Help: "Total number of records accepted into stream buffers",
		},
		[]string{"stream"},
	)

	StreamRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_stream_records_dropped_total",
			Help: "Total number of buffered records discarded by drop-oldest overflow",
		},
		[]string{"stream"},
	)

	StreamRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_stream_records_processed_total",
			Help: "Total number of records drained and enriched",
		},
		[]string{"stream"},
	)

	StreamEnrichmentErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_stream_enrichment_errors_total",
			Help: "Total number of records that failed enrichment",
		},
		[]string{"stream"},
	)

	StreamBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfcore_stream_batch_size",
			Help:    "Number of records in each emitted batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfcore_streams_active",
			Help: "Current number of active streams",
		},
	)

	// Balancer Metrics
	BalancerSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_balancer_selections_total",
			Help: "Instance selections by algorithm and outcome",
		},
		[]string{"service", "algorithm", "outcome"}, // outcome: "selected", "no_instance"
	)

	BalancerResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfcore_balancer_response_time_seconds",
			Help:    "Response times recorded for routed instances",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfcore_circuit_breaker_state",
			Help: "Per-instance circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "instance"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_circuit_breaker_requests_total",
			Help: "Routed calls by instance and result",
		},
		[]string{"service", "instance", "result"}, // "success", "failure", "rejected"
	)

	// Diagnostics API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfcore_http_requests_total",
			Help: "Total number of diagnostics API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfcore_http_request_duration_seconds",
			Help:    "Diagnostics API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfcore_http_active_requests",
			Help: "Current number of in-flight diagnostics API requests",
		},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfcore_http_rate_limited_total",
			Help: "Diagnostics API requests rejected by the per-IP rate limit",
		},
	)
)

// RecordCacheLookup records a cache hit or miss for the named store.
func RecordCacheLookup(store string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(store).Inc()
	} else {
		CacheMisses.WithLabelValues(store).Inc()
	}
}

// RecordRequestMetric records one metric accepted by the recorder.
func RecordRequestMetric(responseTime time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	MonitorRequests.WithLabelValues(outcome).Inc()
	MonitorResponseTime.Observe(responseTime.Seconds())
}

// RecordAlert records the delivery result of a performance alert.
func RecordAlert(kind, result string) {
	MonitorAlerts.WithLabelValues(kind, result).Inc()
}

// RecordTaskFinished records a task reaching a terminal state.
func RecordTaskFinished(outcome string, duration time.Duration) {
	TasksFinished.WithLabelValues(outcome).Inc()
	if duration > 0 {
		TaskDuration.Observe(duration.Seconds())
	}
}

// RecordSelection records the result of an instance selection.
func RecordSelection(service, algorithm string, found bool) {
	outcome := "selected"
	if !found {
		outcome = "no_instance"
	}
	BalancerSelections.WithLabelValues(service, algorithm, outcome).Inc()
}

// RecordCircuitBreakerState maps a breaker state to its gauge value.
// state is one of "closed", "half-open", "open".
func RecordCircuitBreakerState(service, instance, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(service, instance).Set(v)
}

// RecordAPIRequest records a diagnostics API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
