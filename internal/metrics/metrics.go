// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Circuit breaker state per AI operation
// - TTL cache efficiency
// - AI vendor and catalog call outcomes
// - Recommendation pipeline outcomes

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "listening_data"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics (AI operations and catalog client)
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// AI Vendor Metrics
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Duration of generative AI vendor calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 25},
		},
		[]string{"operation", "model"},
	)

	LLMCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_call_errors_total",
			Help: "Total number of AI vendor call errors",
		},
		[]string{"operation", "error_type"}, // error_type: "rate_limit", "timeout", "schema", "vendor"
	)

	LLMRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "llm_rate_limit_hits_total",
			Help: "Total number of vendor rate-limit responses",
		},
	)

	// Catalog Metrics
	CatalogCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_call_duration_seconds",
			Help:    "Duration of catalog API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CatalogSearchEscalations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_search_escalations",
			Help:    "Number of search strategies tried before a non-empty result",
			Buckets: []float64{1, 2, 3, 4},
		},
	)

	// Recommendation Pipeline Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"method", "outcome"}, // outcome: "ok", "rate_limited", "unparsable", "no_match", "duplicate_exhausted", "vendor_unavailable"
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"method"},
	)

	SelectionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_fallbacks_total",
			Help: "Total number of result selections that used the deterministic fallback",
		},
		[]string{"reason"}, // "ai_failed", "low_confidence", "invalid_index"
	)

	SelectionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selection_confidence",
			Help:    "Confidence scores of selected catalog matches",
			Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
		},
	)

	DuplicateRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_duplicate_rejections_total",
			Help: "Total number of candidate tracks rejected as recent duplicates",
		},
	)

	ProfileFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_fallbacks_total",
			Help: "Total number of taste profiles served from a non-AI source",
		},
		[]string{"source"}, // "cached", "template"
	)
)

// RecordDBQuery records the duration of a database query and any error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records metrics for an HTTP API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerRequest records one request outcome for a named breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordBreakerTransition records a breaker state change and updates the
// state gauge.
func RecordBreakerTransition(name, from, to string, stateValue float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}

// RecordLLMCall records the duration and outcome of an AI vendor call.
func RecordLLMCall(operation, model string, duration time.Duration, errType string) {
	LLMCallDuration.WithLabelValues(operation, model).Observe(duration.Seconds())
	if errType != "" {
		LLMCallErrors.WithLabelValues(operation, errType).Inc()
		if errType == "rate_limit" {
			LLMRateLimitHits.Inc()
		}
	}
}

// RecordRecommendation records the outcome of one pipeline run.
func RecordRecommendation(method, outcome string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(method, outcome).Inc()
	RecommendationDuration.WithLabelValues(method).Observe(duration.Seconds())
}
