// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	DBConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdb_conflict_retries_total",
			Help: "Total number of retried DuckDB transaction conflicts",
		},
	)

	// API Metrics
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
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Scoring Metrics
	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_score_requests_total",
			Help: "Total number of scored notifications by prediction source",
		},
		[]string{"source"}, // "user_model", "global_model", "fallback"
	)

	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagement_score_duration_seconds",
			Help:    "Duration of a single notification score including feature extraction",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// Training Metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_training_runs_total",
			Help: "Total number of model training runs",
		},
		[]string{"scope", "outcome"}, // scope: "global", "user"; outcome: "trained", "skipped", "failed"
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_training_duration_seconds",
			Help:    "Duration of model training runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"scope"},
	)

	GlobalModelSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_global_model_samples",
			Help: "Number of samples the current shared model was trained on",
		},
	)

	GlobalModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_global_model_users",
			Help: "Number of users contributing to the current shared model",
		},
	)

	GlobalModelValRMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_global_model_val_rmse",
			Help: "Validation RMSE of the current shared model",
		},
	)

	ModelReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_model_reloads_total",
			Help: "Total number of shared model reloads by source",
		},
		[]string{"source"}, // "cache", "disk", "miss", "error"
	)

	// Aggregate Bookkeeping Metrics
	AggregateIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_aggregate_increments_total",
			Help: "Total number of daily aggregate counter increments",
		},
		[]string{"counter"}, // "posts", "clicks", "swipes"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "user_stats", "user_model", "model_kv"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of explicit cache invalidations",
		},
		[]string{"cache_type"},
	)

	// Ingestion Metrics
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Total number of ingested messages by topic and outcome",
		},
		[]string{"topic", "outcome"}, // outcome: "processed", "invalid", "failed"
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_processing_duration_seconds",
			Help:    "Time to apply an ingested message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// Circuit Breaker Metrics
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
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordScore records one score served from the given source.
func RecordScore(source string, duration time.Duration) {
	ScoreRequests.WithLabelValues(source).Inc()
	ScoreDuration.Observe(duration.Seconds())
}

// RecordTraining records a training run outcome.
func RecordTraining(scope, outcome string, duration time.Duration) {
	TrainingRuns.WithLabelValues(scope, outcome).Inc()
	TrainingDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// SetGlobalModel publishes the size and quality of the live shared model.
func SetGlobalModel(users, samples int, valRMSE float64) {
	GlobalModelUsers.Set(float64(users))
	GlobalModelSamples.Set(float64(samples))
	GlobalModelValRMSE.Set(valRMSE)
}

// RecordAggregateIncrement records daily aggregate counter deltas.
func RecordAggregateIncrement(posts, clicks, swipes int) {
	if posts > 0 {
		AggregateIncrements.WithLabelValues("posts").Add(float64(posts))
	}
	if clicks > 0 {
		AggregateIncrements.WithLabelValues("clicks").Add(float64(clicks))
	}
	if swipes > 0 {
		AggregateIncrements.WithLabelValues("swipes").Add(float64(swipes))
	}
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordIngest records the outcome of one ingested message.
func RecordIngest(topic, outcome string, duration time.Duration) {
	IngestMessages.WithLabelValues(topic, outcome).Inc()
	IngestDuration.WithLabelValues(topic).Observe(duration.Seconds())
}
