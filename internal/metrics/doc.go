// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package metrics provides Prometheus instrumentation for NotifyRank.

All collectors are registered with the default registry through promauto and
exposed by the HTTP server at /metrics.

# Metric Categories

  - DuckDB: query duration, errors and conflict retries
  - API: request counts, latency, active requests, rate limit rejections
  - Scoring: scores by source (user_model, global_model, fallback) and latency
  - Training: runs by scope and outcome, duration, shared model size and RMSE
  - Aggregates: daily counter increments by counter name
  - Caches: hits, misses and invalidations per cache
  - Ingestion: messages by topic and outcome
  - Circuit breakers: state, requests and transitions

# Usage

	start := time.Now()
	result := scorer.Score(ctx, n, userID)
	metrics.RecordScore(string(result.Source), time.Since(start))
*/
package metrics
