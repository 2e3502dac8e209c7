// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package cache provides a thread-safe, generic in-memory cache with TTL support.

It backs the per-user feature statistics cache and the per-user model cache.
Entries expire lazily on Get; an optional background loop removes expired
entries. Explicit invalidation (Delete, DeletePrefix, Clear) is counted
separately from expiry and exported through the cache_invalidations_total
metric.

# Usage

	c := cache.New[int]("user_stats", time.Hour)
	c.Set("user:1", 42)
	if v, ok := c.Get("user:1"); ok {
	    _ = v
	}
	c.DeletePrefix("user:")
*/
package cache
