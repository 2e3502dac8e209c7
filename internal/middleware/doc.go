// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package middleware provides the HTTP middleware shared by the API router.

  - RequestID: request and correlation IDs in the context and response
  - PrometheusMetrics: request count, latency and in-flight gauge, labeled
    by chi route pattern

Both have the func(http.Handler) http.Handler shape used by chi's Use.
PrometheusMetrics must run inside the chi router so the route pattern is
known when the handler returns:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
