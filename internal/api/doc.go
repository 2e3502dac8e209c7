// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package api provides the NotifyRank HTTP API on the Chi router.

# Endpoints

Events:
  - POST  /api/v1/notifications: record a posted notification (201)
  - PATCH /api/v1/notifications/{id}: merge-patch update; 409 IMMUTABLE_FIELD
    when anything but category changes
  - POST  /api/v1/interactions: record CLICK, SWIPE or EXPAND (201)

Scoring:
  - POST /api/v1/score: {notification_id, user_id} to {score, source}
  - POST /api/v1/score/batch: up to 500 IDs; unknown IDs are listed in missing

Training:
  - POST /api/v1/model/train: global training now, bypassing the retrain policy
  - POST /api/v1/users/{userID}/train: per-user training, apps required
  - POST /api/v1/users/{userID}/retrain: policy-gated (skipped, failed, retrained)
  - GET  /api/v1/users/{userID}/retrain: the policy decision only
  - GET  /api/v1/model/info and /api/v1/model/export

Operations:
  - GET /api/v1/health/live, /api/v1/health/ready, /metrics

# Responses

JSON responses use models.APIResponse:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "query_time_ms": 3}}
	{"status": "error", "error": {"code": "NOT_FOUND", "message": "..."}, "metadata": {...}}

The model export is the one raw body (application/octet-stream).

# Rate Limiting

All /api/v1 routes except health share a per-IP httprate limit
(security.rate_limit_reqs per security.rate_limit_window). The three training
triggers additionally draw from one token bucket (golang.org/x/time/rate)
refilled at engagement.training.trigger_rate per minute. Both answer 429
TOO_MANY_REQUESTS and count api_rate_limit_hits_total.
*/
package api
