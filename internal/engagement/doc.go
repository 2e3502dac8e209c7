// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package engagement implements the notification engagement-scoring pipeline.

# Pipeline

	Bookkeeper        per (user, app, day) counters, one atomic upsert per event
	Labeler           ground-truth labels from interaction state
	FeatureExtractor  text, time, frequency and rate features
	SharedModel       one model trained across users, hot-swapped atomically
	UserTrainer       per-user models with synthetic cold-start padding
	RetrainPolicy     pure retrain decision with a reason
	Scorer            user model, then shared model, then FallbackPredictor

# Model Lifecycle

The live shared model is an immutable *ModelHandle behind an atomic pointer.
TrainAndSave builds a new handle, persists it through the storage package,
and invalidates the live handle, the external cache entry and every cached
per-user statistic. The next Current call reloads from the external cache or
from disk; disk loads pass through a circuit breaker.

Predictions never fail: when no model is available the shared model answers
0.5 and the Scorer uses FallbackPredictor.

# Thread Safety

All exported types are safe for concurrent use. Training is serialized per
SharedModel; readers never block on a reload while a handle exists.
*/
package engagement
