// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package database is the durable store for NotifyRank, backed by DuckDB.

It records notifications, interactions and per-user notification state,
maintains daily per-app aggregates, and answers the queries used by the
engagement pipeline for feature extraction and training.

Concurrency:

Aggregate increments are a single INSERT ... ON CONFLICT DO UPDATE ...
RETURNING statement. Writers to the same (user, app, day) key are serialized
by a per-key mutex and the statement is retried with a short backoff when
DuckDB reports a transaction conflict. opened_at and dismissed_at are
first-wins through COALESCE in the state UPSERT.

Usage:

	db, err := database.New(&cfg.Database)
	if err != nil {
	    return err
	}
	defer db.Close()

	stored, err := db.InsertNotification(ctx, event)
*/
package database
