// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
schema.go - Database Schema

Tables:
  - apps: installed applications per user, unique on (user_id, package_name)
  - notifications: posted notifications; all columns except category are immutable
  - interactions: append-only CLICK/SWIPE/EXPAND events
  - user_notification_states: per (user, notification) read/open/dismiss state
  - daily_aggregates: per (user, app, day) counters maintained by atomic UPSERT
  - training_runs: history of model training attempts

The schema is created idempotently at startup. All timestamps are stored as
UTC TIMESTAMP values; day is the calendar day in the configured location.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range schemaQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func schemaQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_apps START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_notifications START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_interactions START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_training_runs START 1`,

		`CREATE TABLE IF NOT EXISTS apps (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_apps'),
			user_id BIGINT NOT NULL,
			package_name VARCHAR NOT NULL,
			display_name VARCHAR NOT NULL DEFAULT '',
			last_seen TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, package_name)
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_notifications'),
			user_id BIGINT NOT NULL,
			app_id BIGINT NOT NULL,
			app VARCHAR NOT NULL,
			notif_key VARCHAR NOT NULL,
			post_time TIMESTAMP NOT NULL,
			title VARCHAR NOT NULL DEFAULT '',
			text VARCHAR NOT NULL DEFAULT '',
			big_text VARCHAR NOT NULL DEFAULT '',
			sub_text VARCHAR NOT NULL DEFAULT '',
			channel_id VARCHAR NOT NULL DEFAULT '',
			category VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS interactions (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_interactions'),
			user_id BIGINT NOT NULL,
			notification_id BIGINT NOT NULL,
			interaction_type VARCHAR NOT NULL,
			ts TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_notification_states (
			user_id BIGINT NOT NULL,
			notification_id BIGINT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT false,
			opened_at TIMESTAMP,
			dismissed_at TIMESTAMP,
			last_updated TIMESTAMP NOT NULL,
			ml_score DOUBLE,
			PRIMARY KEY (user_id, notification_id)
		)`,

		`CREATE TABLE IF NOT EXISTS daily_aggregates (
			user_id BIGINT NOT NULL,
			app_id BIGINT NOT NULL,
			day DATE NOT NULL,
			posts BIGINT NOT NULL DEFAULT 0,
			clicks BIGINT NOT NULL DEFAULT 0,
			swipes BIGINT NOT NULL DEFAULT 0,
			open_rate DOUBLE NOT NULL DEFAULT 0,
			last_updated TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, app_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS training_runs (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_training_runs'),
			scope VARCHAR NOT NULL,
			user_id BIGINT,
			status VARCHAR NOT NULL,
			reason VARCHAR NOT NULL DEFAULT '',
			model_type VARCHAR NOT NULL DEFAULT '',
			num_users INTEGER NOT NULL DEFAULT 0,
			total_samples INTEGER NOT NULL DEFAULT 0,
			labeled_count INTEGER NOT NULL DEFAULT 0,
			val_rmse DOUBLE NOT NULL DEFAULT 0,
			val_mae DOUBLE NOT NULL DEFAULT 0,
			trained_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_user_post ON notifications(user_id, post_time)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_app_post ON notifications(user_id, app, post_time)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_notification ON interactions(notification_id)`,
		`CREATE INDEX IF NOT EXISTS idx_training_runs_scope ON training_runs(scope, user_id, trained_at)`,
	}
}
