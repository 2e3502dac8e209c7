// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

// maxConflictRetries bounds retries of an UPSERT that lost a DuckDB transaction conflict.
const maxConflictRetries = 3

// upsertAggregateSQL increments the counters of one (user, app, day) row and
// recomputes open_rate from the new counters in the same statement.
const upsertAggregateSQL = `
	INSERT INTO daily_aggregates (user_id, app_id, day, posts, clicks, swipes, open_rate, last_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, app_id, day) DO UPDATE SET
		posts = daily_aggregates.posts + EXCLUDED.posts,
		clicks = daily_aggregates.clicks + EXCLUDED.clicks,
		swipes = daily_aggregates.swipes + EXCLUDED.swipes,
		open_rate = CASE
			WHEN daily_aggregates.posts + EXCLUDED.posts > 0
			THEN CAST(daily_aggregates.clicks + EXCLUDED.clicks AS DOUBLE) / (daily_aggregates.posts + EXCLUDED.posts)
			ELSE 0
		END,
		last_updated = EXCLUDED.last_updated
	RETURNING user_id, app_id, day, posts, clicks, swipes, open_rate, last_updated`

// aggregateKey identifies one daily_aggregates row for per-key locking.
func aggregateKey(userID, appID int64, day time.Time) string {
	return fmt.Sprintf("%d:%d:%s", userID, appID, day.Format(time.DateOnly))
}

// acquireKeyLock acquires a per-key mutex lock for concurrent UPSERT operations
func (db *DB) acquireKeyLock(key string) *sync.Mutex {
	muInterface, _ := db.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		db.keyLocks.Store(key, mu)
	}
	mu.Lock()
	return mu
}

// IncrementAggregate atomically adds delta to the (user, app, day) aggregate,
// creating the row when it does not exist, and returns the resulting row.
// Counters in delta must be non-negative.
func (db *DB) IncrementAggregate(ctx context.Context, delta models.AggregateDelta) (models.DailyAggregate, error) {
	if delta.Posts < 0 || delta.Clicks < 0 || delta.Swipes < 0 {
		return models.DailyAggregate{}, fmt.Errorf("aggregate delta must be non-negative: %+v", delta)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	day := dayValue(delta.Day)
	mu := db.acquireKeyLock(aggregateKey(delta.UserID, delta.AppID, day))
	defer mu.Unlock()

	start := time.Now()
	var agg models.DailyAggregate
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if attempt > 0 {
			metrics.DBConflictRetries.Inc()
			select {
			case <-ctx.Done():
				return models.DailyAggregate{}, ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * time.Millisecond):
			}
		}

		agg, lastErr = db.upsertAggregate(ctx, delta, day)
		if lastErr == nil {
			break
		}
		if !isTransactionConflict(lastErr) {
			break
		}
	}
	metrics.RecordDBQuery("increment_aggregate", time.Since(start), lastErr)
	if lastErr != nil {
		return models.DailyAggregate{}, fmt.Errorf("failed to increment aggregate: %w", lastErr)
	}
	return agg, nil
}

func (db *DB) upsertAggregate(ctx context.Context, delta models.AggregateDelta, day time.Time) (models.DailyAggregate, error) {
	row := db.conn.QueryRowContext(ctx, upsertAggregateSQL,
		delta.UserID, delta.AppID, day,
		delta.Posts, delta.Clicks, delta.Swipes,
		models.OpenRate(int64(delta.Clicks), int64(delta.Posts)),
		time.Now().UTC(),
	)
	return scanAggregate(row)
}

// GetAggregate returns the (user, app, day) aggregate or ErrNotFound.
func (db *DB) GetAggregate(ctx context.Context, userID, appID int64, day time.Time) (models.DailyAggregate, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT user_id, app_id, day, posts, clicks, swipes, open_rate, last_updated
		FROM daily_aggregates
		WHERE user_id = ? AND app_id = ? AND day = ?`,
		userID, appID, dayValue(day))
	agg, err := scanAggregate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyAggregate{}, ErrNotFound
	}
	if err != nil {
		return models.DailyAggregate{}, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

// UserAppStats sums posts and clicks per app for userID over aggregates
// with day >= since.
func (db *DB) UserAppStats(ctx context.Context, userID int64, since time.Time) ([]models.AppPostStats, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.package_name, CAST(SUM(d.posts) AS BIGINT), CAST(SUM(d.clicks) AS BIGINT)
		FROM daily_aggregates d
		JOIN apps a ON a.id = d.app_id
		WHERE d.user_id = ? AND d.day >= ?
		GROUP BY a.package_name
		ORDER BY a.package_name`,
		userID, dayValue(since))
	metrics.RecordDBQuery("user_app_stats", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query app stats: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var stats []models.AppPostStats
	for rows.Next() {
		var s models.AppPostStats
		if err := rows.Scan(&s.App, &s.Posts, &s.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan app stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanAggregate(row *sql.Row) (models.DailyAggregate, error) {
	var agg models.DailyAggregate
	err := row.Scan(&agg.UserID, &agg.AppID, &agg.Day, &agg.Posts, &agg.Clicks,
		&agg.Swipes, &agg.OpenRate, &agg.LastUpdated)
	if err != nil {
		return models.DailyAggregate{}, err
	}
	agg.Day = dayValue(agg.Day)
	return agg, nil
}

// dayValue normalizes a day to midnight UTC of its date.
func dayValue(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}
