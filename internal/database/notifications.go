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
	"time"

	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

const notificationColumns = `id, user_id, app_id, app, notif_key, post_time, title, text,
	big_text, sub_text, channel_id, category, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// InsertNotification records a notification in one transaction: the app row is
// upserted (last_seen moves to the post time), the notification is inserted and
// the user's state row is created. The stored event is returned with its ID,
// AppID and CreatedAt populated.
func (db *DB) InsertNotification(ctx context.Context, n models.NotificationEvent) (models.NotificationEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	stored, err := db.insertNotificationTx(ctx, n)
	metrics.RecordDBQuery("insert_notification", time.Since(start), err)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("failed to insert notification: %w", err)
	}
	return stored, nil
}

func (db *DB) insertNotificationTx(ctx context.Context, n models.NotificationEvent) (models.NotificationEvent, error) {
	now := time.Now().UTC()
	if n.PostTime.IsZero() {
		n.PostTime = now
	}
	n.PostTime = n.PostTime.UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("begin: %w", err)
	}
	defer rollbackQuietly(tx)

	err = tx.QueryRowContext(ctx, `
		INSERT INTO apps (user_id, package_name, last_seen, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, package_name) DO UPDATE SET last_seen = EXCLUDED.last_seen
		RETURNING id`,
		n.UserID, n.App, n.PostTime, now).Scan(&n.AppID)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("upsert app: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, app_id, app, notif_key, post_time, title, text,
			big_text, sub_text, channel_id, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		n.UserID, n.AppID, n.App, n.NotifKey, n.PostTime, n.Title, n.Text,
		n.BigText, n.SubText, n.ChannelID, n.Category, now).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("insert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_notification_states (user_id, notification_id, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, notification_id) DO NOTHING`,
		n.UserID, n.ID, now)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("create state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.NotificationEvent{}, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// GetNotification returns the notification with id or ErrNotFound.
func (db *DB) GetNotification(ctx context.Context, id int64) (models.NotificationEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationEvent{}, ErrNotFound
	}
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// UpdateNotification loads the stored notification and applies updated to it
// inside one transaction. If any immutable field differs the transaction is
// abandoned and the *models.ImmutabilityViolationError is returned unwrapped
// so callers can read the field. Only category is written.
func (db *DB) UpdateNotification(ctx context.Context, updated models.NotificationEvent) (models.NotificationEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("failed to begin update: %w", err)
	}
	defer rollbackQuietly(tx)

	row := tx.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", updated.ID)
	original, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationEvent{}, ErrNotFound
	}
	if err != nil {
		return models.NotificationEvent{}, fmt.Errorf("failed to load notification: %w", err)
	}

	if err := models.CheckImmutable(&original, &updated); err != nil {
		return models.NotificationEvent{}, err
	}

	if updated.Category != original.Category {
		if _, err := tx.ExecContext(ctx,
			"UPDATE notifications SET category = ? WHERE id = ?",
			updated.Category, original.ID); err != nil {
			return models.NotificationEvent{}, fmt.Errorf("failed to update notification: %w", err)
		}
		original.Category = updated.Category
	}

	if err := tx.Commit(); err != nil {
		return models.NotificationEvent{}, fmt.Errorf("failed to commit update: %w", err)
	}
	return original, nil
}

// RecentNotifications returns the newest limit notifications of userID,
// newest first.
func (db *DB) RecentNotifications(ctx context.Context, userID int64, limit int) ([]models.NotificationEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+notificationColumns+` FROM notifications
		WHERE user_id = ?
		ORDER BY post_time DESC, id DESC
		LIMIT ?`, userID, limit)
	metrics.RecordDBQuery("recent_notifications", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.NotificationEvent
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountAppPostsBetween counts notifications of app for userID with
// from <= post_time < to.
func (db *DB) CountAppPostsBetween(ctx context.Context, userID int64, app string, from, to time.Time) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND app = ? AND post_time >= ? AND post_time < ?`,
		userID, app, from.UTC(), to.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count app posts: %w", err)
	}
	return count, nil
}

// UserApps returns the package names of every app seen for userID.
func (db *DB) UserApps(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT package_name FROM apps WHERE user_id = ? ORDER BY package_name", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user apps: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var apps []string
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanNotification(s rowScanner) (models.NotificationEvent, error) {
	var n models.NotificationEvent
	err := s.Scan(&n.ID, &n.UserID, &n.AppID, &n.App, &n.NotifKey, &n.PostTime,
		&n.Title, &n.Text, &n.BigText, &n.SubText, &n.ChannelID, &n.Category, &n.CreatedAt)
	return n, err
}
