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
	"strings"
	"time"

	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

const stateColumns = `user_id, notification_id, is_read, opened_at, dismissed_at, last_updated, ml_score`

// upsertStateSQL applies one interaction to a state row. opened_at and
// dismissed_at are first-wins through COALESCE; is_read only turns on.
const upsertStateSQL = `
	INSERT INTO user_notification_states (user_id, notification_id, is_read, opened_at, dismissed_at, last_updated)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, notification_id) DO UPDATE SET
		is_read = user_notification_states.is_read OR EXCLUDED.is_read,
		opened_at = COALESCE(user_notification_states.opened_at, EXCLUDED.opened_at),
		dismissed_at = COALESCE(user_notification_states.dismissed_at, EXCLUDED.dismissed_at),
		last_updated = EXCLUDED.last_updated
	RETURNING ` + stateColumns

// InteractionResult is the outcome of recording one interaction.
type InteractionResult struct {
	Interaction models.InteractionEvent
	State       models.UserNotificationState
	// AppID of the notification the interaction targets.
	AppID int64
}

// RecordInteraction appends an interaction and applies it to the user's state
// in one transaction. The notification must exist and belong to the user,
// otherwise ErrNotFound is returned. A missing state row is created.
func (db *DB) RecordInteraction(ctx context.Context, in models.InteractionEvent) (InteractionResult, error) {
	if !in.Type.Valid() {
		return InteractionResult{}, fmt.Errorf("invalid interaction type %q", in.Type)
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.recordInteractionTx(ctx, in)
	metrics.RecordDBQuery("record_interaction", time.Since(start), err)
	if errors.Is(err, ErrNotFound) {
		return InteractionResult{}, err
	}
	if err != nil {
		return InteractionResult{}, fmt.Errorf("failed to record interaction: %w", err)
	}
	return res, nil
}

func (db *DB) recordInteractionTx(ctx context.Context, in models.InteractionEvent) (InteractionResult, error) {
	now := time.Now().UTC()
	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	in.Timestamp = in.Timestamp.UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return InteractionResult{}, fmt.Errorf("begin: %w", err)
	}
	defer rollbackQuietly(tx)

	var appID int64
	err = tx.QueryRowContext(ctx,
		"SELECT app_id FROM notifications WHERE id = ? AND user_id = ?",
		in.NotificationID, in.UserID).Scan(&appID)
	if errors.Is(err, sql.ErrNoRows) {
		return InteractionResult{}, ErrNotFound
	}
	if err != nil {
		return InteractionResult{}, fmt.Errorf("load notification: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO interactions (user_id, notification_id, interaction_type, ts)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		in.UserID, in.NotificationID, string(in.Type), in.Timestamp).Scan(&in.ID)
	if err != nil {
		return InteractionResult{}, fmt.Errorf("insert interaction: %w", err)
	}

	// nil binds as NULL and leaves the existing timestamp in place.
	var isRead bool
	var openedAt, dismissedAt any
	switch in.Type {
	case models.InteractionClick:
		isRead = true
		openedAt = in.Timestamp
	case models.InteractionSwipe:
		dismissedAt = in.Timestamp
	case models.InteractionExpand:
		isRead = true
	}

	row := tx.QueryRowContext(ctx, upsertStateSQL,
		in.UserID, in.NotificationID, isRead, openedAt, dismissedAt, now)
	state, err := scanState(row)
	if err != nil {
		return InteractionResult{}, fmt.Errorf("update state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return InteractionResult{}, fmt.Errorf("commit: %w", err)
	}
	return InteractionResult{Interaction: in, State: state, AppID: appID}, nil
}

// GetState returns the state of (userID, notificationID) or ErrNotFound.
func (db *DB) GetState(ctx context.Context, userID, notificationID int64) (models.UserNotificationState, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+stateColumns+" FROM user_notification_states WHERE user_id = ? AND notification_id = ?",
		userID, notificationID)
	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserNotificationState{}, ErrNotFound
	}
	if err != nil {
		return models.UserNotificationState{}, fmt.Errorf("failed to get state: %w", err)
	}
	return state, nil
}

// GetStates loads the states of userID for notificationIDs in one query,
// keyed by notification ID. Notifications without a state row are absent.
func (db *DB) GetStates(ctx context.Context, userID int64, notificationIDs []int64) (map[int64]models.UserNotificationState, error) {
	states := make(map[int64]models.UserNotificationState, len(notificationIDs))
	if len(notificationIDs) == 0 {
		return states, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(notificationIDs)), ",")
	args := make([]any, 0, len(notificationIDs)+1)
	args = append(args, userID)
	for _, id := range notificationIDs {
		args = append(args, id)
	}

	start := time.Now()
	//nolint:gosec // placeholders only
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+stateColumns+" FROM user_notification_states WHERE user_id = ? AND notification_id IN ("+placeholders+")",
		args...)
	metrics.RecordDBQuery("get_states", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		states[state.NotificationID] = state
	}
	return states, rows.Err()
}

// SetMLScore caches the latest engagement score on the user's state row,
// creating the row when needed.
func (db *DB) SetMLScore(ctx context.Context, userID, notificationID int64, score float64) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_notification_states (user_id, notification_id, last_updated, ml_score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, notification_id) DO UPDATE SET ml_score = EXCLUDED.ml_score`,
		userID, notificationID, time.Now().UTC(), score)
	if err != nil {
		return fmt.Errorf("failed to set ml score: %w", err)
	}
	return nil
}

// LabeledCount counts the states of userID that carry an open or dismiss.
func (db *DB) LabeledCount(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_notification_states
		WHERE user_id = ? AND (opened_at IS NOT NULL OR dismissed_at IS NOT NULL)`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count labeled states: %w", err)
	}
	return count, nil
}

// TotalLabeledCount counts labeled states across all users.
func (db *DB) TotalLabeledCount(ctx context.Context) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_notification_states
		WHERE opened_at IS NOT NULL OR dismissed_at IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count labeled states: %w", err)
	}
	return count, nil
}

// UsersWithLabeledStates returns the users having at least minLabeled
// labeled states, ordered by user ID.
func (db *DB) UsersWithLabeledStates(ctx context.Context, minLabeled int) ([]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id FROM user_notification_states
		WHERE opened_at IS NOT NULL OR dismissed_at IS NOT NULL
		GROUP BY user_id
		HAVING COUNT(*) >= ?
		ORDER BY user_id`, minLabeled)
	metrics.RecordDBQuery("eligible_users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible users: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func scanState(s rowScanner) (models.UserNotificationState, error) {
	var (
		state       models.UserNotificationState
		openedAt    sql.NullTime
		dismissedAt sql.NullTime
		mlScore     sql.NullFloat64
	)
	err := s.Scan(&state.UserID, &state.NotificationID, &state.IsRead,
		&openedAt, &dismissedAt, &state.LastUpdated, &mlScore)
	if err != nil {
		return models.UserNotificationState{}, err
	}
	if openedAt.Valid {
		t := openedAt.Time
		state.OpenedAt = &t
	}
	if dismissedAt.Valid {
		t := dismissedAt.Time
		state.DismissedAt = &t
	}
	if mlScore.Valid {
		v := mlScore.Float64
		state.MLScore = &v
	}
	return state, nil
}
