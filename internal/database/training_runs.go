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

	"github.com/tomtom215/notifyrank/internal/models"
)

const trainingRunColumns = `id, scope, user_id, status, reason, model_type, num_users,
	total_samples, labeled_count, val_rmse, val_mae, trained_at`

// RecordTrainingRun appends a training attempt and returns it with its ID.
func (db *DB) RecordTrainingRun(ctx context.Context, run models.TrainingRun) (models.TrainingRun, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now()
	}
	run.TrainedAt = run.TrainedAt.UTC()

	var userID any
	if run.UserID != nil {
		userID = *run.UserID
	}

	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO training_runs (scope, user_id, status, reason, model_type, num_users,
			total_samples, labeled_count, val_rmse, val_mae, trained_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		run.Scope, userID, run.Status, run.Reason, run.ModelType, run.NumUsers,
		run.TotalSamples, run.LabeledCount, run.ValRMSE, run.ValMAE, run.TrainedAt).Scan(&run.ID)
	if err != nil {
		return models.TrainingRun{}, fmt.Errorf("failed to record training run: %w", err)
	}
	return run, nil
}

// LastTrainingRun returns the newest run with status "trained" for scope,
// or ErrNotFound. userID selects a user's runs and must be nil for the
// global scope.
func (db *DB) LastTrainingRun(ctx context.Context, scope string, userID *int64) (models.TrainingRun, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := "SELECT " + trainingRunColumns + ` FROM training_runs
		WHERE scope = ? AND status = ? AND user_id IS NULL
		ORDER BY trained_at DESC, id DESC LIMIT 1`
	args := []any{scope, models.TrainingStatusTrained}
	if userID != nil {
		query = "SELECT " + trainingRunColumns + ` FROM training_runs
		WHERE scope = ? AND status = ? AND user_id = ?
		ORDER BY trained_at DESC, id DESC LIMIT 1`
		args = append(args, *userID)
	}

	run, err := scanTrainingRun(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrainingRun{}, ErrNotFound
	}
	if err != nil {
		return models.TrainingRun{}, fmt.Errorf("failed to load training run: %w", err)
	}
	return run, nil
}

func scanTrainingRun(s rowScanner) (models.TrainingRun, error) {
	var (
		run    models.TrainingRun
		userID sql.NullInt64
	)
	err := s.Scan(&run.ID, &run.Scope, &userID, &run.Status, &run.Reason, &run.ModelType,
		&run.NumUsers, &run.TotalSamples, &run.LabeledCount, &run.ValRMSE, &run.ValMAE, &run.TrainedAt)
	if err != nil {
		return models.TrainingRun{}, err
	}
	if userID.Valid {
		id := userID.Int64
		run.UserID = &id
	}
	return run, nil
}
