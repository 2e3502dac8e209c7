// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"time"

	"github.com/tomtom215/notifyrank/internal/kvstore"
	"github.com/tomtom215/notifyrank/internal/models"
)

// The interfaces below are implemented by *database.DB. Components depend on
// the narrowest one they need so tests can substitute in-memory fakes.

// AggregateStore applies atomic daily aggregate increments.
type AggregateStore interface {
	IncrementAggregate(ctx context.Context, delta models.AggregateDelta) (models.DailyAggregate, error)
	GetAggregate(ctx context.Context, userID, appID int64, day time.Time) (models.DailyAggregate, error)
}

// StateReader loads per-user notification states.
type StateReader interface {
	GetState(ctx context.Context, userID, notificationID int64) (models.UserNotificationState, error)
	GetStates(ctx context.Context, userID int64, notificationIDs []int64) (map[int64]models.UserNotificationState, error)
}

// FeatureStore provides the frequency statistics used by feature extraction.
type FeatureStore interface {
	UserAppStats(ctx context.Context, userID int64, since time.Time) ([]models.AppPostStats, error)
	CountAppPostsBetween(ctx context.Context, userID int64, app string, from, to time.Time) (int, error)
}

// TrainingSource provides the notifications and counts training reads.
type TrainingSource interface {
	UsersWithLabeledStates(ctx context.Context, minLabeled int) ([]int64, error)
	RecentNotifications(ctx context.Context, userID int64, limit int) ([]models.NotificationEvent, error)
	UserApps(ctx context.Context, userID int64) ([]string, error)
	LabeledCount(ctx context.Context, userID int64) (int, error)
	TotalLabeledCount(ctx context.Context) (int, error)
}

// TrainingRecorder persists training run history.
type TrainingRecorder interface {
	RecordTrainingRun(ctx context.Context, run models.TrainingRun) (models.TrainingRun, error)
	LastTrainingRun(ctx context.Context, scope string, userID *int64) (models.TrainingRun, error)
}

// ModelCache is the external cache holding the serialized shared model.
// It is implemented by *kvstore.Store.
type ModelCache interface {
	Get(ctx context.Context, key string) (kvstore.Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ScoreWriter caches computed scores on the notification state.
type ScoreWriter interface {
	SetMLScore(ctx context.Context, userID, notificationID int64, score float64) error
}
