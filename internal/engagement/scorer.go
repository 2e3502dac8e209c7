// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

// ScoreResult is a served engagement score and the component that produced it.
type ScoreResult struct {
	NotificationID int64   `json:"notification_id"`
	Score          float64 `json:"score"`
	Source         string  `json:"source"`
}

// Scorer serves engagement scores and never fails. The order is the user's
// own model, the shared model, a cold-start user model (mostly synthetic
// training data), then the fallback rules.
type Scorer struct {
	features *FeatureExtractor
	users    *UserTrainer
	shared   *SharedModel
	fallback FallbackPredictor
	writer   ScoreWriter
	logger   zerolog.Logger
}

// NewScorer creates a Scorer. users and writer may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScorer(features *FeatureExtractor, users *UserTrainer, shared *SharedModel, writer ScoreWriter, logger zerolog.Logger) *Scorer {
	return &Scorer{
		features: features,
		users:    users,
		shared:   shared,
		writer:   writer,
		logger:   logger.With().Str("component", "scorer").Logger(),
	}
}

// Score computes and caches the engagement score of n for userID.
func (s *Scorer) Score(ctx context.Context, n *models.NotificationEvent, userID int64) ScoreResult {
	start := time.Now()
	result := s.score(ctx, n, userID)
	metrics.RecordScore(result.Source, time.Since(start))

	if s.writer != nil && n.ID != 0 {
		if err := s.writer.SetMLScore(ctx, userID, n.ID, result.Score); err != nil {
			s.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("failed to store score")
		}
	}
	return result
}

func (s *Scorer) score(ctx context.Context, n *models.NotificationEvent, userID int64) ScoreResult {
	result := ScoreResult{NotificationID: n.ID}

	record, err := s.features.Extract(ctx, n, userID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("feature extraction failed, using fallback")
		record = s.features.StaticFeatures(n)
		result.Score = s.fallback.Predict(&record)
		result.Source = SourceFallback
		return result
	}
	f := record.ModelFeatures()

	var (
		userScore           float64
		coldStart, hasModel bool
	)
	if s.users != nil {
		userScore, coldStart, hasModel = s.users.Predict(ctx, userID, f)
		if hasModel && !coldStart {
			result.Score, result.Source = userScore, SourceUserModel
			return result
		}
	}

	if s.shared != nil {
		if score, source := s.shared.PredictDetailed(ctx, f); source == SourceGlobalModel {
			result.Score, result.Source = score, source
			return result
		}
	}

	if hasModel {
		result.Score, result.Source = userScore, SourceUserModel
		return result
	}

	result.Score = s.fallback.Predict(&record)
	result.Source = SourceFallback
	return result
}

// ScoreBatch scores notifications for userID in order.
func (s *Scorer) ScoreBatch(ctx context.Context, notifications []models.NotificationEvent, userID int64) []ScoreResult {
	results := make([]ScoreResult, len(notifications))
	for i := range notifications {
		results[i] = s.Score(ctx, &notifications[i], userID)
	}
	return results
}
