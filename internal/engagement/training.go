// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/engagement/model"
	"github.com/tomtom215/notifyrank/internal/models"
)

// TrainingInfo describes how a model was trained.
type TrainingInfo struct {
	NumUsers       int           `json:"num_users"`
	TotalSamples   int           `json:"total_samples"`
	SamplesPerUser map[int64]int `json:"samples_per_user,omitempty"`
	Metrics        model.Metrics `json:"metrics,omitempty"`
	ModelType      model.Kind    `json:"model_type"`
	TrainedAt      time.Time     `json:"trained_at"`
}

// TrainResult is the outcome of a training attempt. Failed attempts carry
// the reason; the returned error carries the cause.
type TrainResult struct {
	Status       string        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	ModelType    model.Kind    `json:"model_type,omitempty"`
	NumUsers     int           `json:"num_users,omitempty"`
	TotalSamples int           `json:"total_samples,omitempty"`
	Metrics      model.Metrics `json:"metrics,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
}

func failedResult(err error) TrainResult {
	return TrainResult{Status: models.TrainingStatusFailed, Reason: err.Error()}
}

// labelDistribution counts labels by band: high (> 0.7), low (< 0.3) and mid.
type labelDistribution struct {
	High int
	Mid  int
	Low  int
}

func distributionOf(samples []model.Sample) labelDistribution {
	var d labelDistribution
	for i := range samples {
		switch l := samples[i].Label; {
		case l > 0.7:
			d.High++
		case l < 0.3:
			d.Low++
		default:
			d.Mid++
		}
	}
	return d
}

// sampleCollector turns a user's recent notifications into labeled samples.
type sampleCollector struct {
	source   TrainingSource
	labeler  *Labeler
	features *FeatureExtractor
	logger   zerolog.Logger
}

// collect fetches the newest 2*limit notifications of userID and returns up
// to limit labeled samples, newest first. Notifications whose features
// cannot be extracted are skipped.
func (c *sampleCollector) collect(ctx context.Context, userID int64, limit int) ([]model.Sample, error) {
	notifications, err := c.source.RecentNotifications(ctx, userID, 2*limit)
	if err != nil {
		return nil, fmt.Errorf("load notifications for user %d: %w", userID, err)
	}

	labels, err := c.labeler.BatchLabel(ctx, notifications, userID)
	if err != nil {
		return nil, fmt.Errorf("label notifications for user %d: %w", userID, err)
	}

	samples := make([]model.Sample, 0, min(limit, len(labels)))
	for i := range notifications {
		if len(samples) >= limit {
			break
		}
		n := &notifications[i]
		label, ok := labels[n.ID]
		if !ok {
			continue
		}
		record, err := c.features.Extract(ctx, n, userID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn().Err(err).Int64("user_id", userID).Int64("notification_id", n.ID).
				Msg("skipping sample: feature extraction failed")
			continue
		}
		samples = append(samples, model.Sample{Features: record.ModelFeatures(), Label: label})
	}
	return samples, nil
}

// fitSafely trains m and converts fit errors and panics to ErrTrainingFailure.
func fitSafely(m *model.NotificationModel, samples []model.Sample, validate bool) (metrics model.Metrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics = nil
			err = fmt.Errorf("%w: panic: %v", ErrTrainingFailure, r)
		}
	}()

	metrics, err = m.Train(samples, validate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTrainingFailure, err)
	}
	return metrics, nil
}
