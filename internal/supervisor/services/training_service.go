// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/models"
)

// GlobalTrainer is the part of engagement.SharedModel the training service
// drives.
type GlobalTrainer interface {
	ShouldRetrainGlobal(ctx context.Context) (bool, string, error)
	TrainAndSave(ctx context.Context, minUsers, samplesPerUser int) (engagement.TrainResult, error)
}

// TrainingServiceConfig holds configuration for the training service.
type TrainingServiceConfig struct {
	// OnStartup runs a retrain check when the service starts.
	OnStartup bool

	// Interval between retrain checks. Default: 6h
	Interval time.Duration

	MinUsers       int
	SamplesPerUser int

	// Timeout bounds a single training run. Default: 30m
	Timeout time.Duration
}

// TrainingService retrains the global model in the background. Each tick
// asks the retrain policy first; the model is only rebuilt when the policy
// agrees. Runs never overlap within the process.
type TrainingService struct {
	trainer GlobalTrainer
	config  TrainingServiceConfig
	logger  zerolog.Logger
	name    string

	mu sync.Mutex
}

// NewTrainingService creates a training service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainingService(trainer GlobalTrainer, cfg TrainingServiceConfig, logger zerolog.Logger) *TrainingService {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &TrainingService{
		trainer: trainer,
		config:  cfg,
		logger:  logger.With().Str("service", "training").Logger(),
		name:    "training-service",
	}
}

// Serve implements suture.Service.
func (s *TrainingService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("training service starting")

	if s.config.OnStartup {
		s.checkAndTrain(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkAndTrain(ctx)
		}
	}
}

// checkAndTrain retrains when the policy says so. Failures are logged and
// retried on the next tick.
func (s *TrainingService) checkAndTrain(ctx context.Context) {
	if !s.mu.TryLock() {
		s.logger.Debug().Msg("training already running, skipping scheduled check")
		return
	}
	defer s.mu.Unlock()

	ok, reason, err := s.trainer.ShouldRetrainGlobal(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("retrain decision failed")
		return
	}
	if !ok {
		s.logger.Debug().Str("reason", reason).Msg("global retrain skipped")
		return
	}

	s.logger.Info().Str("reason", reason).Msg("global retrain starting")
	if _, err := s.train(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduled training failed (will retry on schedule)")
	}
}

// TrainNow trains the global model immediately, bypassing the retrain
// policy. It returns engagement.ErrTrainingInProgress instead of waiting
// when another run is active.
func (s *TrainingService) TrainNow(ctx context.Context) (engagement.TrainResult, error) {
	if !s.mu.TryLock() {
		return engagement.TrainResult{
			Status: models.TrainingStatusSkipped,
			Reason: engagement.ErrTrainingInProgress.Error(),
		}, engagement.ErrTrainingInProgress
	}
	defer s.mu.Unlock()
	return s.train(ctx)
}

func (s *TrainingService) train(ctx context.Context) (engagement.TrainResult, error) {
	trainCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.trainer.TrainAndSave(trainCtx, s.config.MinUsers, s.config.SamplesPerUser)
}

// String returns the service name for logging.
func (s *TrainingService) String() string {
	return s.name
}
