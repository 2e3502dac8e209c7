// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/cache"
	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/engagement/model"
	"github.com/tomtom215/notifyrank/internal/engagement/storage"
	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

// userValidationMin is the smallest per-user dataset trained with a
// held-out validation split.
const userValidationMin = 50

// RetrainOutcome is the result of a policy-gated per-user retrain.
type RetrainOutcome struct {
	Status  string        `json:"status"`
	Reason  string        `json:"reason"`
	Metrics model.Metrics `json:"metrics,omitempty"`
}

// UserTrainerDeps are the collaborators of a UserTrainer.
type UserTrainerDeps struct {
	Source    TrainingSource
	Recorder  TrainingRecorder
	Labeler   *Labeler
	Features  *FeatureExtractor
	Store     *storage.Store
	Generator *SyntheticGenerator
	Policy    RetrainPolicy
}

// UserTrainer trains and serves one linear model per user. Users with little
// history are padded with synthetic samples.
type UserTrainer struct {
	samplesPerUser int
	coldStart      config.ColdStartConfig
	source         TrainingSource
	recorder       TrainingRecorder
	store          *storage.Store
	generator      *SyntheticGenerator
	policy         RetrainPolicy
	collector      *sampleCollector

	// Loaded user models keyed by user ID. A nil value records that the
	// user has no model so the store is not probed on every score.
	models *cache.Cache[*ModelHandle]

	now    func() time.Time
	logger zerolog.Logger
}

// NewUserTrainer creates a UserTrainer. Loaded models are cached for modelsCfg.CacheTTL.
//
//nolint:gocritic // config and logger passed by value at construction
func NewUserTrainer(training config.TrainingConfig, coldStart config.ColdStartConfig, modelsCfg config.ModelsConfig, deps UserTrainerDeps, logger zerolog.Logger) (*UserTrainer, error) {
	if deps.Source == nil || deps.Recorder == nil || deps.Labeler == nil || deps.Features == nil || deps.Store == nil || deps.Generator == nil {
		return nil, errors.New("user trainer: all dependencies are required")
	}

	logger = logger.With().Str("component", "user_trainer").Logger()
	return &UserTrainer{
		samplesPerUser: training.SamplesPerUser,
		coldStart:      coldStart,
		source:         deps.Source,
		recorder:       deps.Recorder,
		store:          deps.Store,
		generator:      deps.Generator,
		policy:         deps.Policy,
		collector: &sampleCollector{
			source:   deps.Source,
			labeler:  deps.Labeler,
			features: deps.Features,
			logger:   logger,
		},
		models: cache.New[*ModelHandle]("user_models", modelsCfg.CacheTTL),
		now:    time.Now,
		logger: logger,
	}, nil
}

// UserModelName returns the artifact name of a user's model.
func UserModelName(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}

// TrainUser trains, saves and records a model for userID. apps are used for
// synthetic padding; when empty, the user's known apps are used.
func (t *UserTrainer) TrainUser(ctx context.Context, userID int64, apps []string) (TrainResult, error) {
	start := time.Now()
	logger := t.logger.With().Int64("user_id", userID).Logger()

	result, err := t.trainUser(ctx, userID, apps)
	outcome := models.TrainingStatusTrained
	if err != nil {
		outcome = models.TrainingStatusFailed
		result = failedResult(err)
		logger.Warn().Err(err).Msg("user model training failed")
		t.recordRun(ctx, models.TrainingRun{
			Scope:     models.TrainingScopeUser,
			UserID:    &userID,
			Status:    models.TrainingStatusFailed,
			Reason:    result.Reason,
			TrainedAt: t.now().UTC(),
		})
	} else {
		logger.Info().
			Int("samples", result.TotalSamples).
			Float64("synthetic", result.Metrics["synthetic_samples"]).
			Msg("user model trained")
	}
	result.DurationMS = time.Since(start).Milliseconds()
	metrics.RecordTraining(models.TrainingScopeUser, outcome, time.Since(start))
	return result, err
}

func (t *UserTrainer) trainUser(ctx context.Context, userID int64, apps []string) (TrainResult, error) {
	labeled, err := t.source.LabeledCount(ctx, userID)
	if err != nil {
		return TrainResult{}, fmt.Errorf("count labeled states: %w", err)
	}

	samples, err := t.collector.collect(ctx, userID, t.samplesPerUser)
	if err != nil {
		return TrainResult{}, err
	}
	realCount := len(samples)

	synthetic := 0
	if realCount < t.coldStart.MinRealSamples {
		if len(apps) == 0 {
			if apps, err = t.source.UserApps(ctx, userID); err != nil {
				return TrainResult{}, fmt.Errorf("load user apps: %w", err)
			}
		}
		if realCount == 0 && len(apps) == 0 {
			return TrainResult{}, fmt.Errorf("%w: user %d has no labeled notifications and no known apps", ErrDataInsufficiency, userID)
		}
		if pad := t.coldStart.TargetSamples - realCount; pad > 0 {
			samples = append(samples, t.generator.GenerateForColdStart(apps, pad)...)
			synthetic = pad
		}
	}

	opts := model.DefaultOptions()
	opts.Seed = t.coldStart.Seed
	m := model.New(model.KindLinear, opts)

	fitMetrics, err := fitSafely(m, samples, len(samples) >= userValidationMin)
	if err != nil {
		return TrainResult{}, err
	}
	fitMetrics["real_samples"] = float64(realCount)
	fitMetrics["synthetic_samples"] = float64(synthetic)

	samplesPerUser := map[int64]int{userID: realCount}
	if _, err := t.store.Save(ctx, UserModelName(userID), m, storage.Metadata{
		ModelType:      string(model.KindLinear),
		TrainedAt:      m.TrainedAt(),
		NumUsers:       1,
		TotalSamples:   len(samples),
		SamplesPerUser: samplesPerUser,
		Metrics:        fitMetrics,
	}); err != nil {
		return TrainResult{}, fmt.Errorf("save user model: %w", err)
	}
	t.InvalidateUser(userID)

	t.recordRun(ctx, models.TrainingRun{
		Scope:        models.TrainingScopeUser,
		UserID:       &userID,
		Status:       models.TrainingStatusTrained,
		ModelType:    string(model.KindLinear),
		NumUsers:     1,
		TotalSamples: len(samples),
		LabeledCount: labeled,
		ValRMSE:      fitMetrics["val_rmse"],
		ValMAE:       fitMetrics["val_mae"],
		TrainedAt:    m.TrainedAt(),
	})

	return TrainResult{
		Status:       models.TrainingStatusTrained,
		ModelType:    model.KindLinear,
		NumUsers:     1,
		TotalSamples: len(samples),
		Metrics:      fitMetrics,
	}, nil
}

func (t *UserTrainer) recordRun(ctx context.Context, run models.TrainingRun) {
	if _, err := t.recorder.RecordTrainingRun(ctx, run); err != nil {
		t.logger.Warn().Err(err).Str("status", run.Status).Msg("failed to record training run")
	}
}

// ShouldRetrainUser applies the retrain policy to userID's last successful
// run and current labeled state count.
func (t *UserTrainer) ShouldRetrainUser(ctx context.Context, userID int64) (bool, string, error) {
	labeled, err := t.source.LabeledCount(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("count labeled states: %w", err)
	}

	in := RetrainInput{Now: t.now(), LabeledCount: labeled}
	last, err := t.recorder.LastTrainingRun(ctx, models.TrainingScopeUser, &userID)
	switch {
	case err == nil:
		trainedAt := last.TrainedAt
		in.LastTrainedAt = &trainedAt
		in.LabeledAtLastTraining = last.LabeledCount
	case !errors.Is(err, database.ErrNotFound):
		return false, "", fmt.Errorf("load last training run: %w", err)
	}

	ok, reason := t.policy.ShouldRetrain(in)
	return ok, reason, nil
}

// Retrain retrains userID when the policy allows it. The returned error is
// non-nil only when the decision itself could not be made; training
// failures are reported as a failed outcome.
func (t *UserTrainer) Retrain(ctx context.Context, userID int64) (RetrainOutcome, error) {
	ok, reason, err := t.ShouldRetrainUser(ctx, userID)
	if err != nil {
		return RetrainOutcome{}, err
	}
	if !ok {
		return RetrainOutcome{Status: models.TrainingStatusSkipped, Reason: reason}, nil
	}

	result, err := t.TrainUser(ctx, userID, nil)
	if err != nil {
		return RetrainOutcome{Status: models.TrainingStatusFailed, Reason: err.Error()}, nil
	}
	return RetrainOutcome{Status: models.TrainingStatusTrained, Reason: reason, Metrics: result.Metrics}, nil
}

// Predict scores f with userID's model. ok is false when the user has no
// model or prediction fails. coldStart is true when the model was fitted on
// fewer real samples than the cold-start minimum, so most of what it learned
// came from synthetic padding.
func (t *UserTrainer) Predict(ctx context.Context, userID int64, f model.Features) (score float64, coldStart, ok bool) {
	h := t.userModel(ctx, userID)
	if h == nil {
		return 0, false, false
	}
	score, err := h.Predict(f)
	if err != nil {
		t.logger.Warn().Err(err).Int64("user_id", userID).Msg("user model prediction failed")
		return 0, false, false
	}
	return score, h.info.Metrics["real_samples"] < float64(t.coldStart.MinRealSamples), true
}

func (t *UserTrainer) userModel(ctx context.Context, userID int64) *ModelHandle {
	key := UserModelName(userID)
	if h, ok := t.models.Get(key); ok {
		return h
	}

	m := model.New(model.KindLinear, model.Options{})
	meta, err := t.store.Load(ctx, key, m)
	if err != nil {
		if !errors.Is(err, storage.ErrModelNotFound) {
			t.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to load user model")
		}
		t.models.Set(key, nil)
		return nil
	}

	h := &ModelHandle{
		model: m,
		info: TrainingInfo{
			NumUsers:       meta.NumUsers,
			TotalSamples:   meta.TotalSamples,
			SamplesPerUser: meta.SamplesPerUser,
			Metrics:        meta.Metrics,
			ModelType:      m.Kind(),
			TrainedAt:      meta.TrainedAt,
		},
		loadedAt: t.now(),
	}
	t.models.Set(key, h)
	return h
}

// InvalidateUser drops the cached model of userID.
func (t *UserTrainer) InvalidateUser(userID int64) {
	t.models.Delete(UserModelName(userID))
}

// Close stops the model cache cleanup goroutine.
func (t *UserTrainer) Close() {
	t.models.Close()
}
