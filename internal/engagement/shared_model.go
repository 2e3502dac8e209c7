// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/engagement/model"
	"github.com/tomtom215/notifyrank/internal/engagement/storage"
	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

const (
	// GlobalModelName is the artifact name of the shared model.
	GlobalModelName = "global_model"

	// GlobalModelCacheKey is the external cache key of the shared model.
	GlobalModelCacheKey = "global_notification_model"

	// neutralScore is returned when no model can answer.
	neutralScore = 0.5
)

// Score sources.
const (
	SourceUserModel   = "user_model"
	SourceGlobalModel = "global_model"
	SourceFallback    = "fallback"
	SourceNeutral     = "neutral"
)

// ModelHandle is an immutable trained model plus its training info.
// A handle is never modified after it is published; retraining builds a
// new one.
type ModelHandle struct {
	model    *model.NotificationModel
	info     TrainingInfo
	loadedAt time.Time
}

// Info returns the training info of the handle.
func (h *ModelHandle) Info() TrainingInfo {
	return h.info
}

// LoadedAt returns when the handle was built or loaded.
func (h *ModelHandle) LoadedAt() time.Time {
	return h.loadedAt
}

// Predict scores f with the handle's model.
func (h *ModelHandle) Predict(f model.Features) (float64, error) {
	return h.model.Predict(f)
}

// ModelInfo summarizes the live shared model.
type ModelInfo struct {
	Trained      bool       `json:"trained"`
	LastTrained  *time.Time `json:"last_trained,omitempty"`
	ModelType    string     `json:"model_type,omitempty"`
	NumUsers     int        `json:"num_users"`
	TotalSamples int        `json:"total_samples"`
	ValRMSE      *float64   `json:"val_rmse,omitempty"`
	ValMAE       *float64   `json:"val_mae,omitempty"`
}

// SharedModelDeps are the collaborators of a SharedModel. Cache may be nil.
type SharedModelDeps struct {
	Source   TrainingSource
	Recorder TrainingRecorder
	Labeler  *Labeler
	Features *FeatureExtractor
	Store    *storage.Store
	Cache    ModelCache
	Policy   RetrainPolicy
}

// SharedModel owns the model trained across all users. The live model is an
// atomically swapped *ModelHandle; readers never take a lock on the hot path.
type SharedModel struct {
	cfg       config.TrainingConfig
	cacheTTL  time.Duration
	source    TrainingSource
	recorder  TrainingRecorder
	labeler   *Labeler
	features  *FeatureExtractor
	store     *storage.Store
	cache     ModelCache
	policy    RetrainPolicy
	collector *sampleCollector

	handle  atomic.Pointer[ModelHandle]
	loadMu  sync.Mutex
	trainMu sync.Mutex
	breaker *gobreaker.CircuitBreaker[*ModelHandle]

	// missAt is when a reload last found no persisted model. While it is
	// fresh, Current answers nil without touching storage.
	missAt atomic.Pointer[time.Time]

	now    func() time.Time
	logger zerolog.Logger
}

// NewSharedModel creates the shared model orchestrator. No model is loaded
// until the first Current call.
//
//nolint:gocritic // config and logger passed by value at construction
func NewSharedModel(cfg config.TrainingConfig, modelsCfg config.ModelsConfig, deps SharedModelDeps, logger zerolog.Logger) (*SharedModel, error) {
	if deps.Source == nil || deps.Recorder == nil || deps.Labeler == nil || deps.Features == nil || deps.Store == nil {
		return nil, errors.New("shared model: source, recorder, labeler, features and store are required")
	}

	logger = logger.With().Str("component", "shared_model").Logger()
	return &SharedModel{
		cfg:      cfg,
		cacheTTL: modelsCfg.CacheTTL,
		source:   deps.Source,
		recorder: deps.Recorder,
		labeler:  deps.Labeler,
		features: deps.Features,
		store:    deps.Store,
		cache:    deps.Cache,
		policy:   deps.Policy,
		collector: &sampleCollector{
			source:   deps.Source,
			labeler:  deps.Labeler,
			features: deps.Features,
			logger:   logger,
		},
		breaker: newLoadBreaker("model-store", modelsCfg.LoadBreakerTimeout),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// TrainGlobalModel trains a new shared model and returns it as a handle.
// Nothing live is touched: the caller decides whether to publish it.
// Non-positive minUsers or samplesPerUser select the configured values.
func (s *SharedModel) TrainGlobalModel(ctx context.Context, minUsers, samplesPerUser int) (*ModelHandle, TrainResult, error) {
	if minUsers <= 0 {
		minUsers = s.cfg.MinUsers
	}
	if samplesPerUser <= 0 {
		samplesPerUser = s.cfg.SamplesPerUser
	}

	users, err := s.source.UsersWithLabeledStates(ctx, s.cfg.MinLabeledStates)
	if err != nil {
		err = fmt.Errorf("find eligible users: %w", err)
		return nil, failedResult(err), err
	}
	if len(users) < minUsers {
		err = fmt.Errorf("%w: %d eligible users, need at least %d", ErrDataInsufficiency, len(users), minUsers)
		return nil, failedResult(err), err
	}

	var samples []model.Sample
	perUser := make(map[int64]int, len(users))
	for _, userID := range users {
		userSamples, err := s.collector.collect(ctx, userID, samplesPerUser)
		if err != nil {
			return nil, failedResult(err), err
		}
		perUser[userID] = len(userSamples)
		samples = append(samples, userSamples...)
	}

	if len(samples) < s.cfg.MinTotalSamples {
		err = fmt.Errorf("%w: %d samples, need at least %d", ErrDataInsufficiency, len(samples), s.cfg.MinTotalSamples)
		return nil, failedResult(err), err
	}

	dist := distributionOf(samples)
	s.logger.Info().
		Int("users", len(users)).
		Int("samples", len(samples)).
		Int("high", dist.High).
		Int("mid", dist.Mid).
		Int("low", dist.Low).
		Msg("collected training samples")

	rng := rand.New(rand.NewSource(s.cfg.Seed)) //nolint:gosec // math/rand is fine for a reproducible shuffle
	rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })

	kind := s.chooseKind(len(samples))
	opts := model.DefaultOptions()
	opts.Seed = s.cfg.Seed
	m := model.New(kind, opts)

	fitMetrics, err := fitSafely(m, samples, true)
	if err != nil {
		return nil, failedResult(err), err
	}

	info := TrainingInfo{
		NumUsers:       len(users),
		TotalSamples:   len(samples),
		SamplesPerUser: perUser,
		Metrics:        fitMetrics,
		ModelType:      kind,
		TrainedAt:      m.TrainedAt(),
	}
	handle := &ModelHandle{model: m, info: info, loadedAt: s.now()}

	return handle, TrainResult{
		Status:       models.TrainingStatusTrained,
		ModelType:    kind,
		NumUsers:     info.NumUsers,
		TotalSamples: info.TotalSamples,
		Metrics:      fitMetrics,
	}, nil
}

// chooseKind picks the linear model for small datasets and the configured
// kind otherwise.
func (s *SharedModel) chooseKind(total int) model.Kind {
	if total < s.cfg.LinearMaxSamples {
		return model.KindLinear
	}
	kind, err := model.ParseKind(s.cfg.ModelKind)
	if err != nil {
		s.logger.Warn().Err(err).Msg("unknown model kind, using gbm")
		return model.KindBoosted
	}
	return kind
}

// TrainAndSave trains, persists and publishes a new shared model, then
// records the run. Concurrent calls are serialized. When any step fails,
// the save included, the previous artifact, handle and cache entry are left
// as they were.
func (s *SharedModel) TrainAndSave(ctx context.Context, minUsers, samplesPerUser int) (TrainResult, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	labeled, err := s.source.TotalLabeledCount(ctx)
	if err != nil {
		err = fmt.Errorf("count labeled states: %w", err)
		return s.finishFailed(ctx, start, err), err
	}

	handle, result, err := s.TrainGlobalModel(ctx, minUsers, samplesPerUser)
	if err != nil {
		return s.finishFailed(ctx, start, err), err
	}

	if _, err := s.store.Save(ctx, GlobalModelName, handle.model, storage.Metadata{
		ModelType:      string(handle.info.ModelType),
		TrainedAt:      handle.info.TrainedAt,
		NumUsers:       handle.info.NumUsers,
		TotalSamples:   handle.info.TotalSamples,
		SamplesPerUser: handle.info.SamplesPerUser,
		Metrics:        handle.info.Metrics,
	}); err != nil {
		err = fmt.Errorf("save global model: %w", err)
		return s.finishFailed(ctx, start, err), err
	}

	s.Invalidate(ctx)

	s.recordRun(ctx, models.TrainingRun{
		Scope:        models.TrainingScopeGlobal,
		Status:       models.TrainingStatusTrained,
		ModelType:    string(handle.info.ModelType),
		NumUsers:     handle.info.NumUsers,
		TotalSamples: handle.info.TotalSamples,
		LabeledCount: labeled,
		ValRMSE:      handle.info.Metrics["val_rmse"],
		ValMAE:       handle.info.Metrics["val_mae"],
		TrainedAt:    handle.info.TrainedAt,
	})

	duration := time.Since(start)
	metrics.RecordTraining(models.TrainingScopeGlobal, models.TrainingStatusTrained, duration)
	metrics.SetGlobalModel(handle.info.NumUsers, handle.info.TotalSamples, handle.info.Metrics["val_rmse"])

	result.DurationMS = duration.Milliseconds()
	s.logger.Info().
		Str("model_type", string(result.ModelType)).
		Int("users", result.NumUsers).
		Int("samples", result.TotalSamples).
		Float64("val_rmse", result.Metrics["val_rmse"]).
		Dur("duration", duration).
		Msg("global model trained")
	return result, nil
}

func (s *SharedModel) finishFailed(ctx context.Context, start time.Time, err error) TrainResult {
	result := failedResult(err)
	result.DurationMS = time.Since(start).Milliseconds()
	metrics.RecordTraining(models.TrainingScopeGlobal, models.TrainingStatusFailed, time.Since(start))

	if errors.Is(err, ErrDataInsufficiency) {
		s.logger.Info().Str("reason", result.Reason).Msg("global model not trained")
	} else {
		s.logger.Error().Err(err).Msg("global model training failed")
	}

	s.recordRun(ctx, models.TrainingRun{
		Scope:     models.TrainingScopeGlobal,
		Status:    models.TrainingStatusFailed,
		Reason:    result.Reason,
		TrainedAt: s.now().UTC(),
	})
	return result
}

func (s *SharedModel) recordRun(ctx context.Context, run models.TrainingRun) {
	if _, err := s.recorder.RecordTrainingRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("status", run.Status).Msg("failed to record training run")
	}
}

// ShouldRetrainGlobal applies the retrain policy to the last successful
// global run and the current labeled state count.
func (s *SharedModel) ShouldRetrainGlobal(ctx context.Context) (bool, string, error) {
	labeled, err := s.source.TotalLabeledCount(ctx)
	if err != nil {
		return false, "", fmt.Errorf("count labeled states: %w", err)
	}

	in := RetrainInput{Now: s.now(), LabeledCount: labeled}
	last, err := s.recorder.LastTrainingRun(ctx, models.TrainingScopeGlobal, nil)
	switch {
	case err == nil:
		trainedAt := last.TrainedAt
		in.LastTrainedAt = &trainedAt
		in.LabeledAtLastTraining = last.LabeledCount
	case !errors.Is(err, database.ErrNotFound):
		return false, "", fmt.Errorf("load last training run: %w", err)
	}

	ok, reason := s.policy.ShouldRetrain(in)
	return ok, reason, nil
}

// Current returns the live handle, reloading it when missing or older than
// the cache TTL. A reload tries the external cache, then the artifact on
// disk. While a handle exists, callers never wait for a reload in progress.
// It returns nil when no model is available; that answer is reused for the
// cache TTL or until Invalidate.
func (s *SharedModel) Current(ctx context.Context) *ModelHandle {
	h := s.handle.Load()
	if h != nil && s.fresh(h) {
		return h
	}
	if h == nil && s.missFresh() {
		return nil
	}

	if h != nil {
		if !s.loadMu.TryLock() {
			return h
		}
	} else {
		s.loadMu.Lock()
	}
	defer s.loadMu.Unlock()

	// Another caller may have finished a reload while we waited.
	cur := s.handle.Load()
	if cur != nil && cur != h && s.fresh(cur) {
		return cur
	}
	if cur == nil && s.missFresh() {
		return nil
	}

	loaded := s.reload(ctx)
	if loaded == nil {
		if h != nil {
			s.logger.Warn().Msg("model reload failed, keeping previous model")
		}
		return h
	}
	s.handle.Store(loaded)
	return loaded
}

func (s *SharedModel) fresh(h *ModelHandle) bool {
	return s.cacheTTL <= 0 || s.now().Sub(h.loadedAt) < s.cacheTTL
}

func (s *SharedModel) missFresh() bool {
	at := s.missAt.Load()
	return at != nil && (s.cacheTTL <= 0 || s.now().Sub(*at) < s.cacheTTL)
}

// cachedModel is the external cache representation of a handle.
type cachedModel struct {
	Info  TrainingInfo `json:"info"`
	Model []byte       `json:"model"`
}

// reload must be called with loadMu held.
func (s *SharedModel) reload(ctx context.Context) *ModelHandle {
	if h := s.loadFromCache(ctx); h != nil {
		metrics.ModelReloads.WithLabelValues("cache").Inc()
		s.missAt.Store(nil)
		return h
	}

	h, err := executeLoad(s.breaker, func() (*ModelHandle, error) {
		return s.loadFromDisk(ctx)
	})
	switch {
	case errors.Is(err, storage.ErrModelNotFound):
		metrics.ModelReloads.WithLabelValues("miss").Inc()
		missAt := s.now()
		s.missAt.Store(&missAt)
		return nil
	case err != nil:
		metrics.ModelReloads.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("failed to load global model")
		return nil
	}

	metrics.ModelReloads.WithLabelValues("disk").Inc()
	s.missAt.Store(nil)
	s.storeInCache(ctx, h)
	return h
}

func (s *SharedModel) loadFromCache(ctx context.Context) *ModelHandle {
	if s.cache == nil {
		return nil
	}
	entry, ok, err := s.cache.Get(ctx, GlobalModelCacheKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("model cache read failed")
		return nil
	}
	if !ok {
		return nil
	}

	var cached cachedModel
	if err := json.Unmarshal(entry.Value, &cached); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable cached model")
		return nil
	}
	m := model.New(cached.Info.ModelType, model.Options{})
	if err := m.UnmarshalBinary(cached.Model); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable cached model")
		return nil
	}
	return &ModelHandle{model: m, info: cached.Info, loadedAt: s.now()}
}

func (s *SharedModel) storeInCache(ctx context.Context, h *ModelHandle) {
	if s.cache == nil {
		return
	}
	data, err := h.model.MarshalBinary()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode model for cache")
		return
	}
	payload, err := json.Marshal(cachedModel{Info: h.info, Model: data})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode model for cache")
		return
	}
	if err := s.cache.Set(ctx, GlobalModelCacheKey, payload, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("model cache write failed")
	}
}

func (s *SharedModel) loadFromDisk(ctx context.Context) (*ModelHandle, error) {
	m := model.New(model.KindLinear, model.Options{})
	meta, err := s.store.Load(ctx, GlobalModelName, m)
	if err != nil {
		return nil, err
	}
	return &ModelHandle{
		model: m,
		info: TrainingInfo{
			NumUsers:       meta.NumUsers,
			TotalSamples:   meta.TotalSamples,
			SamplesPerUser: meta.SamplesPerUser,
			Metrics:        meta.Metrics,
			ModelType:      m.Kind(),
			TrainedAt:      meta.TrainedAt,
		},
		loadedAt: s.now(),
	}, nil
}

// Load forces a reload of the shared model from disk and publishes it.
func (s *SharedModel) Load(ctx context.Context) (*ModelHandle, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	h, err := executeLoad(s.breaker, func() (*ModelHandle, error) {
		return s.loadFromDisk(ctx)
	})
	if errors.Is(err, storage.ErrModelNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load global model: %w", err)
	}
	s.handle.Store(h)
	s.missAt.Store(nil)
	s.storeInCache(ctx, h)
	return h, nil
}

// LoadMetadata reads the persisted metadata without decoding the model.
func (s *SharedModel) LoadMetadata() (storage.Metadata, error) {
	meta, err := s.store.LoadMetadata(GlobalModelName)
	if errors.Is(err, storage.ErrModelNotFound) {
		return storage.Metadata{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return meta, err
}

// Invalidate drops the in-process handle, any remembered miss, the external
// cache entry and all per-user feature caches. The next Current call reloads from persisted
// storage. It is idempotent.
func (s *SharedModel) Invalidate(ctx context.Context) {
	s.loadMu.Lock()
	s.handle.Store(nil)
	s.missAt.Store(nil)
	if s.cache != nil {
		if err := s.cache.Delete(ctx, GlobalModelCacheKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete cached model")
		}
	}
	s.loadMu.Unlock()

	s.features.InvalidateAllUserCaches()
	metrics.CacheInvalidations.WithLabelValues("global_model").Inc()
}

// PredictDetailed scores f with the current model. When no model is
// available or prediction fails it returns the neutral score 0.5 with
// SourceNeutral.
func (s *SharedModel) PredictDetailed(ctx context.Context, f model.Features) (float64, string) {
	h := s.Current(ctx)
	if h == nil {
		return neutralScore, SourceNeutral
	}
	score, err := h.Predict(f)
	if err != nil {
		s.logger.Warn().Err(err).Str("app", f.App).Msg("global model prediction failed")
		return neutralScore, SourceNeutral
	}
	return score, SourceGlobalModel
}

// Predict scores f, returning 0.5 when no model can answer. It never fails.
func (s *SharedModel) Predict(ctx context.Context, f model.Features) float64 {
	score, _ := s.PredictDetailed(ctx, f)
	return score
}

// PredictBatch scores fs, returning 0.5 for every item when no model can
// answer. It never fails.
func (s *SharedModel) PredictBatch(ctx context.Context, fs []model.Features) []float64 {
	out := make([]float64, len(fs))
	h := s.Current(ctx)
	if h != nil {
		scores, err := h.model.PredictBatch(fs)
		if err == nil {
			return scores
		}
		s.logger.Warn().Err(err).Int("items", len(fs)).Msg("global batch prediction failed")
	}
	for i := range out {
		out[i] = neutralScore
	}
	return out
}

// Info summarizes the current model.
func (s *SharedModel) Info(ctx context.Context) ModelInfo {
	h := s.Current(ctx)
	if h == nil {
		return ModelInfo{}
	}

	trainedAt := h.info.TrainedAt
	info := ModelInfo{
		Trained:      true,
		LastTrained:  &trainedAt,
		ModelType:    string(h.info.ModelType),
		NumUsers:     h.info.NumUsers,
		TotalSamples: h.info.TotalSamples,
	}
	if v, ok := h.info.Metrics["val_rmse"]; ok {
		info.ValRMSE = &v
	}
	if v, ok := h.info.Metrics["val_mae"]; ok {
		info.ValMAE = &v
	}
	return info
}

// Export returns the portable JSON export of the current model.
func (s *SharedModel) Export(ctx context.Context) ([]byte, error) {
	h := s.Current(ctx)
	if h == nil {
		return nil, ErrModelUnavailable
	}
	data, err := h.model.Export()
	if err != nil {
		return nil, fmt.Errorf("export global model: %w", err)
	}
	return data, nil
}
