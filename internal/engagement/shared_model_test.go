// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/engagement/model"
	"github.com/tomtom215/notifyrank/internal/engagement/storage"
	"github.com/tomtom215/notifyrank/internal/models"
)

// heldOutOTP is a feature record that never appears verbatim in training.
func heldOutOTP() model.Features {
	r := FeatureRecord{
		App:                "com.bank",
		Hour:               11,
		IsLikelyOTP:        true,
		HasPerson:          true,
		IsWorkHours:        true,
		AppOpenRate:        1,
		UserGlobalOpenRate: 0.35,
	}
	return r.ModelFeatures()
}

func seedUsers(f *fakeStore, users, perUser int) {
	for u := 1; u <= users; u++ {
		seedUser(f, int64(u), perUser)
	}
}

func TestTrainAndSaveEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if p := env.shared.Predict(ctx, heldOutOTP()); p != 0.5 {
		t.Errorf("untrained Predict = %v, want 0.5", p)
	}

	result, err := env.shared.TrainAndSave(ctx, 5, 0)
	if err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	if result.Status != models.TrainingStatusTrained || result.NumUsers != 6 || result.TotalSamples != 150 {
		t.Errorf("result = %+v", result)
	}
	if result.ModelType != model.KindLinear {
		t.Errorf("model type = %s, want linear below the sample threshold", result.ModelType)
	}
	if _, ok := result.Metrics["val_rmse"]; !ok {
		t.Error("validation metrics missing")
	}

	for _, path := range []string{env.models.ModelPath(GlobalModelName), env.models.MetadataPath(GlobalModelName)} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s: %v", path, err)
		}
	}

	run := f.lastRun()
	if run.Scope != models.TrainingScopeGlobal || run.Status != models.TrainingStatusTrained || run.LabeledCount != 150 || run.UserID != nil {
		t.Errorf("recorded run = %+v", run)
	}

	score, source := env.shared.PredictDetailed(ctx, heldOutOTP())
	if source != SourceGlobalModel {
		t.Fatalf("source = %s, want %s", source, SourceGlobalModel)
	}
	if score < 0 || score > 1 || score == 0.5 {
		t.Errorf("score = %v, want a non-neutral value in [0,1]", score)
	}

	info := env.shared.Info(ctx)
	if !info.Trained || info.NumUsers != 6 || info.TotalSamples != 150 || info.ValRMSE == nil || info.LastTrained == nil {
		t.Errorf("info = %+v", info)
	}

	data, err := env.shared.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc model.Export
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.ModelType != model.KindLinear || doc.Linear == nil {
		t.Errorf("export = %+v", doc)
	}
}

func TestTrainGlobalModelDoesNotPublish(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)

	h, result, err := env.shared.TrainGlobalModel(context.Background(), 5, 25)
	if err != nil {
		t.Fatalf("TrainGlobalModel: %v", err)
	}
	if h == nil || result.Status != models.TrainingStatusTrained {
		t.Fatalf("handle=%v result=%+v", h, result)
	}
	if h.Info().SamplesPerUser[3] != 25 {
		t.Errorf("samples per user = %v", h.Info().SamplesPerUser)
	}
	if env.shared.handle.Load() != nil {
		t.Error("TrainGlobalModel must not publish the handle")
	}
	if env.models.Exists(GlobalModelName) {
		t.Error("TrainGlobalModel must not persist the model")
	}
	if len(f.runs) != 0 {
		t.Error("TrainGlobalModel must not record a run")
	}
}

func TestTrainFailureLeavesModelUntouched(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	before := env.shared.Current(ctx)
	if before == nil {
		t.Fatal("expected a live model after training")
	}
	if _, ok, _ := env.kv.Get(ctx, GlobalModelCacheKey); !ok {
		t.Fatal("expected the model in the external cache after reload")
	}

	f.mu.Lock()
	f.eligibleCap = 2
	f.mu.Unlock()

	result, err := env.shared.TrainAndSave(ctx, 5, 0)
	if !errors.Is(err, ErrDataInsufficiency) {
		t.Fatalf("err = %v, want ErrDataInsufficiency", err)
	}
	if result.Status != models.TrainingStatusFailed || result.Reason == "" {
		t.Errorf("result = %+v", result)
	}

	if after := env.shared.Current(ctx); after != before {
		t.Error("failed training replaced the live model")
	}
	if _, ok, _ := env.kv.Get(ctx, GlobalModelCacheKey); !ok {
		t.Error("failed training dropped the cache entry")
	}
	if !env.models.Exists(GlobalModelName) {
		t.Error("failed training removed the artifact")
	}
	if run := f.lastRun(); run.Status != models.TrainingStatusFailed {
		t.Errorf("last run = %+v, want failed", run)
	}
}

func TestTrainAndSaveMetadataFailureKeepsPersistedModel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}

	seedUser(f, 7, 25)
	metaPath := env.models.MetadataPath(GlobalModelName)
	if err := os.Remove(metaPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.Mkdir(metaPath, 0o750); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(metaPath, "keep"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := env.shared.TrainAndSave(ctx, 5, 0)
	if err == nil {
		t.Fatal("expected save failure")
	}
	if result.Status != models.TrainingStatusFailed {
		t.Errorf("result = %+v", result)
	}

	h, err := env.shared.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Info().NumUsers != 6 || h.Info().TotalSamples != 150 {
		t.Errorf("persisted model = %d users / %d samples, want the previous 6 / 150",
			h.Info().NumUsers, h.Info().TotalSamples)
	}
}

func TestTrainTooFewSamples(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 5, 20)
	env := newTestEnv(t, f)

	// 5 users x 10 samples is below the 100 sample minimum.
	_, _, err := env.shared.TrainGlobalModel(context.Background(), 5, 10)
	if !errors.Is(err, ErrDataInsufficiency) {
		t.Errorf("err = %v, want ErrDataInsufficiency", err)
	}
}

func TestInvalidateReloadsFromStorage(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	first := env.shared.Current(ctx)
	if first == nil {
		t.Fatal("no model after training")
	}

	env.shared.Invalidate(ctx)
	env.shared.Invalidate(ctx)
	if _, ok, _ := env.kv.Get(ctx, GlobalModelCacheKey); ok {
		t.Error("cache entry survived invalidation")
	}

	second := env.shared.Current(ctx)
	if second == nil || second == first {
		t.Fatal("Current should reload a fresh handle from storage")
	}
	p1, _ := first.Predict(heldOutOTP())
	p2, _ := second.Predict(heldOutOTP())
	if p1 != p2 {
		t.Errorf("reloaded prediction %v != original %v", p2, p1)
	}

	// With nothing persisted the neutral score is served, never the old handle.
	if err := env.models.Delete(GlobalModelName); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	env.shared.Invalidate(ctx)
	if score, source := env.shared.PredictDetailed(ctx, heldOutOTP()); score != 0.5 || source != SourceNeutral {
		t.Errorf("PredictDetailed = %v, %s, want 0.5 neutral", score, source)
	}
	if _, err := env.shared.Export(ctx); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Export err = %v, want ErrModelUnavailable", err)
	}
	if info := env.shared.Info(ctx); info.Trained {
		t.Errorf("info = %+v, want untrained", info)
	}
}

func TestCurrentUsesExternalCache(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	if env.shared.Current(ctx) == nil {
		t.Fatal("no model after training")
	}

	// A second instance with an empty artifact directory but the same
	// external cache loads the model from the cache.
	emptyStore, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	other, err := NewSharedModel(env.cfg.Engagement.Training, env.cfg.Models, SharedModelDeps{
		Source:   f,
		Recorder: f,
		Labeler:  env.labeler,
		Features: env.features,
		Store:    emptyStore,
		Cache:    env.kv,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSharedModel: %v", err)
	}

	h := other.Current(ctx)
	if h == nil {
		t.Fatal("expected the cached model")
	}
	if h.Info().NumUsers != 6 || h.Info().ModelType != model.KindLinear {
		t.Errorf("cached info = %+v", h.Info())
	}
}

func TestCurrentReloadsAfterTTL(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	first := env.shared.Current(ctx)

	env.shared.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	second := env.shared.Current(ctx)
	if second == nil || second == first {
		t.Error("expired handle should be reloaded")
	}
}

func TestCurrentRemembersMissingModel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if env.shared.Current(ctx) != nil {
		t.Fatal("expected no model before training")
	}
	if env.shared.missAt.Load() == nil {
		t.Fatal("miss was not remembered")
	}

	// Persist a model behind the orchestrator's back. The remembered miss
	// hides it until the TTL passes.
	h, _, err := env.shared.TrainGlobalModel(ctx, 5, 0)
	if err != nil {
		t.Fatalf("TrainGlobalModel: %v", err)
	}
	if _, err := env.models.Save(ctx, GlobalModelName, h.model, storage.Metadata{NumUsers: 6}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if env.shared.Current(ctx) != nil {
		t.Error("storage was read again while the miss was fresh")
	}

	env.shared.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if got := env.shared.Current(ctx); got == nil || got.Info().NumUsers != 6 {
		t.Fatalf("Current after TTL = %v, want the persisted model", got)
	}
	if env.shared.missAt.Load() != nil {
		t.Error("successful reload kept the miss")
	}
}

func TestInvalidateForgetsMissingModel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	if score, source := env.shared.PredictDetailed(ctx, heldOutOTP()); score != 0.5 || source != SourceNeutral {
		t.Fatalf("untrained PredictDetailed = %v, %s", score, source)
	}
	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	if _, source := env.shared.PredictDetailed(ctx, heldOutOTP()); source != SourceGlobalModel {
		t.Errorf("source after training = %s, want %s", source, SourceGlobalModel)
	}
}

func TestShouldRetrainGlobal(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUsers(f, 6, 25)
	env := newTestEnv(t, f)
	ctx := context.Background()

	ok, reason, err := env.shared.ShouldRetrainGlobal(ctx)
	if err != nil || !ok || reason != "no model trained yet" {
		t.Errorf("before training = %v, %q, %v", ok, reason, err)
	}

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}

	ok, _, err = env.shared.ShouldRetrainGlobal(ctx)
	if err != nil || ok {
		t.Errorf("after training = %v, %v, want false", ok, err)
	}
}

func TestNewSharedModelRequiresDeps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeStore())
	if _, err := NewSharedModel(env.cfg.Engagement.Training, env.cfg.Models, SharedModelDeps{}, zerolog.Nop()); err == nil {
		t.Error("expected error for missing dependencies")
	}
}
