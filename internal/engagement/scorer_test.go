// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/models"
)

func newOTP(f *fakeStore, userID int64) models.NotificationEvent {
	return f.addNotification(models.NotificationEvent{
		UserID:   userID,
		App:      "com.bank",
		Title:    "Bank",
		Text:     "Your verification code is 118822",
		PostTime: time.Now().UTC(),
	})
}

func TestScorerFallsBackWithoutModels(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	env := newTestEnv(t, f)
	scorer := NewScorer(env.features, nil, env.shared, f, zerolog.Nop())
	n := newOTP(f, 7)

	result := scorer.Score(context.Background(), &n, 7)
	if result.Source != SourceFallback || result.NotificationID != n.ID {
		t.Errorf("result = %+v", result)
	}
	if result.Score < 0 || result.Score > 1 {
		t.Errorf("score = %v", result.Score)
	}

	f.mu.Lock()
	stored, ok := f.scores[stateKey{7, n.ID}]
	f.mu.Unlock()
	if !ok || stored != result.Score {
		t.Errorf("stored score = %v (%v), want %v", stored, ok, result.Score)
	}
}

func TestScorerPrefersUserModel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	for u := int64(1); u <= 6; u++ {
		seedUser(f, u, 25)
	}
	env := newTestEnv(t, f)
	trainer := env.newUserTrainer(t)
	scorer := NewScorer(env.features, trainer, env.shared, nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}

	n := newOTP(f, 1)
	if got := scorer.Score(ctx, &n, 1); got.Source != SourceGlobalModel {
		t.Errorf("source = %s, want %s", got.Source, SourceGlobalModel)
	}

	if _, err := trainer.TrainUser(ctx, 1, nil); err != nil {
		t.Fatalf("TrainUser: %v", err)
	}
	if got := scorer.Score(ctx, &n, 1); got.Source != SourceUserModel {
		t.Errorf("source = %s, want %s", got.Source, SourceUserModel)
	}

	// Other users still get the shared model.
	other := newOTP(f, 2)
	if got := scorer.Score(ctx, &other, 2); got.Source != SourceGlobalModel {
		t.Errorf("user 2 source = %s, want %s", got.Source, SourceGlobalModel)
	}
}

func TestScorerColdStartUserModel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	for u := int64(1); u <= 6; u++ {
		seedUser(f, u, 25)
	}
	// Too few labeled states to join shared training.
	seedUser(f, 8, 5)
	env := newTestEnv(t, f)
	trainer := env.newUserTrainer(t)
	scorer := NewScorer(env.features, trainer, env.shared, nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := trainer.TrainUser(ctx, 8, nil); err != nil {
		t.Fatalf("TrainUser: %v", err)
	}
	n := newOTP(f, 8)

	// Without a shared model the padded user model beats the rules.
	if got := scorer.Score(ctx, &n, 8); got.Source != SourceUserModel {
		t.Errorf("source without shared model = %s, want %s", got.Source, SourceUserModel)
	}

	if _, err := env.shared.TrainAndSave(ctx, 5, 0); err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}
	if got := scorer.Score(ctx, &n, 8); got.Source != SourceGlobalModel {
		t.Errorf("source with shared model = %s, want %s", got.Source, SourceGlobalModel)
	}
}

func TestScorerExtractionFailure(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	f.statsErr = errors.New("db unavailable")
	env := newTestEnv(t, f)
	scorer := NewScorer(env.features, nil, env.shared, nil, zerolog.Nop())
	n := newOTP(f, 3)

	result := scorer.Score(context.Background(), &n, 3)
	if result.Source != SourceFallback {
		t.Fatalf("source = %s, want %s", result.Source, SourceFallback)
	}
	static := env.features.StaticFeatures(&n)
	if want := (FallbackPredictor{}).Predict(&static); result.Score != want {
		t.Errorf("score = %v, want %v", result.Score, want)
	}
}

func TestScoreBatchKeepsOrder(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	env := newTestEnv(t, f)
	scorer := NewScorer(env.features, nil, env.shared, nil, zerolog.Nop())

	batch := []models.NotificationEvent{newOTP(f, 4), newOTP(f, 4), newOTP(f, 4)}
	results := scorer.ScoreBatch(context.Background(), batch, 4)
	if len(results) != len(batch) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.NotificationID != batch[i].ID {
			t.Errorf("result %d is for notification %d, want %d", i, r.NotificationID, batch[i].ID)
		}
	}
}
