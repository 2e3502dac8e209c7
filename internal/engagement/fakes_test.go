// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/engagement/storage"
	"github.com/tomtom215/notifyrank/internal/kvstore"
	"github.com/tomtom215/notifyrank/internal/models"
)

type stateKey struct {
	user         int64
	notification int64
}

type aggKey struct {
	user int64
	app  int64
	day  int64
}

// fakeStore is an in-memory implementation of every store interface used
// by this package.
type fakeStore struct {
	mu            sync.Mutex
	notifications []models.NotificationEvent
	states        map[stateKey]models.UserNotificationState
	aggregates    map[aggKey]models.DailyAggregate
	runs          []models.TrainingRun
	scores        map[stateKey]float64

	statsCalls  int
	statsErr    error
	eligibleCap int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:     make(map[stateKey]models.UserNotificationState),
		aggregates: make(map[aggKey]models.DailyAggregate),
		scores:     make(map[stateKey]float64),
	}
}

func (f *fakeStore) addNotification(n models.NotificationEvent) models.NotificationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.notifications) + 1)
	f.notifications = append(f.notifications, n)
	return n
}

func (f *fakeStore) setState(s models.UserNotificationState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[stateKey{s.UserID, s.NotificationID}] = s
}

func (f *fakeStore) IncrementAggregate(_ context.Context, d models.AggregateDelta) (models.DailyAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aggKey{d.UserID, d.AppID, d.Day.Unix()}
	agg, ok := f.aggregates[key]
	if !ok {
		agg = models.DailyAggregate{UserID: d.UserID, AppID: d.AppID, Day: d.Day}
	}
	agg.Posts += int64(d.Posts)
	agg.Clicks += int64(d.Clicks)
	agg.Swipes += int64(d.Swipes)
	agg.OpenRate = models.OpenRate(agg.Clicks, agg.Posts)
	f.aggregates[key] = agg
	return agg, nil
}

func (f *fakeStore) GetAggregate(_ context.Context, userID, appID int64, day time.Time) (models.DailyAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg, ok := f.aggregates[aggKey{userID, appID, day.Unix()}]
	if !ok {
		return models.DailyAggregate{}, database.ErrNotFound
	}
	return agg, nil
}

func (f *fakeStore) GetState(_ context.Context, userID, notificationID int64) (models.UserNotificationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[stateKey{userID, notificationID}]
	if !ok {
		return models.UserNotificationState{}, database.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetStates(_ context.Context, userID int64, ids []int64) (map[int64]models.UserNotificationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]models.UserNotificationState)
	for _, id := range ids {
		if s, ok := f.states[stateKey{userID, id}]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) UserAppStats(_ context.Context, userID int64, _ time.Time) ([]models.AppPostStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.statsErr != nil {
		return nil, f.statsErr
	}

	byApp := make(map[string]*models.AppPostStats)
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		s, ok := byApp[n.App]
		if !ok {
			s = &models.AppPostStats{App: n.App}
			byApp[n.App] = s
		}
		s.Posts++
		if st, ok := f.states[stateKey{userID, n.ID}]; ok && st.OpenedAt != nil {
			s.Clicks++
		}
	}

	out := make([]models.AppPostStats, 0, len(byApp))
	for _, s := range byApp {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].App < out[j].App })
	return out, nil
}

func (f *fakeStore) CountAppPostsBetween(_ context.Context, userID int64, app string, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.UserID == userID && n.App == app && !n.PostTime.Before(from) && n.PostTime.Before(to) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) labeledByUser() map[int64]int {
	counts := make(map[int64]int)
	for _, s := range f.states {
		if s.IsLabeled() {
			counts[s.UserID]++
		}
	}
	return counts
}

func (f *fakeStore) UsersWithLabeledStates(_ context.Context, minLabeled int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []int64
	for user, n := range f.labeledByUser() {
		if n >= minLabeled {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	if f.eligibleCap > 0 && len(users) > f.eligibleCap {
		users = users[:f.eligibleCap]
	}
	return users, nil
}

func (f *fakeStore) RecentNotifications(_ context.Context, userID int64, limit int) ([]models.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NotificationEvent
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostTime.After(out[j].PostTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UserApps(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var apps []string
	for _, n := range f.notifications {
		if _, ok := seen[n.App]; n.UserID == userID && !ok {
			seen[n.App] = struct{}{}
			apps = append(apps, n.App)
		}
	}
	sort.Strings(apps)
	return apps, nil
}

func (f *fakeStore) LabeledCount(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labeledByUser()[userID], nil
}

func (f *fakeStore) TotalLabeledCount(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.labeledByUser() {
		total += n
	}
	return total, nil
}

func (f *fakeStore) RecordTrainingRun(_ context.Context, run models.TrainingRun) (models.TrainingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeStore) LastTrainingRun(_ context.Context, scope string, userID *int64) (models.TrainingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		run := f.runs[i]
		if run.Scope != scope || run.Status != models.TrainingStatusTrained {
			continue
		}
		if (userID == nil) != (run.UserID == nil) {
			continue
		}
		if userID != nil && *userID != *run.UserID {
			continue
		}
		return run, nil
	}
	return models.TrainingRun{}, database.ErrNotFound
}

func (f *fakeStore) SetMLScore(_ context.Context, userID, notificationID int64, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[stateKey{userID, notificationID}] = score
	return nil
}

func (f *fakeStore) lastRun() models.TrainingRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return models.TrainingRun{}
	}
	return f.runs[len(f.runs)-1]
}

// seedUser records count labeled notifications for userID, one per hour
// ending two days ago. They cycle through a clicked OTP message, a promotion
// swiped within seconds and a digest swiped after half an hour.
func seedUser(f *fakeStore, userID int64, count int) {
	base := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < count; i++ {
		posted := base.Add(-time.Duration(i) * time.Hour)
		n := models.NotificationEvent{UserID: userID, PostTime: posted}
		state := models.UserNotificationState{UserID: userID}

		switch i % 3 {
		case 0:
			n.App, n.Title, n.Text = "com.bank", "Bank", "Your verification code is 482913"
			opened := posted.Add(time.Minute)
			state.OpenedAt, state.IsRead = &opened, true
		case 1:
			n.App, n.Title, n.Text = "com.shop", "Weekend deals", "Big sale, 50% off everything today"
			dismissed := posted.Add(5 * time.Second)
			state.DismissedAt = &dismissed
		default:
			n.App, n.Title, n.Text = "com.news", "weekly digest", "top stories of the week"
			dismissed := posted.Add(30 * time.Minute)
			state.DismissedAt = &dismissed
		}

		n = f.addNotification(n)
		state.NotificationID = n.ID
		state.LastUpdated = posted
		f.setState(state)
	}
}

type testEnv struct {
	cfg      *config.Config
	store    *fakeStore
	features *FeatureExtractor
	labeler  *Labeler
	models   *storage.Store
	kv       *kvstore.Store
	shared   *SharedModel
}

func newTestEnv(t *testing.T, f *fakeStore) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Models.Dir = t.TempDir()

	features := NewFeatureExtractor(cfg.Engagement.Features, time.UTC, f, zerolog.Nop())
	t.Cleanup(features.Close)

	modelStore, err := storage.NewStore(cfg.Models.Dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	kv, err := kvstore.Open("", "test")
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	labeler := NewLabeler(cfg.Engagement.Labeler, f)
	shared, err := NewSharedModel(cfg.Engagement.Training, cfg.Models, SharedModelDeps{
		Source:   f,
		Recorder: f,
		Labeler:  labeler,
		Features: features,
		Store:    modelStore,
		Cache:    kv,
		Policy:   NewRetrainPolicy(cfg.Engagement.Retrain),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSharedModel: %v", err)
	}

	return &testEnv{
		cfg:      cfg,
		store:    f,
		features: features,
		labeler:  labeler,
		models:   modelStore,
		kv:       kv,
		shared:   shared,
	}
}

func (e *testEnv) newUserTrainer(t *testing.T) *UserTrainer {
	t.Helper()
	trainer, err := NewUserTrainer(e.cfg.Engagement.Training, e.cfg.Engagement.ColdStart, e.cfg.Models, UserTrainerDeps{
		Source:    e.store,
		Recorder:  e.store,
		Labeler:   e.labeler,
		Features:  e.features,
		Store:     e.models,
		Generator: NewSyntheticGenerator(e.cfg.Engagement.ColdStart.Seed, e.cfg.Engagement.Features),
		Policy:    NewRetrainPolicy(e.cfg.Engagement.Retrain),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUserTrainer: %v", err)
	}
	t.Cleanup(trainer.Close)
	return trainer
}
