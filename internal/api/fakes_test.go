// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
	"github.com/tomtom215/notifyrank/internal/validation"
)

// fakeNotifications is an in-memory NotificationService that validates
// inputs and enforces immutability like the real service.
type fakeNotifications struct {
	mu     sync.Mutex
	events map[int64]models.NotificationEvent
	nextID int64
	err    error
}

func newFakeNotifications(events ...models.NotificationEvent) *fakeNotifications {
	f := &fakeNotifications{events: make(map[int64]models.NotificationEvent), nextID: 100}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeNotifications) RecordNotification(_ context.Context, in *notifications.NotificationInput) (models.NotificationEvent, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.NotificationEvent{}, verr
	}
	if f.err != nil {
		return models.NotificationEvent{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := models.NotificationEvent{
		ID:       f.nextID,
		UserID:   in.UserID,
		AppID:    1,
		App:      in.App,
		Title:    in.Title,
		Text:     in.Text,
		PostTime: in.PostTime,
	}
	f.events[n.ID] = n
	return n, nil
}

func (f *fakeNotifications) UpdateNotification(_ context.Context, updated models.NotificationEvent) (models.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	original, ok := f.events[updated.ID]
	if !ok {
		return models.NotificationEvent{}, notifications.ErrNotFound
	}
	if err := models.CheckImmutable(&original, &updated); err != nil {
		return models.NotificationEvent{}, err
	}
	original.Category = updated.Category
	f.events[updated.ID] = original
	return original, nil
}

func (f *fakeNotifications) GetNotification(_ context.Context, id int64) (models.NotificationEvent, error) {
	if f.err != nil {
		return models.NotificationEvent{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.events[id]
	if !ok {
		return models.NotificationEvent{}, notifications.ErrNotFound
	}
	return n, nil
}

func (f *fakeNotifications) RecordInteraction(_ context.Context, in *notifications.InteractionInput) (models.InteractionEvent, models.UserNotificationState, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.InteractionEvent{}, models.UserNotificationState{}, verr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[in.NotificationID]; !ok {
		return models.InteractionEvent{}, models.UserNotificationState{}, notifications.ErrNotFound
	}
	ts := in.Timestamp
	event := models.InteractionEvent{
		ID:             1,
		UserID:         in.UserID,
		NotificationID: in.NotificationID,
		Type:           models.InteractionType(in.Type),
		Timestamp:      ts,
	}
	state := models.UserNotificationState{UserID: in.UserID, NotificationID: in.NotificationID, IsRead: true}
	if event.Type == models.InteractionClick {
		state.OpenedAt = &ts
	}
	return event, state, nil
}

// fakeScorer scores every notification 0.5 from the fallback.
type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, n *models.NotificationEvent, _ int64) engagement.ScoreResult {
	return engagement.ScoreResult{NotificationID: n.ID, Score: 0.5, Source: "fallback"}
}

func (s fakeScorer) ScoreBatch(ctx context.Context, ns []models.NotificationEvent, userID int64) []engagement.ScoreResult {
	out := make([]engagement.ScoreResult, 0, len(ns))
	for i := range ns {
		out = append(out, s.Score(ctx, &ns[i], userID))
	}
	return out
}

type fakeTrainer struct {
	result engagement.TrainResult
	err    error
	calls  int
	mu     sync.Mutex
}

func (f *fakeTrainer) TrainNow(context.Context) (engagement.TrainResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

type fakeModel struct {
	info   engagement.ModelInfo
	export []byte
	err    error
}

func (f *fakeModel) Info(context.Context) engagement.ModelInfo { return f.info }

func (f *fakeModel) Export(context.Context) ([]byte, error) { return f.export, f.err }

type fakeUsers struct {
	trainResult engagement.TrainResult
	trainErr    error
	trainedApps []string

	should    bool
	reason    string
	decideErr error

	outcome    engagement.RetrainOutcome
	retrainErr error
}

func (f *fakeUsers) TrainUser(_ context.Context, _ int64, apps []string) (engagement.TrainResult, error) {
	f.trainedApps = apps
	return f.trainResult, f.trainErr
}

func (f *fakeUsers) ShouldRetrainUser(context.Context, int64) (bool, string, error) {
	return f.should, f.reason, f.decideErr
}

func (f *fakeUsers) Retrain(context.Context, int64) (engagement.RetrainOutcome, error) {
	return f.outcome, f.retrainErr
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

// testDeps returns deps with one stored notification (ID 1, user 7).
func testDeps() Deps {
	return Deps{
		Notifications: newFakeNotifications(models.NotificationEvent{
			ID:       1,
			UserID:   7,
			AppID:    1,
			App:      "com.whatsapp",
			Title:    "Alice",
			Text:     "hi",
			PostTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}),
		Scorer:        fakeScorer{},
		Trainer:       &fakeTrainer{result: engagement.TrainResult{Status: models.TrainingStatusTrained}},
		Model:         &fakeModel{},
		Users:         &fakeUsers{},
		DB:            fakeDB{},
		TransportKind: "gochannel",
		Version:       "test",
	}
}

// newTestRouter builds the full route tree with the general rate limit
// disabled and a generous training bucket.
func newTestRouter(deps Deps) http.Handler {
	h := NewHandler(config.TrainingConfig{TriggerRate: 6000, TriggerBurst: 100}, deps)
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.RateLimitDisabled = true
	return NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi()
}

// testResponse is models.APIResponse with Data left raw.
type testResponse struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func decodeData(t *testing.T, resp testResponse, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", resp.Data, err)
	}
}
