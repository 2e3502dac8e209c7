// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
)

// NotificationService records events. Implemented by *notifications.Service.
type NotificationService interface {
	RecordNotification(ctx context.Context, in *notifications.NotificationInput) (models.NotificationEvent, error)
	UpdateNotification(ctx context.Context, updated models.NotificationEvent) (models.NotificationEvent, error)
	GetNotification(ctx context.Context, id int64) (models.NotificationEvent, error)
	RecordInteraction(ctx context.Context, in *notifications.InteractionInput) (models.InteractionEvent, models.UserNotificationState, error)
}

// Scorer serves scores. Implemented by *engagement.Scorer.
type Scorer interface {
	Score(ctx context.Context, n *models.NotificationEvent, userID int64) engagement.ScoreResult
	ScoreBatch(ctx context.Context, notifications []models.NotificationEvent, userID int64) []engagement.ScoreResult
}

// GlobalTrainer triggers an immediate global training run. Implemented by
// *services.TrainingService so API runs never overlap scheduled ones.
type GlobalTrainer interface {
	TrainNow(ctx context.Context) (engagement.TrainResult, error)
}

// ModelInspector describes and exports the shared model. Implemented by
// *engagement.SharedModel.
type ModelInspector interface {
	Info(ctx context.Context) engagement.ModelInfo
	Export(ctx context.Context) ([]byte, error)
}

// UserTrainer trains per-user models. Implemented by *engagement.UserTrainer.
type UserTrainer interface {
	TrainUser(ctx context.Context, userID int64, apps []string) (engagement.TrainResult, error)
	ShouldRetrainUser(ctx context.Context, userID int64) (bool, string, error)
	Retrain(ctx context.Context, userID int64) (engagement.RetrainOutcome, error)
}

// HealthChecker reports database reachability. Implemented by *database.DB.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Notifications NotificationService
	Scorer        Scorer
	Trainer       GlobalTrainer
	Model         ModelInspector
	Users         UserTrainer
	DB            HealthChecker

	// TransportKind names the ingest transport for readiness output.
	TransportKind string
	Version       string
}

// Handler serves the HTTP API.
type Handler struct {
	notifications NotificationService
	scorer        Scorer
	trainer       GlobalTrainer
	model         ModelInspector
	users         UserTrainer
	db            HealthChecker

	transportKind string
	version       string
	startTime     time.Time

	// trainLimiter is shared by every on-demand training endpoint.
	trainLimiter *rate.Limiter
}

// NewHandler creates a Handler. Training triggers are limited to
// training.TriggerRate per minute with burst training.TriggerBurst.
func NewHandler(training config.TrainingConfig, deps Deps) *Handler {
	perMinute := training.TriggerRate
	if perMinute <= 0 {
		perMinute = 2
	}
	burst := training.TriggerBurst
	if burst <= 0 {
		burst = 1
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return &Handler{
		notifications: deps.Notifications,
		scorer:        deps.Scorer,
		trainer:       deps.Trainer,
		model:         deps.Model,
		users:         deps.Users,
		db:            deps.DB,
		transportKind: deps.TransportKind,
		version:       version,
		startTime:     time.Now(),
		trainLimiter:  rate.NewLimiter(rate.Limit(perMinute/60), burst),
	}
}

// pathID parses a positive int64 URL parameter. It writes the 400 itself
// and returns false on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}
