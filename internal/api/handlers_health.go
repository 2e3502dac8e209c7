// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/notifyrank/internal/models"
)

// readyPingTimeout bounds the database check in readiness probes.
const readyPingTimeout = 2 * time.Second

// LivenessResponse is the data of GET /api/v1/health/live.
type LivenessResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

// HealthLive handles GET /api/v1/health/live. It never touches dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, LivenessResponse{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	}, time.Time{})
}

// HealthReady handles GET /api/v1/health/ready. It answers 503 while the
// database is unreachable. A missing model does not fail readiness because
// scoring falls back to rules.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
	defer cancel()

	dbOK := h.db.Ping(ctx) == nil
	info := h.model.Info(r.Context())

	states := map[string]string{
		"database":  "ok",
		"model":     "untrained",
		"transport": h.transportKind,
	}
	if !dbOK {
		states["database"] = "unreachable"
	}
	if info.Trained {
		states["model"] = info.ModelType
	}

	health := models.HealthStatus{
		Status:        "healthy",
		Version:       h.version,
		Uptime:        time.Since(h.startTime).Seconds(),
		DatabaseOK:    dbOK,
		ModelTrained:  info.Trained,
		ServiceStates: states,
	}
	status := http.StatusOK
	if !dbOK {
		health.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	respondSuccess(w, status, health, start)
}
