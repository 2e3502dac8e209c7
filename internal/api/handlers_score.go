// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
)

// ScoreNotification handles POST /api/v1/score. A notification owned by another user is
// reported as not found.
func (h *Handler) ScoreNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	n, err := h.notifications.GetNotification(r.Context(), req.NotificationID)
	if err != nil && !errors.Is(err, notifications.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load notification", err)
		return
	}
	if err != nil || n.UserID != req.UserID {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Notification not found", nil)
		return
	}

	result := h.scorer.Score(r.Context(), &n, req.UserID)
	respondSuccess(w, http.StatusOK, result, start)
}

// ScoreBatch handles POST /api/v1/score/batch. Unknown IDs and IDs owned by
// another user are listed in missing; the rest are scored in request order.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ScoreBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	events := make([]models.NotificationEvent, 0, len(req.NotificationIDs))
	var missing []int64
	seen := make(map[int64]struct{}, len(req.NotificationIDs))
	for _, id := range req.NotificationIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		n, err := h.notifications.GetNotification(r.Context(), id)
		switch {
		case errors.Is(err, notifications.ErrNotFound):
			missing = append(missing, id)
		case err != nil:
			respondError(w, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load notifications", err)
			return
		case n.UserID != req.UserID:
			missing = append(missing, id)
		default:
			events = append(events, n)
		}
	}

	resp := ScoreBatchResponse{
		UserID:  req.UserID,
		Scores:  h.scorer.ScoreBatch(r.Context(), events, req.UserID),
		Missing: missing,
	}
	if resp.Scores == nil {
		resp.Scores = []engagement.ScoreResult{}
	}
	respondSuccess(w, http.StatusOK, resp, start)
}
