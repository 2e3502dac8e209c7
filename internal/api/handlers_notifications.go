// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
	"github.com/tomtom215/notifyrank/internal/validation"
)

// InteractionResponse is the data of POST /api/v1/interactions.
type InteractionResponse struct {
	Interaction models.InteractionEvent      `json:"interaction"`
	State       models.UserNotificationState `json:"state"`
}

// RecordNotification handles POST /api/v1/notifications.
func (h *Handler) RecordNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in notifications.NotificationInput
	if !decodeJSON(w, r, &in) {
		return
	}

	n, err := h.notifications.RecordNotification(r.Context(), &in)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, n, start)
}

// UpdateNotification handles PATCH /api/v1/notifications/{id}. The body is a
// merge patch over the stored event; only category may change.
func (h *Handler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	existing, err := h.notifications.GetNotification(r.Context(), id)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	updated := existing
	req.apply(&updated)
	updated.ID = id

	n, err := h.notifications.UpdateNotification(r.Context(), updated)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, n, start)
}

// RecordInteraction handles POST /api/v1/interactions.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in notifications.InteractionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	interaction, state, err := h.notifications.RecordInteraction(r.Context(), &in)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, InteractionResponse{Interaction: interaction, State: state}, start)
}

// respondEventError maps notifications.Service errors to responses.
func (h *Handler) respondEventError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	var immErr *models.ImmutabilityViolationError

	switch {
	case errors.As(err, &verr):
		respondValidation(w, verr)
	case errors.Is(err, notifications.ErrNotFound):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Notification not found", nil)
	case errors.As(err, &immErr):
		respondAPIError(w, http.StatusConflict, &models.APIError{
			Code:    ErrCodeImmutableField,
			Message: "Field cannot be changed after the notification is recorded",
			Details: map[string]interface{}{"field": immErr.Field},
		}, err)
	case errors.Is(err, models.ErrImmutabilityViolation):
		respondError(w, http.StatusConflict, ErrCodeImmutableField, "Field cannot be changed after the notification is recorded", err)
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeDatabase, "Failed to store event", err)
	}
}
