// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/logging"
	"github.com/tomtom215/notifyrank/internal/models"
)

// retrainStatusRetrained is reported by POST .../retrain when a model was
// rebuilt.
const retrainStatusRetrained = "retrained"

// TrainGlobal handles POST /api/v1/model/train. It trains immediately,
// bypassing the retrain policy.
func (h *Handler) TrainGlobal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result, err := h.trainer.TrainNow(r.Context())
	if err != nil {
		respondTrainError(w, result, err)
		return
	}

	logging.Info().
		Str("model_type", string(result.ModelType)).
		Int("total_samples", result.TotalSamples).
		Int("num_users", result.NumUsers).
		Msg("Global model trained on demand")
	respondSuccess(w, http.StatusOK, result, start)
}

// TrainUser handles POST /api/v1/users/{userID}/train.
func (h *Handler) TrainUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req TrainUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	result, err := h.users.TrainUser(r.Context(), userID, req.Apps)
	if err != nil {
		respondTrainError(w, result, err)
		return
	}
	respondSuccess(w, http.StatusOK, result, start)
}

// RetrainUser handles POST /api/v1/users/{userID}/retrain. The retrain
// policy decides whether the model is rebuilt; a skip is not an error.
func (h *Handler) RetrainUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	outcome, err := h.users.Retrain(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabase, "Failed to evaluate retrain policy", err)
		return
	}

	switch outcome.Status {
	case models.TrainingStatusFailed:
		respondAPIError(w, http.StatusBadRequest, &models.APIError{
			Code:    ErrCodeTrainingFailed,
			Message: "Retraining failed",
			Details: map[string]interface{}{"status": outcome.Status, "reason": outcome.Reason},
		}, nil)
	case models.TrainingStatusTrained:
		outcome.Status = retrainStatusRetrained
		respondSuccess(w, http.StatusOK, outcome, start)
	default:
		respondSuccess(w, http.StatusOK, outcome, start)
	}
}

// RetrainDecision handles GET /api/v1/users/{userID}/retrain. Nothing is
// trained.
func (h *Handler) RetrainDecision(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	should, reason, err := h.users.ShouldRetrainUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeDatabase, "Failed to evaluate retrain policy", err)
		return
	}
	respondSuccess(w, http.StatusOK, RetrainDecision{
		UserID:        userID,
		ShouldRetrain: should,
		Reason:        reason,
	}, start)
}

// ModelInfo handles GET /api/v1/model/info.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.model.Info(r.Context()), start)
}

// ExportModel handles GET /api/v1/model/export. The body is the raw
// portable export, not the JSON envelope.
func (h *Handler) ExportModel(w http.ResponseWriter, r *http.Request) {
	data, err := h.model.Export(r.Context())
	if errors.Is(err, engagement.ErrModelUnavailable) {
		respondError(w, http.StatusNotFound, ErrCodeModelUnavailable, "No trained model available", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to export model", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="global_model_export.json"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write model export")
	}
}

// respondTrainError maps a failed training attempt to a response carrying
// the result's status and reason.
func respondTrainError(w http.ResponseWriter, result engagement.TrainResult, err error) {
	status := result.Status
	if status == "" {
		status = models.TrainingStatusFailed
	}
	reason := result.Reason
	if reason == "" {
		reason = err.Error()
	}
	details := map[string]interface{}{"status": status, "reason": reason}

	switch {
	case errors.Is(err, engagement.ErrTrainingInProgress):
		respondAPIError(w, http.StatusConflict, &models.APIError{
			Code:    ErrCodeTrainingInProgress,
			Message: "A training run is already in progress",
			Details: details,
		}, nil)
	case errors.Is(err, engagement.ErrDataInsufficiency):
		respondAPIError(w, http.StatusBadRequest, &models.APIError{
			Code:    ErrCodeInsufficientData,
			Message: "Not enough data to train",
			Details: details,
		}, err)
	default:
		respondAPIError(w, http.StatusInternalServerError, &models.APIError{
			Code:    ErrCodeTrainingFailed,
			Message: "Training failed",
			Details: details,
		}, err)
	}
}
