// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"errors"

	"github.com/tomtom215/notifyrank/internal/models"
)

var (
	// ErrDataInsufficiency is returned when there are not enough eligible
	// users or labeled samples to train. It is always wrapped with a reason.
	ErrDataInsufficiency = errors.New("insufficient training data")

	// ErrModelUnavailable is returned when an operation needs a trained
	// model and none is loaded or persisted.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTrainingFailure is returned when fitting the model errors or panics.
	ErrTrainingFailure = errors.New("model training failed")

	// ErrTrainingInProgress is returned by on-demand training while another
	// global run is active in this process.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrImmutabilityViolation is models.ErrImmutabilityViolation, re-exported
	// so callers of this package can match it without importing models.
	ErrImmutabilityViolation = models.ErrImmutabilityViolation
)
