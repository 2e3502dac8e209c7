// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import "errors"

var (
	// ErrInsufficientSamples is returned by Train when fewer than
	// MinTrainSamples samples are supplied.
	ErrInsufficientSamples = errors.New("insufficient training samples")

	// ErrNotTrained is returned by Predict before Train or Load succeeded.
	ErrNotTrained = errors.New("model not trained")

	// ErrTrainingDiverged is returned when the fitted model produces NaN or Inf.
	ErrTrainingDiverged = errors.New("training diverged")

	// ErrFeatureMismatch is returned when a feature vector has the wrong width.
	ErrFeatureMismatch = errors.New("numeric feature count mismatch")

	// ErrUnknownCategory is reserved for strict categorical encoding. The
	// encoder maps unseen apps to an all-zero block, so Predict never returns it.
	ErrUnknownCategory = errors.New("unknown categorical value")
)
