// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package model implements the notification engagement classifier.
//
// A NotificationModel maps one categorical input (the app package) and a
// fixed numeric feature vector to an engagement probability in [0, 1].
// Labels are continuous; labels >= 0.5 count as the positive class when
// computing balanced sample weights.
//
// # Kinds
//
//   - KindLinear ("ridge"): logistic regression fitted by L-BFGS
//     (gonum optimize) on standardized columns with an L2 penalty
//   - KindBoosted ("gbm"): gradient-boosted regression trees on the
//     logistic loss with Newton leaf values
//
// Training is deterministic for a given Options.Seed.
//
// # Encoding
//
// The app is one-hot encoded over the sorted vocabulary seen in training.
// Unseen apps encode as all zeros, so prediction never fails on a new app.
//
// # Persistence
//
// Save/Load use gob. Export produces a portable JSON document with the
// input schema and the fitted parameters.
package model
