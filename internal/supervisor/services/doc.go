// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package services adapts NotifyRank components to suture's Serve pattern.

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

TrainingService (data layer):
  - Checks the retrain policy on startup (optional) and on every interval tick
  - Retrains the global model only when the policy agrees
  - TrainNow backs the admin train endpoint and bypasses the policy
  - Runs never overlap; a concurrent TrainNow gets ErrTrainingInProgress

IngestService (messaging layer):
  - Builds a fresh watermill router on every start
  - Returns an error whenever the router exits before shutdown

HTTPServerService (api layer):
  - Wraps *http.Server
  - Graceful Shutdown with its own timeout once ctx is canceled

# Return Values

Every Serve returns ctx.Err() after cancellation and a wrapped error for
failures, which suture answers with a restart.
*/
package services
