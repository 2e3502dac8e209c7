// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"fmt"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
)

// RetrainInput is the state a retrain decision is made from.
type RetrainInput struct {
	Now                   time.Time
	LastTrainedAt         *time.Time
	LabeledCount          int
	LabeledAtLastTraining int
}

// NewSamples is the number of labeled samples gained since the last training.
func (in RetrainInput) NewSamples() int {
	if n := in.LabeledCount - in.LabeledAtLastTraining; n > 0 {
		return n
	}
	return 0
}

// RetrainPolicy decides whether a model should be retrained. It holds no
// state and performs no I/O.
type RetrainPolicy struct {
	cfg config.RetrainConfig
}

// NewRetrainPolicy creates a policy from cfg.
func NewRetrainPolicy(cfg config.RetrainConfig) RetrainPolicy {
	return RetrainPolicy{cfg: cfg}
}

// ShouldRetrain returns the decision and a human-readable reason.
//
//nolint:gocritic // input passed by value; callers build it inline
func (p RetrainPolicy) ShouldRetrain(in RetrainInput) (bool, string) {
	if in.LastTrainedAt == nil {
		if in.LabeledCount < p.cfg.MinLabeled {
			return false, fmt.Sprintf("insufficient labeled data: %d < %d", in.LabeledCount, p.cfg.MinLabeled)
		}
		return true, "no model trained yet"
	}

	age := in.Now.Sub(*in.LastTrainedAt)
	if age < p.cfg.MinInterval {
		return false, fmt.Sprintf("trained recently (%s ago)", roundDuration(age))
	}

	newSamples := in.NewSamples()
	if newSamples > 0 && age >= p.cfg.MaxAge {
		return true, fmt.Sprintf("model is stale (%s old)", roundDuration(age))
	}
	if newSamples >= p.cfg.MinNewSamples {
		return true, fmt.Sprintf("%d new labeled samples since last training", newSamples)
	}
	return false, fmt.Sprintf("insufficient new data: %d < %d", newSamples, p.cfg.MinNewSamples)
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Minute {
		return d.Round(time.Second)
	}
	return d.Round(time.Minute)
}
