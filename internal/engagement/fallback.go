// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

// Fallback rule weights.
const (
	fallbackBase             = 0.5
	fallbackOTP              = 0.25
	fallbackHighPriority     = 0.15
	fallbackPerson           = 0.10
	fallbackQuestion         = 0.05
	fallbackPromo            = -0.20
	fallbackBurst            = -0.10
	fallbackRare             = 0.05
	fallbackSleep            = -0.15
	fallbackWorkHighPriority = 0.10
	fallbackAppRateWeight    = 0.2
	fallbackUserRateWeight   = 0.1
)

// FallbackPredictor scores a notification with fixed rules when no trained
// model is usable. A neutral record (no flags, both rates at 0.5) scores
// exactly 0.5.
type FallbackPredictor struct{}

// Predict returns the rule-based score of r, clamped to [0, 1].
func (FallbackPredictor) Predict(r *FeatureRecord) float64 {
	score := fallbackBase

	if r.IsLikelyOTP {
		score += fallbackOTP
	}
	if r.IsHighPriorityApp {
		score += fallbackHighPriority
	}
	if r.HasPerson {
		score += fallbackPerson
	}
	if r.HasQuestion {
		score += fallbackQuestion
	}
	if r.IsLikelyPromo {
		score += fallbackPromo
	}
	if r.IsNotificationBurst {
		score += fallbackBurst
	}
	if r.IsRareNotification {
		score += fallbackRare
	}
	if r.IsSleepHours {
		score += fallbackSleep
	}
	if r.IsWorkHours && r.IsHighPriorityApp {
		score += fallbackWorkHighPriority
	}

	score += fallbackAppRateWeight * (r.AppOpenRate - 0.5)
	score += fallbackUserRateWeight * (r.UserGlobalOpenRate - 0.5)

	return clamp01(score)
}
