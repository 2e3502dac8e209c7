// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/engagement/model"
)

// baselineSamples is the number of synthetic samples baselineModel trains on.
const baselineSamples = 500

// defaultSyntheticApps is used when the caller knows no apps.
var defaultSyntheticApps = []string{
	"com.whatsapp",
	"org.telegram.messenger",
	"com.google.android.gm",
	"com.slack",
	"com.google.android.calendar",
	"com.instagram.android",
	"com.twitter.android",
	"com.spotify.music",
	"com.amazon.mShop.android.shopping",
	"com.ubercab.eats",
}

// SyntheticGenerator produces labeled samples for cold-start training.
// Every call reseeds from the configured seed, so the same arguments always
// yield the same samples.
type SyntheticGenerator struct {
	seed         int64
	features     config.FeaturesConfig
	highPriority []string
}

// NewSyntheticGenerator creates a generator. High-priority apps and the
// sleep and work windows come from features, so synthetic records agree
// with what FeatureExtractor produces for real notifications.
//
//nolint:gocritic // config passed by value at construction
func NewSyntheticGenerator(seed int64, features config.FeaturesConfig) *SyntheticGenerator {
	return &SyntheticGenerator{
		seed:         seed,
		features:     features,
		highPriority: normalizeAppPatterns(features.HighPriorityApps),
	}
}

// GenerateForColdStart returns n synthetic samples for apps, or for a
// built-in list of common apps when apps is empty.
func (g *SyntheticGenerator) GenerateForColdStart(apps []string, n int) []model.Sample {
	if n <= 0 {
		return nil
	}
	if len(apps) == 0 {
		apps = defaultSyntheticApps
	}

	rng := rand.New(rand.NewSource(g.seed)) //nolint:gosec // math/rand is fine for synthetic data
	samples := make([]model.Sample, n)
	for i := range samples {
		record := g.randomRecord(rng, apps)
		samples[i] = model.Sample{
			Features: record.ModelFeatures(),
			Label:    syntheticLabel(rng, &record),
		}
	}
	return samples
}

func (g *SyntheticGenerator) randomRecord(rng *rand.Rand, apps []string) FeatureRecord {
	app := apps[rng.Intn(len(apps))]
	hour := rng.Intn(24)
	day := time.Weekday(rng.Intn(7))

	return FeatureRecord{
		App:                 app,
		Hour:                hour,
		HasUrgent:           rng.Float64() < 0.10,
		IsLikelyPromo:       rng.Float64() < 0.20,
		IsLikelyOTP:         rng.Float64() < 0.08,
		IsHighPriorityApp:   isHighPriorityApp(app, g.highPriority),
		HasPerson:           rng.Float64() < 0.25,
		HasQuestion:         rng.Float64() < 0.10,
		IsNotificationBurst: rng.Float64() < 0.10,
		IsRareNotification:  rng.Float64() < 0.15,
		IsSleepHours:        isSleepHour(&g.features, hour),
		IsWorkHours:         isWorkTime(&g.features, day, hour),
		AppOpenRate:         rng.Float64(),
		UserGlobalOpenRate:  0.2 + 0.6*rng.Float64(),
	}
}

// syntheticLabel mirrors the real labeling rules: the notifications people
// act on are clicked, promotions are swiped, urgent or questioning ones are
// expanded and everything else ages out as ignored.
func syntheticLabel(rng *rand.Rand, r *FeatureRecord) float64 {
	var label float64
	switch {
	case r.IsLikelyOTP || r.HasPerson || r.IsHighPriorityApp:
		label = 0.9 + 0.1*rng.Float64()
	case r.IsLikelyPromo:
		label = 0.1 * rng.Float64()
	case r.HasUrgent || r.HasQuestion:
		label = 0.6
	default:
		label = 0.15
	}
	label += (rng.Float64() - 0.5) * 0.05
	return clamp01(label)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// baselineModel trains a linear model on synthetic data only. It checks
// that the synthetic labeling rules are learnable by the linear model.
func baselineModel(gen *SyntheticGenerator) (*model.NotificationModel, error) {
	opts := model.DefaultOptions()
	opts.Seed = gen.seed

	m := model.New(model.KindLinear, opts)
	if _, err := m.Train(gen.GenerateForColdStart(nil, baselineSamples), false); err != nil {
		return nil, fmt.Errorf("train baseline model: %w", err)
	}
	return m, nil
}
