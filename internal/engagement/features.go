// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/cache"
	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/engagement/model"
	"github.com/tomtom215/notifyrank/internal/models"
)

// FeatureRecord is the stable feature representation of one notification.
type FeatureRecord struct {
	App                 string  `json:"app"`
	Hour                int     `json:"hour"`
	HasUrgent           bool    `json:"has_urgent"`
	IsLikelyPromo       bool    `json:"is_likely_promo"`
	IsLikelyOTP         bool    `json:"is_likely_otp"`
	IsHighPriorityApp   bool    `json:"is_high_priority_app"`
	HasPerson           bool    `json:"has_person"`
	HasQuestion         bool    `json:"has_question"`
	IsNotificationBurst bool    `json:"is_notification_burst"`
	IsRareNotification  bool    `json:"is_rare_notification"`
	IsSleepHours        bool    `json:"is_sleep_hours"`
	IsWorkHours         bool    `json:"is_work_hours"`
	AppOpenRate         float64 `json:"app_open_rate"`
	UserGlobalOpenRate  float64 `json:"user_global_open_rate"`
}

// NumericValues returns the numeric features in model.NumericFeatureNames order.
func (r *FeatureRecord) NumericValues() []float64 {
	return []float64{
		float64(r.Hour),
		boolToFloat(r.HasUrgent),
		boolToFloat(r.IsLikelyPromo),
		boolToFloat(r.IsLikelyOTP),
		boolToFloat(r.IsHighPriorityApp),
		boolToFloat(r.HasPerson),
		boolToFloat(r.HasQuestion),
		boolToFloat(r.IsNotificationBurst),
		boolToFloat(r.IsRareNotification),
		boolToFloat(r.IsSleepHours),
		boolToFloat(r.IsWorkHours),
		r.AppOpenRate,
		r.UserGlobalOpenRate,
	}
}

// ModelFeatures converts the record to model input.
func (r *FeatureRecord) ModelFeatures() model.Features {
	return model.Features{App: r.App, Numeric: r.NumericValues()}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// userStats is the cached per-user frequency snapshot over the stats window.
type userStats struct {
	apps   map[string]models.AppPostStats
	posts  int64
	clicks int64
}

// FeatureExtractor builds FeatureRecords. Per-user app statistics are read
// once per user and cached until invalidated or expired; the burst count is
// always queried live.
type FeatureExtractor struct {
	cfg          config.FeaturesConfig
	loc          *time.Location
	store        FeatureStore
	stats        *cache.Cache[*userStats]
	highPriority []string
	now          func() time.Time
	logger       zerolog.Logger
}

// NewFeatureExtractor creates a FeatureExtractor. Hours and weekdays are
// evaluated in loc (UTC when nil).
//
//nolint:gocritic // config and logger passed by value at construction
func NewFeatureExtractor(cfg config.FeaturesConfig, loc *time.Location, store FeatureStore, logger zerolog.Logger) *FeatureExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &FeatureExtractor{
		cfg:          cfg,
		loc:          loc,
		store:        store,
		stats:        cache.New[*userStats]("feature_stats", cfg.CacheTTL),
		highPriority: normalizeAppPatterns(cfg.HighPriorityApps),
		now:          time.Now,
		logger:       logger.With().Str("component", "features").Logger(),
	}
}

// Extract computes the features of n for userID.
func (e *FeatureExtractor) Extract(ctx context.Context, n *models.NotificationEvent, userID int64) (FeatureRecord, error) {
	record := e.StaticFeatures(n)

	stats, err := e.userStats(ctx, userID)
	if err != nil {
		return FeatureRecord{}, err
	}

	app := stats.apps[n.App]
	record.AppOpenRate = e.rate(app.Clicks, app.Posts)
	record.UserGlobalOpenRate = e.rate(stats.clicks, stats.posts)
	record.IsRareNotification = app.Posts <= int64(e.cfg.RareMaxPosts)

	burst, err := e.store.CountAppPostsBetween(ctx, userID, n.App, n.PostTime.Add(-e.cfg.BurstWindow), n.PostTime)
	if err != nil {
		return FeatureRecord{}, fmt.Errorf("count recent posts: %w", err)
	}
	record.IsNotificationBurst = burst >= e.cfg.BurstThreshold

	return record, nil
}

// StaticFeatures computes the features that need no store access: text,
// time and app flags. Rates are set to the prior and frequency flags are false.
func (e *FeatureExtractor) StaticFeatures(n *models.NotificationEvent) FeatureRecord {
	flags := extractTextFlags(n)
	local := n.PostTime.In(e.loc)
	hour := local.Hour()

	return FeatureRecord{
		App:                n.App,
		Hour:               hour,
		HasUrgent:          flags.Urgent,
		IsLikelyPromo:      flags.Promo,
		IsLikelyOTP:        flags.OTP,
		IsHighPriorityApp:  isHighPriorityApp(n.App, e.highPriority),
		HasPerson:          flags.Person,
		HasQuestion:        flags.Question,
		IsSleepHours:       isSleepHour(&e.cfg, hour),
		IsWorkHours:        isWorkTime(&e.cfg, local.Weekday(), hour),
		AppOpenRate:        e.cfg.PriorRate,
		UserGlobalOpenRate: e.cfg.PriorRate,
	}
}

// normalizeAppPatterns lowercases and trims package substrings, dropping
// empty ones.
func normalizeAppPatterns(apps []string) []string {
	out := make([]string, 0, len(apps))
	for _, s := range apps {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isSleepHour(cfg *config.FeaturesConfig, hour int) bool {
	return hour >= cfg.SleepStartHour || hour < cfg.SleepEndHour
}

func isWorkTime(cfg *config.FeaturesConfig, day time.Weekday, hour int) bool {
	if day == time.Saturday || day == time.Sunday {
		return false
	}
	return hour >= cfg.WorkStartHour && hour < cfg.WorkEndHour
}

func (e *FeatureExtractor) rate(clicks, posts int64) float64 {
	if posts <= 0 {
		return e.cfg.PriorRate
	}
	return float64(clicks) / float64(posts)
}

func userCacheKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// userStats returns the cached snapshot for userID, filling it on a miss.
func (e *FeatureExtractor) userStats(ctx context.Context, userID int64) (*userStats, error) {
	key := userCacheKey(userID)
	if stats, ok := e.stats.Get(key); ok {
		return stats, nil
	}

	since := e.now().AddDate(0, 0, -e.cfg.StatsWindowDays)
	rows, err := e.store.UserAppStats(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load app stats: %w", err)
	}

	stats := &userStats{apps: make(map[string]models.AppPostStats, len(rows))}
	for _, row := range rows {
		stats.apps[row.App] = row
		stats.posts += row.Posts
		stats.clicks += row.Clicks
	}
	e.stats.Set(key, stats)
	return stats, nil
}

// InvalidateUserCache drops the cached statistics of userID.
func (e *FeatureExtractor) InvalidateUserCache(userID int64) {
	e.stats.Delete(userCacheKey(userID))
}

// InvalidateAllUserCaches drops every cached user snapshot.
func (e *FeatureExtractor) InvalidateAllUserCaches() {
	removed := e.stats.DeletePrefix("user:")
	e.logger.Debug().Int("entries", removed).Msg("feature caches invalidated")
}

// Close stops the cache cleanup goroutine.
func (e *FeatureExtractor) Close() {
	e.stats.Close()
}
