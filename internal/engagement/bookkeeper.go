// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
)

// Bookkeeper maintains the per (user, app, day) engagement counters.
// Each call is a single atomic increment in the store, so concurrent
// bookkeeping for the same key never loses an update.
type Bookkeeper struct {
	store  AggregateStore
	loc    *time.Location
	logger zerolog.Logger
}

// NewBookkeeper creates a Bookkeeper. Days are bucketed in loc (UTC when nil).
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBookkeeper(store AggregateStore, loc *time.Location, logger zerolog.Logger) *Bookkeeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Bookkeeper{
		store:  store,
		loc:    loc,
		logger: logger.With().Str("component", "bookkeeper").Logger(),
	}
}

// RecordPost counts one posted notification on the day of ts.
func (b *Bookkeeper) RecordPost(ctx context.Context, userID, appID int64, ts time.Time) (models.DailyAggregate, error) {
	return b.apply(ctx, models.AggregateDelta{
		UserID: userID,
		AppID:  appID,
		Day:    models.DayOf(ts, b.loc),
		Posts:  1,
	})
}

// RecordInteraction counts a CLICK or SWIPE on the day of ts. EXPAND changes
// no counter and returns the current aggregate (zero when none exists).
func (b *Bookkeeper) RecordInteraction(ctx context.Context, userID, appID int64, typ models.InteractionType, ts time.Time) (models.DailyAggregate, error) {
	delta := models.AggregateDelta{
		UserID: userID,
		AppID:  appID,
		Day:    models.DayOf(ts, b.loc),
	}

	switch typ {
	case models.InteractionClick:
		delta.Clicks = 1
	case models.InteractionSwipe:
		delta.Swipes = 1
	case models.InteractionExpand:
		agg, err := b.store.GetAggregate(ctx, userID, appID, delta.Day)
		if errors.Is(err, database.ErrNotFound) {
			return models.DailyAggregate{UserID: userID, AppID: appID, Day: delta.Day}, nil
		}
		if err != nil {
			return models.DailyAggregate{}, fmt.Errorf("get aggregate: %w", err)
		}
		return agg, nil
	default:
		return models.DailyAggregate{}, fmt.Errorf("unknown interaction type %q", typ)
	}

	return b.apply(ctx, delta)
}

func (b *Bookkeeper) apply(ctx context.Context, delta models.AggregateDelta) (models.DailyAggregate, error) {
	agg, err := b.store.IncrementAggregate(ctx, delta)
	if err != nil {
		return models.DailyAggregate{}, fmt.Errorf("increment aggregate: %w", err)
	}
	metrics.RecordAggregateIncrement(delta.Posts, delta.Clicks, delta.Swipes)

	b.logger.Debug().
		Int64("user_id", delta.UserID).
		Int64("app_id", delta.AppID).
		Int64("posts", agg.Posts).
		Int64("clicks", agg.Clicks).
		Float64("open_rate", agg.OpenRate).
		Msg("aggregate updated")
	return agg, nil
}
