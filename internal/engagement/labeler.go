// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/models"
)

// Labeler derives ground-truth engagement labels from interaction state.
//
// Rules, highest precedence first:
//
//   - opened: ClickMin + (ClickMax-ClickMin) * exp(-delay/ClickRecencyDecay)
//   - read without open (expanded only): ExpandLabel
//   - dismissed without open: SwipeMax * (1 - exp(-delay/SwipeRecencyDecay))
//   - no interaction and older than AgingThreshold: IgnoredLabel
//   - otherwise the notification is still in flight and has no label
//
// delay is the time from post to the interaction, floored at zero.
type Labeler struct {
	cfg    config.LabelerConfig
	states StateReader
	now    func() time.Time
}

// NewLabeler creates a Labeler reading states from states.
//
//nolint:gocritic // config passed by value; it is copied once at construction
func NewLabeler(cfg config.LabelerConfig, states StateReader) *Labeler {
	return &Labeler{cfg: cfg, states: states, now: time.Now}
}

// LabelFromState computes the label of n given its state at time now.
// A nil state is treated as no interaction. It returns nil while the
// notification is still in flight.
func (l *Labeler) LabelFromState(n *models.NotificationEvent, state *models.UserNotificationState, now time.Time) *float64 {
	var label float64

	switch {
	case state != nil && state.OpenedAt != nil:
		delay := sinceFloor(*state.OpenedAt, n.PostTime)
		label = l.cfg.ClickMin + (l.cfg.ClickMax-l.cfg.ClickMin)*decay(delay, l.cfg.ClickRecencyDecay)
	case state != nil && state.IsRead:
		label = l.cfg.ExpandLabel
	case state != nil && state.DismissedAt != nil:
		delay := sinceFloor(*state.DismissedAt, n.PostTime)
		label = l.cfg.SwipeMax * (1 - decay(delay, l.cfg.SwipeRecencyDecay))
	case now.Sub(n.PostTime) >= l.cfg.AgingThreshold:
		label = l.cfg.IgnoredLabel
	default:
		return nil
	}

	return &label
}

// Label loads the state of n for userID and labels it.
func (l *Labeler) Label(ctx context.Context, n *models.NotificationEvent, userID int64) (*float64, error) {
	state, err := l.states.GetState(ctx, userID, n.ID)
	if errors.Is(err, database.ErrNotFound) {
		return l.LabelFromState(n, nil, l.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return l.LabelFromState(n, &state, l.now()), nil
}

// BatchLabel labels notifications for userID with a single state query.
// Notifications that are still in flight are omitted from the result.
func (l *Labeler) BatchLabel(ctx context.Context, notifications []models.NotificationEvent, userID int64) (map[int64]float64, error) {
	labels := make(map[int64]float64, len(notifications))
	if len(notifications) == 0 {
		return labels, nil
	}

	ids := make([]int64, len(notifications))
	for i := range notifications {
		ids[i] = notifications[i].ID
	}

	states, err := l.states.GetStates(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}

	now := l.now()
	for i := range notifications {
		n := &notifications[i]
		var state *models.UserNotificationState
		if s, ok := states[n.ID]; ok {
			state = &s
		}
		if label := l.LabelFromState(n, state, now); label != nil {
			labels[n.ID] = *label
		}
	}
	return labels, nil
}

// sinceFloor returns t - from, or zero when t precedes from.
func sinceFloor(t, from time.Time) time.Duration {
	if d := t.Sub(from); d > 0 {
		return d
	}
	return 0
}

// decay returns exp(-delay/scale); a non-positive scale decays instantly.
func decay(delay, scale time.Duration) float64 {
	if scale <= 0 {
		return 0
	}
	return math.Exp(-delay.Seconds() / scale.Seconds())
}
