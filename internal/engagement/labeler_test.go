// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/notifyrank/internal/config"
	"github.com/tomtom215/notifyrank/internal/models"
)

func TestLabelFromState(t *testing.T) {
	t.Parallel()

	l := NewLabeler(config.DefaultConfig().Engagement.Labeler, newFakeStore())
	posted := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := posted.Add(d)
		return &ts
	}
	n := &models.NotificationEvent{ID: 1, PostTime: posted}

	tests := []struct {
		name  string
		state *models.UserNotificationState
		now   time.Time
		want  *float64
	}{
		{"instant click", &models.UserNotificationState{OpenedAt: at(0), IsRead: true}, posted, ptr(1.0)},
		{"click after one decay", &models.UserNotificationState{OpenedAt: at(30 * time.Minute)}, posted, ptr(0.9 + 0.1*math.Exp(-1))},
		{"click before post is floored", &models.UserNotificationState{OpenedAt: at(-time.Minute)}, posted, ptr(1.0)},
		{"click beats swipe", &models.UserNotificationState{OpenedAt: at(0), DismissedAt: at(time.Second)}, posted, ptr(1.0)},
		{"expand only", &models.UserNotificationState{IsRead: true}, posted, ptr(0.6)},
		{"expand beats swipe", &models.UserNotificationState{IsRead: true, DismissedAt: at(time.Hour)}, posted, ptr(0.6)},
		{"instant swipe", &models.UserNotificationState{DismissedAt: at(0)}, posted, ptr(0.0)},
		{"slow swipe", &models.UserNotificationState{DismissedAt: at(10 * time.Minute)}, posted, ptr(0.1 * (1 - math.Exp(-1)))},
		{"ignored after aging", &models.UserNotificationState{}, posted.Add(24 * time.Hour), ptr(0.15)},
		{"missing state aged", nil, posted.Add(25 * time.Hour), ptr(0.15)},
		{"in flight", &models.UserNotificationState{}, posted.Add(time.Hour), nil},
		{"missing state in flight", nil, posted.Add(time.Hour), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := l.LabelFromState(n, tt.state, tt.now)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("label = %v, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("label = nil, want %v", *tt.want)
			case tt.want != nil && math.Abs(*got-*tt.want) > 1e-12:
				t.Errorf("label = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestSlowSwipeApproachesSwipeMax(t *testing.T) {
	t.Parallel()

	l := NewLabeler(config.DefaultConfig().Engagement.Labeler, newFakeStore())
	posted := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	dismissed := posted.Add(3 * time.Hour)
	got := l.LabelFromState(&models.NotificationEvent{PostTime: posted}, &models.UserNotificationState{DismissedAt: &dismissed}, posted)
	if got == nil || *got > 0.1 || *got < 0.0999 {
		t.Errorf("label = %v, want just under 0.1", got)
	}
}

func TestBatchLabelMatchesLabel(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	seedUser(f, 1, 9)
	// One fresh notification without a state is still in flight.
	fresh := f.addNotification(models.NotificationEvent{UserID: 1, App: "com.chat", PostTime: time.Now().UTC()})

	l := NewLabeler(config.DefaultConfig().Engagement.Labeler, f)
	ctx := context.Background()

	notifications, err := f.RecentNotifications(ctx, 1, 100)
	if err != nil {
		t.Fatalf("RecentNotifications: %v", err)
	}
	batch, err := l.BatchLabel(ctx, notifications, 1)
	if err != nil {
		t.Fatalf("BatchLabel: %v", err)
	}
	if len(batch) != 9 {
		t.Errorf("batch has %d labels, want 9", len(batch))
	}
	if _, ok := batch[fresh.ID]; ok {
		t.Error("in-flight notification should be omitted")
	}

	for i := range notifications {
		n := &notifications[i]
		single, err := l.Label(ctx, n, 1)
		if err != nil {
			t.Fatalf("Label: %v", err)
		}
		got, ok := batch[n.ID]
		if (single == nil) == ok {
			t.Errorf("notification %d: batch present=%v, single=%v", n.ID, ok, single)
			continue
		}
		if single != nil && *single != got {
			t.Errorf("notification %d: batch %v != single %v", n.ID, got, *single)
		}
	}
}

func TestBatchLabelEmpty(t *testing.T) {
	t.Parallel()

	l := NewLabeler(config.DefaultConfig().Engagement.Labeler, newFakeStore())
	labels, err := l.BatchLabel(context.Background(), nil, 1)
	if err != nil || len(labels) != 0 {
		t.Errorf("BatchLabel(nil) = %v, %v", labels, err)
	}
}

func ptr(v float64) *float64 { return &v }
