// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package models

import (
	"time"
)

// App is an application that posts notifications on a user's device.
// Unique on (UserID, PackageName).
type App struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	PackageName string    `json:"package_name"`
	DisplayName string    `json:"display_name,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationEvent is a notification posted by an app.
//
// App, NotifKey, PostTime, Title, Text, BigText, SubText and ChannelID are
// immutable once the event is recorded. Category is the only field that may
// be updated afterwards.
type NotificationEvent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AppID     int64     `json:"app_id"`
	App       string    `json:"app"`
	NotifKey  string    `json:"notif_key"`
	PostTime  time.Time `json:"post_time"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	BigText   string    `json:"big_text,omitempty"`
	SubText   string    `json:"sub_text,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InteractionType is the kind of user interaction with a notification.
type InteractionType string

const (
	// InteractionClick opens the notification.
	InteractionClick InteractionType = "CLICK"
	// InteractionSwipe dismisses the notification.
	InteractionSwipe InteractionType = "SWIPE"
	// InteractionExpand expands the notification in the shade.
	InteractionExpand InteractionType = "EXPAND"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionClick, InteractionSwipe, InteractionExpand:
		return true
	}
	return false
}

// InteractionEvent is an append-only record of a user interaction.
type InteractionEvent struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	NotificationID int64           `json:"notification_id"`
	Type           InteractionType `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
}

// UserNotificationState is the per-user state of one notification.
// OpenedAt and DismissedAt are first-wins: once set they never change.
type UserNotificationState struct {
	UserID         int64      `json:"user_id"`
	NotificationID int64      `json:"notification_id"`
	IsRead         bool       `json:"is_read"`
	OpenedAt       *time.Time `json:"opened_at,omitempty"`
	DismissedAt    *time.Time `json:"dismissed_at,omitempty"`
	LastUpdated    time.Time  `json:"last_updated"`
	MLScore        *float64   `json:"ml_score,omitempty"`
}

// IsLabeled reports whether the state carries a terminal interaction
// (opened or dismissed).
func (s *UserNotificationState) IsLabeled() bool {
	return s != nil && (s.OpenedAt != nil || s.DismissedAt != nil)
}

// HasInteraction reports whether any interaction has been recorded.
func (s *UserNotificationState) HasInteraction() bool {
	return s != nil && (s.IsRead || s.OpenedAt != nil || s.DismissedAt != nil)
}

// DailyAggregate holds per (user, app, day) engagement counters.
type DailyAggregate struct {
	UserID      int64     `json:"user_id"`
	AppID       int64     `json:"app_id"`
	Day         time.Time `json:"day"`
	Posts       int64     `json:"posts"`
	Clicks      int64     `json:"clicks"`
	Swipes      int64     `json:"swipes"`
	OpenRate    float64   `json:"open_rate"`
	LastUpdated time.Time `json:"last_updated"`
}

// OpenRate returns clicks/posts, or 0 when there are no posts.
func OpenRate(clicks, posts int64) float64 {
	if posts <= 0 {
		return 0
	}
	return float64(clicks) / float64(posts)
}

// AggregateDelta is a set of non-negative counter increments for one
// (user, app, day) aggregate.
type AggregateDelta struct {
	UserID int64
	AppID  int64
	Day    time.Time
	Posts  int
	Clicks int
	Swipes int
}

// IsZero reports whether the delta changes no counter.
func (d AggregateDelta) IsZero() bool {
	return d.Posts == 0 && d.Clicks == 0 && d.Swipes == 0
}

// TrainingRun records one model training attempt.
type TrainingRun struct {
	ID           int64     `json:"id"`
	Scope        string    `json:"scope"` // "global" or "user"
	UserID       *int64    `json:"user_id,omitempty"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	ModelType    string    `json:"model_type,omitempty"`
	NumUsers     int       `json:"num_users"`
	TotalSamples int       `json:"total_samples"`
	LabeledCount int       `json:"labeled_count"`
	ValRMSE      float64   `json:"val_rmse"`
	ValMAE       float64   `json:"val_mae"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Training run scopes and statuses.
const (
	TrainingScopeGlobal = "global"
	TrainingScopeUser   = "user"

	TrainingStatusTrained = "trained"
	TrainingStatusSkipped = "skipped"
	TrainingStatusFailed  = "failed"
)

// AppPostStats is the post/click total of one app over a stats window.
type AppPostStats struct {
	App    string
	Posts  int64
	Clicks int64
}

// DayOf truncates t to its calendar day in loc, returned as midnight UTC of
// that date so it compares and stores consistently.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
