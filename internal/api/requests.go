// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package api

import (
	"time"

	"github.com/tomtom215/notifyrank/internal/engagement"
	"github.com/tomtom215/notifyrank/internal/models"
)

// Request bodies for the scoring and training endpoints. Notification and
// interaction bodies use notifications.NotificationInput and
// notifications.InteractionInput directly.

// ScoreRequest is the body of POST /api/v1/score.
type ScoreRequest struct {
	NotificationID int64 `json:"notification_id" validate:"required,gt=0"`
	UserID         int64 `json:"user_id" validate:"required,gt=0"`
}

// ScoreBatchRequest is the body of POST /api/v1/score/batch.
type ScoreBatchRequest struct {
	UserID          int64   `json:"user_id" validate:"required,gt=0"`
	NotificationIDs []int64 `json:"notification_ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// TrainUserRequest is the body of POST /api/v1/users/{userID}/train. Apps
// seed synthetic samples for users without enough history.
type TrainUserRequest struct {
	Apps []string `json:"apps" validate:"required,min=1,max=200,dive,package_name,max=255"`
}

// UpdateNotificationRequest is the body of PATCH /api/v1/notifications/{id}.
// Absent fields keep their stored values.
type UpdateNotificationRequest struct {
	App       *string    `json:"app,omitempty"`
	NotifKey  *string    `json:"notif_key,omitempty"`
	PostTime  *time.Time `json:"post_time,omitempty"`
	Title     *string    `json:"title,omitempty"`
	Text      *string    `json:"text,omitempty"`
	BigText   *string    `json:"big_text,omitempty"`
	SubText   *string    `json:"sub_text,omitempty"`
	ChannelID *string    `json:"channel_id,omitempty"`
	Category  *string    `json:"category,omitempty" validate:"omitempty,max=64"`
}

// apply overlays the fields present in the request onto n.
func (r *UpdateNotificationRequest) apply(n *models.NotificationEvent) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&n.App, r.App)
	setString(&n.NotifKey, r.NotifKey)
	if r.PostTime != nil {
		n.PostTime = *r.PostTime
	}
	setString(&n.Title, r.Title)
	setString(&n.Text, r.Text)
	setString(&n.BigText, r.BigText)
	setString(&n.SubText, r.SubText)
	setString(&n.ChannelID, r.ChannelID)
	setString(&n.Category, r.Category)
}

// ScoreBatchResponse is the data of a batch score response. Missing lists
// IDs that do not exist or belong to another user.
type ScoreBatchResponse struct {
	UserID  int64                    `json:"user_id"`
	Scores  []engagement.ScoreResult `json:"scores"`
	Missing []int64                  `json:"missing,omitempty"`
}

// RetrainDecision is the data of GET /api/v1/users/{userID}/retrain.
type RetrainDecision struct {
	UserID        int64  `json:"user_id"`
	ShouldRetrain bool   `json:"should_retrain"`
	Reason        string `json:"reason"`
}
