// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package notifications applies incoming notification and interaction events:
// it persists them and keeps the daily engagement aggregates current.
//
// Both the HTTP API and the message ingestion path go through Service, so
// the same validation and bookkeeping apply regardless of transport.
// Feature caches are not invalidated per event; they expire on their TTL or
// when the shared model is retrained.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/database"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/validation"
)

// ErrNotFound is returned when an interaction or update targets a
// notification that does not exist for the user.
var ErrNotFound = database.ErrNotFound

// Store is the persistence used by Service. *database.DB satisfies it.
type Store interface {
	InsertNotification(ctx context.Context, n models.NotificationEvent) (models.NotificationEvent, error)
	GetNotification(ctx context.Context, id int64) (models.NotificationEvent, error)
	UpdateNotification(ctx context.Context, updated models.NotificationEvent) (models.NotificationEvent, error)
	RecordInteraction(ctx context.Context, in models.InteractionEvent) (database.InteractionResult, error)
}

// Bookkeeper maintains the daily aggregates. *engagement.Bookkeeper satisfies it.
type Bookkeeper interface {
	RecordPost(ctx context.Context, userID, appID int64, ts time.Time) (models.DailyAggregate, error)
	RecordInteraction(ctx context.Context, userID, appID int64, typ models.InteractionType, ts time.Time) (models.DailyAggregate, error)
}

// NotificationInput is a posted notification as received from a device.
type NotificationInput struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	App       string    `json:"app" validate:"required,package_name,max=255"`
	NotifKey  string    `json:"notif_key" validate:"max=512"`
	PostTime  time.Time `json:"post_time"`
	Title     string    `json:"title" validate:"max=1024"`
	Text      string    `json:"text" validate:"max=8192"`
	BigText   string    `json:"big_text,omitempty" validate:"max=16384"`
	SubText   string    `json:"sub_text,omitempty" validate:"max=1024"`
	ChannelID string    `json:"channel_id,omitempty" validate:"max=255"`
	Category  string    `json:"category,omitempty" validate:"max=64"`
}

func (in *NotificationInput) event() models.NotificationEvent {
	return models.NotificationEvent{
		UserID:    in.UserID,
		App:       in.App,
		NotifKey:  in.NotifKey,
		PostTime:  in.PostTime,
		Title:     in.Title,
		Text:      in.Text,
		BigText:   in.BigText,
		SubText:   in.SubText,
		ChannelID: in.ChannelID,
		Category:  in.Category,
	}
}

// InteractionInput is a user interaction as received from a device.
type InteractionInput struct {
	UserID         int64     `json:"user_id" validate:"required,gt=0"`
	NotificationID int64     `json:"notification_id" validate:"required,gt=0"`
	Type           string    `json:"interaction_type" validate:"required,interaction_type"`
	Timestamp      time.Time `json:"timestamp"`
}

// Service records notification events and interactions.
type Service struct {
	store      Store
	bookkeeper Bookkeeper
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a Service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(store Store, bookkeeper Bookkeeper, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		bookkeeper: bookkeeper,
		now:        time.Now,
		logger:     logger.With().Str("component", "notifications").Logger(),
	}
}

// RecordNotification validates and stores a posted notification, creates the
// user's state for it and counts the post. A missing post time defaults to now.
//
// The event is committed before the aggregate is incremented. An aggregate
// failure is logged and does not fail the call, because redelivering the
// event would store it twice.
func (s *Service) RecordNotification(ctx context.Context, in *NotificationInput) (models.NotificationEvent, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.NotificationEvent{}, verr
	}

	n := in.event()
	if n.PostTime.IsZero() {
		n.PostTime = s.now()
	}

	stored, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		return models.NotificationEvent{}, err
	}

	if _, err := s.bookkeeper.RecordPost(ctx, stored.UserID, stored.AppID, stored.PostTime); err != nil {
		s.logger.Error().Err(err).
			Int64("notification_id", stored.ID).
			Int64("user_id", stored.UserID).
			Msg("failed to count posted notification")
	}

	s.logger.Debug().
		Int64("notification_id", stored.ID).
		Int64("user_id", stored.UserID).
		Str("app", stored.App).
		Msg("notification recorded")
	return stored, nil
}

// UpdateNotification applies updated to the stored notification. Changing an
// immutable field fails with an error matching models.ErrImmutabilityViolation
// and nothing is written.
func (s *Service) UpdateNotification(ctx context.Context, updated models.NotificationEvent) (models.NotificationEvent, error) {
	n, err := s.store.UpdateNotification(ctx, updated)
	if err != nil {
		var verr *models.ImmutabilityViolationError
		if errors.As(err, &verr) {
			s.logger.Warn().
				Int64("notification_id", updated.ID).
				Str("field", verr.Field).
				Msg("rejected update of immutable field")
		}
		return models.NotificationEvent{}, err
	}
	return n, nil
}

// GetNotification returns the stored notification with id.
func (s *Service) GetNotification(ctx context.Context, id int64) (models.NotificationEvent, error) {
	return s.store.GetNotification(ctx, id)
}

// RecordInteraction validates and appends an interaction, applies it to the
// user's state (opened and dismissed times are first-wins) and counts it.
// A missing timestamp defaults to now.
func (s *Service) RecordInteraction(ctx context.Context, in *InteractionInput) (models.InteractionEvent, models.UserNotificationState, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.InteractionEvent{}, models.UserNotificationState{}, verr
	}

	event := models.InteractionEvent{
		UserID:         in.UserID,
		NotificationID: in.NotificationID,
		Type:           models.InteractionType(in.Type),
		Timestamp:      in.Timestamp,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	res, err := s.store.RecordInteraction(ctx, event)
	if err != nil {
		return models.InteractionEvent{}, models.UserNotificationState{}, err
	}

	interaction := res.Interaction
	if _, err := s.bookkeeper.RecordInteraction(ctx, interaction.UserID, res.AppID, interaction.Type, interaction.Timestamp); err != nil {
		s.logger.Error().Err(err).
			Int64("notification_id", interaction.NotificationID).
			Str("type", string(interaction.Type)).
			Msg("failed to count interaction")
	}

	s.logger.Debug().
		Int64("notification_id", interaction.NotificationID).
		Int64("user_id", interaction.UserID).
		Str("type", string(interaction.Type)).
		Msg("interaction recorded")
	return interaction, res.State, nil
}
