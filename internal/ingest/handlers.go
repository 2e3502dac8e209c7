// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/logging"
	"github.com/tomtom215/notifyrank/internal/metrics"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
	"github.com/tomtom215/notifyrank/internal/validation"
)

// Ingest outcomes recorded in metrics.
const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// PermanentError marks a message that can never succeed. It is not retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err carries a *PermanentError.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// Recorder applies decoded events. *notifications.Service satisfies it.
type Recorder interface {
	RecordNotification(ctx context.Context, in *notifications.NotificationInput) (models.NotificationEvent, error)
	RecordInteraction(ctx context.Context, in *notifications.InteractionInput) (models.InteractionEvent, models.UserNotificationState, error)
}

// Handlers turns transport messages into Recorder calls.
type Handlers struct {
	recorder Recorder
	logger   zerolog.Logger
}

// NewHandlers creates the message handlers.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandlers(recorder Recorder, logger zerolog.Logger) *Handlers {
	return &Handlers{
		recorder: recorder,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// HandlePosted applies a notifications.posted message.
func (h *Handlers) HandlePosted(msg *message.Message) error {
	start := time.Now()
	ctx := h.messageContext(msg)
	var in notifications.NotificationInput
	err := decode(msg, &in)
	if err == nil {
		var n models.NotificationEvent
		n, err = h.recorder.RecordNotification(ctx, &in)
		if err == nil {
			logging.Ctx(ctx).Debug().Int64("notification_id", n.ID).Msg("posted event applied")
		}
	}
	return h.finish(ctx, TopicPosted, start, err)
}

// HandleInteraction applies a notifications.interaction message. An
// interaction for a notification that is not stored yet is retried, since
// the two topics are not ordered relative to each other.
func (h *Handlers) HandleInteraction(msg *message.Message) error {
	start := time.Now()
	ctx := h.messageContext(msg)
	var in notifications.InteractionInput
	err := decode(msg, &in)
	if err == nil {
		_, _, err = h.recorder.RecordInteraction(ctx, &in)
		if err == nil {
			logging.Ctx(ctx).Debug().Int64("notification_id", in.NotificationID).Msg("interaction applied")
		}
	}
	return h.finish(ctx, TopicInteraction, start, err)
}

// messageContext derives the handler context from msg. It carries the
// publisher's correlation ID (a new one when the message has none) and a
// logger tagged with the message UUID.
func (h *Handlers) messageContext(msg *message.Message) context.Context {
	correlationID := middleware.MessageCorrelationID(msg)
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}
	ctx := logging.ContextWithCorrelationID(msg.Context(), correlationID)
	return logging.ContextWithLogger(ctx, h.logger.With().Str("message_uuid", msg.UUID).Logger())
}

func decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return &PermanentError{Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

func (h *Handlers) finish(ctx context.Context, topic string, start time.Time, err error) error {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		err = &PermanentError{Err: verr}
	}

	switch {
	case err == nil:
		metrics.RecordIngest(topic, outcomeApplied, time.Since(start))
		return nil
	case IsPermanent(err):
		metrics.RecordIngest(topic, outcomeRejected, time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("rejected message")
	default:
		metrics.RecordIngest(topic, outcomeFailed, time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("message processing failed")
	}
	return err
}
