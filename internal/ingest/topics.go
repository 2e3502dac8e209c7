// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package ingest

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
)

// Topics and stream layout.
const (
	TopicPosted      = "notifications.posted"
	TopicInteraction = "notifications.interaction"
	TopicPoison      = "notifications.poison"

	StreamName    = "NOTIFICATIONS"
	StreamSubject = "notifications.>"
)

// NewMessage encodes payload as a JSON watermill message. The message UUID
// doubles as the JetStream deduplication ID.
func NewMessage(payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set("content_type", "application/json")
	return msg, nil
}

// Publish encodes payload and publishes it to topic.
func Publish(ctx context.Context, pub message.Publisher, topic string, payload any) error {
	msg, err := NewMessage(payload)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
