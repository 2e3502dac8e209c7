// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notifyrank/internal/logging"
	"github.com/tomtom215/notifyrank/internal/models"
	"github.com/tomtom215/notifyrank/internal/notifications"
	"github.com/tomtom215/notifyrank/internal/validation"
)

// fakeRecorder records applied inputs. Posted events whose title is in
// failTitles fail with a transient error.
type fakeRecorder struct {
	mu           sync.Mutex
	posted       []notifications.NotificationInput
	interactions []notifications.InteractionInput
	attempts     map[string]int
	failTitles   map[string]bool
	correlation  []string
	applied      chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		attempts:   make(map[string]int),
		failTitles: make(map[string]bool),
		applied:    make(chan struct{}, 16),
	}
}

func (f *fakeRecorder) RecordNotification(ctx context.Context, in *notifications.NotificationInput) (models.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[in.Title]++
	f.correlation = append(f.correlation, logging.CorrelationIDFromContext(ctx))
	if f.failTitles[in.Title] {
		return models.NotificationEvent{}, errors.New("database busy")
	}
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.NotificationEvent{}, verr
	}
	f.posted = append(f.posted, *in)
	f.applied <- struct{}{}
	return models.NotificationEvent{ID: int64(len(f.posted)), UserID: in.UserID, App: in.App}, nil
}

func (f *fakeRecorder) RecordInteraction(_ context.Context, in *notifications.InteractionInput) (models.InteractionEvent, models.UserNotificationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.InteractionEvent{}, models.UserNotificationState{}, verr
	}
	f.interactions = append(f.interactions, *in)
	f.applied <- struct{}{}
	return models.InteractionEvent{ID: 1}, models.UserNotificationState{}, nil
}

func (f *fakeRecorder) attemptsFor(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[title]
}

func TestHandlerContextCarriesCorrelationID(t *testing.T) {
	t.Parallel()

	rec := newFakeRecorder()
	h := NewHandlers(rec, zerolog.Nop())
	in := notifications.NotificationInput{UserID: 1, App: "com.whatsapp", Title: "Alice"}

	tagged, err := NewMessage(in)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	middleware.SetCorrelationID("device-42", tagged)
	untagged, err := NewMessage(in)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	for _, msg := range []*message.Message{tagged, untagged} {
		if err := h.HandlePosted(msg); err != nil {
			t.Fatalf("HandlePosted: %v", err)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.correlation) != 2 {
		t.Fatalf("recorded %d calls", len(rec.correlation))
	}
	if rec.correlation[0] != "device-42" {
		t.Errorf("tagged correlation ID = %q", rec.correlation[0])
	}
	if len(rec.correlation[1]) != 8 {
		t.Errorf("generated correlation ID = %q, want 8 characters", rec.correlation[1])
	}
}

func TestHandlePosted(t *testing.T) {
	t.Parallel()

	rec := newFakeRecorder()
	h := NewHandlers(rec, zerolog.Nop())

	msg, err := NewMessage(notifications.NotificationInput{UserID: 1, App: "com.whatsapp", Title: "Alice"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := h.HandlePosted(msg); err != nil {
		t.Fatalf("HandlePosted: %v", err)
	}
	if len(rec.posted) != 1 || rec.posted[0].App != "com.whatsapp" {
		t.Errorf("posted = %+v", rec.posted)
	}
}

func TestHandlerErrorClassification(t *testing.T) {
	t.Parallel()

	rec := newFakeRecorder()
	rec.failTitles["busy"] = true
	h := NewHandlers(rec, zerolog.Nop())

	valid := func(payload any) *message.Message {
		msg, err := NewMessage(payload)
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		return msg
	}

	tests := []struct {
		name      string
		handle    func(*message.Message) error
		msg       *message.Message
		permanent bool
	}{
		{
			name:      "malformed json",
			handle:    h.HandlePosted,
			msg:       message.NewMessage("m1", []byte("{not json")),
			permanent: true,
		},
		{
			name:      "invalid post",
			handle:    h.HandlePosted,
			msg:       valid(notifications.NotificationInput{UserID: 0, App: "com.a"}),
			permanent: true,
		},
		{
			name:      "invalid interaction type",
			handle:    h.HandleInteraction,
			msg:       valid(notifications.InteractionInput{UserID: 1, NotificationID: 2, Type: "TAP"}),
			permanent: true,
		},
		{
			name:   "transient store failure",
			handle: h.HandlePosted,
			msg:    valid(notifications.NotificationInput{UserID: 1, App: "com.a", Title: "busy"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handle(tt.msg)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsPermanent(err) != tt.permanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, IsPermanent(err), tt.permanent)
			}
		})
	}
}

func TestNewMessageSetsDedupID(t *testing.T) {
	t.Parallel()

	msg, err := NewMessage(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.UUID == "" || msg.Metadata.Get("Nats-Msg-Id") != msg.UUID {
		t.Errorf("uuid=%q metadata=%v", msg.UUID, msg.Metadata)
	}
	if string(msg.Payload) != `{"a":1}` {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestListenAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		host    string
		port    int
		wantErr bool
	}{
		{url: "nats://127.0.0.1:4222", host: "127.0.0.1", port: 4222},
		{url: "nats://0.0.0.0:-1", host: "0.0.0.0", port: -1},
		{url: "nats://localhost", wantErr: true},
		{url: "nats://host:abc", wantErr: true},
	}
	for _, tt := range tests {
		host, port, err := listenAddr(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("listenAddr(%q) err = %v", tt.url, err)
			continue
		}
		if !tt.wantErr && (host != tt.host || port != tt.port) {
			t.Errorf("listenAddr(%q) = %s, %d", tt.url, host, port)
		}
	}
}
