// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package models

import (
	"errors"
	"fmt"
)

// ErrImmutabilityViolation is returned when an update attempts to change an
// immutable field of a recorded notification.
var ErrImmutabilityViolation = errors.New("immutable field cannot be changed")

// ImmutabilityViolationError names the first immutable field that differs.
type ImmutabilityViolationError struct {
	Field string
}

func (e *ImmutabilityViolationError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, ErrImmutabilityViolation)
}

// Unwrap allows errors.Is(err, ErrImmutabilityViolation).
func (e *ImmutabilityViolationError) Unwrap() error {
	return ErrImmutabilityViolation
}

// CheckImmutable compares the immutable fields of original and updated and
// returns an *ImmutabilityViolationError for the first one that changed.
// Fields are compared in the order app, notif_key, post_time, title, text,
// big_text, sub_text, channel_id. Category is mutable and ignored.
func CheckImmutable(original, updated *NotificationEvent) error {
	checks := []struct {
		field   string
		changed bool
	}{
		{"app", original.App != updated.App},
		{"notif_key", original.NotifKey != updated.NotifKey},
		{"post_time", !original.PostTime.Equal(updated.PostTime)},
		{"title", original.Title != updated.Title},
		{"text", original.Text != updated.Text},
		{"big_text", original.BigText != updated.BigText},
		{"sub_text", original.SubText != updated.SubText},
		{"channel_id", original.ChannelID != updated.ChannelID},
	}
	for _, c := range checks {
		if c.changed {
			return &ImmutabilityViolationError{Field: c.field}
		}
	}
	return nil
}
