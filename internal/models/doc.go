// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

/*
Package models defines the data structures shared by the store, the
engagement pipeline and the HTTP layer.

Key Components:

  - App: an installed application that posts notifications for a user
  - NotificationEvent: a posted notification; every field except Category
    is immutable once recorded (see CheckImmutable)
  - InteractionEvent: an append-only CLICK, SWIPE or EXPAND
  - UserNotificationState: per (user, notification) read/open/dismiss state
    with first-wins timestamps and the cached ML score
  - DailyAggregate: per (user, app, day) post/click/swipe counters
  - APIResponse: standard response envelope for all JSON endpoints

Thread Safety:

Model values carry no internal synchronization. They are passed by value or
treated as read-only once shared between goroutines.
*/
package models
