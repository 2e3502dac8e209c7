// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

// Package validation validates API request structs with go-playground/validator v10.
//
// A single validator instance is built once and shared; it caches struct
// information and is safe for concurrent use. Errors report the JSON field
// name so messages match what clients send:
//
//	type InteractionRequest struct {
//	    UserID         int64  `json:"user_id" validate:"required,gt=0"`
//	    NotificationID int64  `json:"notification_id" validate:"required,gt=0"`
//	    Type           string `json:"interaction_type" validate:"required,interaction_type"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondError(w, http.StatusBadRequest, verr.ToAPIError())
//	    return
//	}
//
// # Custom Tags
//
//   - package_name: an app identifier such as "com.whatsapp" (no whitespace)
//   - interaction_type: one of CLICK, SWIPE, EXPAND
//
// # Error Format
//
// ToAPIError produces a VALIDATION_ERROR. A single failure carries field,
// tag and value details; several failures are listed under "fields" and
// their messages joined with "; ".
package validation
