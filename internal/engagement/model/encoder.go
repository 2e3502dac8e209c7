// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import (
	"fmt"
	"sort"
)

// NumericFeatureNames is the fixed order of the numeric feature vector.
var NumericFeatureNames = []string{
	"hour",
	"has_urgent",
	"is_likely_promo",
	"is_likely_otp",
	"is_high_priority_app",
	"has_person",
	"has_question",
	"is_notification_burst",
	"is_rare_notification",
	"is_sleep_hours",
	"is_work_hours",
	"app_open_rate",
	"user_global_open_rate",
}

// CategoricalFeature is the name of the one-hot encoded input.
const CategoricalFeature = "app"

// Features is the model input for one notification.
type Features struct {
	App     string
	Numeric []float64
}

// Sample is a labeled training example. Label is in [0, 1].
type Sample struct {
	Features
	Label float64
}

// encoder one-hot encodes the app over the sorted training vocabulary and
// appends the numeric features unchanged.
type encoder struct {
	Apps       []string
	NumNumeric int

	index map[string]int
}

func fitEncoder(samples []Sample) *encoder {
	seen := make(map[string]struct{})
	for i := range samples {
		seen[samples[i].App] = struct{}{}
	}
	apps := make([]string, 0, len(seen))
	for app := range seen {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return newEncoder(apps, len(NumericFeatureNames))
}

func newEncoder(apps []string, numNumeric int) *encoder {
	e := &encoder{Apps: apps, NumNumeric: numNumeric, index: make(map[string]int, len(apps))}
	for i, app := range apps {
		e.index[app] = i
	}
	return e
}

// width is the length of an encoded row.
func (e *encoder) width() int {
	return len(e.Apps) + e.NumNumeric
}

// encode writes f into a new row. An app outside the vocabulary leaves the
// one-hot block at zero.
func (e *encoder) encode(f Features) ([]float64, error) {
	if len(f.Numeric) != e.NumNumeric {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(f.Numeric), e.NumNumeric)
	}
	row := make([]float64, e.width())
	if i, ok := e.index[f.App]; ok {
		row[i] = 1
	}
	copy(row[len(e.Apps):], f.Numeric)
	return row, nil
}

// columnNames lists the encoded columns in order.
func (e *encoder) columnNames() []string {
	names := make([]string, 0, e.width())
	for _, app := range e.Apps {
		names = append(names, CategoricalFeature+"="+app)
	}
	return append(names, NumericFeatureNames[:e.NumNumeric]...)
}
