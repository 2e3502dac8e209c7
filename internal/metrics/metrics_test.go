// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("increment_aggregate"))

	RecordDBQuery("increment_aggregate", time.Millisecond, nil)
	RecordDBQuery("increment_aggregate", time.Millisecond, errors.New("conflict"))

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("increment_aggregate"))
	if after-before != 1 {
		t.Errorf("DBQueryErrors delta = %v, want 1", after-before)
	}
}

func TestRecordScore(t *testing.T) {
	before := testutil.ToFloat64(ScoreRequests.WithLabelValues("fallback"))

	RecordScore("fallback", 2*time.Millisecond)
	RecordScore("fallback", 3*time.Millisecond)

	if got := testutil.ToFloat64(ScoreRequests.WithLabelValues("fallback")) - before; got != 2 {
		t.Errorf("ScoreRequests delta = %v, want 2", got)
	}

	m := &dto.Metric{}
	if err := ScoreDuration.Write(m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("ScoreDuration sample count = %d, want >= 2", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordTraining(t *testing.T) {
	before := testutil.ToFloat64(TrainingRuns.WithLabelValues("global", "failed"))

	RecordTraining("global", "failed", time.Second)

	if got := testutil.ToFloat64(TrainingRuns.WithLabelValues("global", "failed")) - before; got != 1 {
		t.Errorf("TrainingRuns delta = %v, want 1", got)
	}
}

func TestSetGlobalModel(t *testing.T) {
	SetGlobalModel(6, 150, 0.21)

	if got := testutil.ToFloat64(GlobalModelUsers); got != 6 {
		t.Errorf("GlobalModelUsers = %v, want 6", got)
	}
	if got := testutil.ToFloat64(GlobalModelSamples); got != 150 {
		t.Errorf("GlobalModelSamples = %v, want 150", got)
	}
	if got := testutil.ToFloat64(GlobalModelValRMSE); got != 0.21 {
		t.Errorf("GlobalModelValRMSE = %v, want 0.21", got)
	}
}

func TestRecordAggregateIncrement(t *testing.T) {
	posts := testutil.ToFloat64(AggregateIncrements.WithLabelValues("posts"))
	clicks := testutil.ToFloat64(AggregateIncrements.WithLabelValues("clicks"))
	swipes := testutil.ToFloat64(AggregateIncrements.WithLabelValues("swipes"))

	RecordAggregateIncrement(1, 0, 0)
	RecordAggregateIncrement(0, 1, 0)

	if got := testutil.ToFloat64(AggregateIncrements.WithLabelValues("posts")) - posts; got != 1 {
		t.Errorf("posts delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AggregateIncrements.WithLabelValues("clicks")) - clicks; got != 1 {
		t.Errorf("clicks delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AggregateIncrements.WithLabelValues("swipes")) - swipes; got != 0 {
		t.Errorf("swipes delta = %v, want 0", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("user_stats"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("user_stats"))

	RecordCacheLookup("user_stats", true)
	RecordCacheLookup("user_stats", false)
	RecordCacheLookup("user_stats", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("user_stats")) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("user_stats")) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("APIActiveRequests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("APIActiveRequests = %v, want %v", got, before)
	}
}

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestMessages.WithLabelValues("notifications.posted", "processed"))
	RecordIngest("notifications.posted", "processed", time.Millisecond)
	if got := testutil.ToFloat64(IngestMessages.WithLabelValues("notifications.posted", "processed")) - before; got != 1 {
		t.Errorf("IngestMessages delta = %v, want 1", got)
	}
}
