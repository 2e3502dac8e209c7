// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Kind selects the classifier behind a NotificationModel.
type Kind string

const (
	// KindLinear is L2-regularized logistic regression.
	KindLinear Kind = "ridge"
	// KindBoosted is gradient-boosted regression trees.
	KindBoosted Kind = "gbm"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLinear, KindBoosted:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown model kind %q", s)
}

// MinTrainSamples is the minimum number of samples Train accepts.
const MinTrainSamples = 10

// positiveThreshold splits continuous labels into classes for weighting.
const positiveThreshold = 0.5

// formatVersion is bumped whenever the gob state layout changes.
const formatVersion = 1

// Options contains hyperparameters for both model kinds.
type Options struct {
	// Linear
	Iterations int
	L2         float64

	// Boosted
	Rounds            int
	MaxDepth          int
	BoostLearningRate float64
	MinSamplesLeaf    int
	Lambda            float64

	// ValidationFraction is held out when Train is called with validate=true.
	ValidationFraction float64
	// Seed drives the validation shuffle.
	Seed int64
}

// DefaultOptions returns default hyperparameters.
func DefaultOptions() Options {
	return Options{
		Iterations:         500,
		L2:                 1.0,
		Rounds:             100,
		MaxDepth:           3,
		BoostLearningRate:  0.1,
		MinSamplesLeaf:     5,
		Lambda:             1.0,
		ValidationFraction: 0.2,
		Seed:               42,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Iterations <= 0 {
		o.Iterations = d.Iterations
	}
	if o.L2 < 0 {
		o.L2 = d.L2
	}
	if o.Rounds <= 0 {
		o.Rounds = d.Rounds
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.BoostLearningRate <= 0 {
		o.BoostLearningRate = d.BoostLearningRate
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if o.Lambda <= 0 {
		o.Lambda = d.Lambda
	}
	if o.ValidationFraction <= 0 || o.ValidationFraction >= 1 {
		o.ValidationFraction = d.ValidationFraction
	}
	return o
}

// Metrics holds training and validation statistics keyed by name
// (train_rmse, val_rmse, val_mae, n_train, n_val, ...).
type Metrics map[string]float64

// NotificationModel predicts engagement in [0, 1] from notification features.
//
// Train and Load take an exclusive lock; Predict takes a shared lock, so a
// model is safe for concurrent use.
type NotificationModel struct {
	mu        sync.RWMutex
	kind      Kind
	opts      Options
	enc       *encoder
	linear    *linearParams
	boosted   *boostedParams
	trained   bool
	trainedAt time.Time
}

// New creates an untrained model of the given kind.
func New(kind Kind, opts Options) *NotificationModel {
	if kind != KindBoosted {
		kind = KindLinear
	}
	return &NotificationModel{kind: kind, opts: opts.withDefaults()}
}

// Kind returns the model kind.
func (m *NotificationModel) Kind() Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kind
}

// IsTrained reports whether Train or Load has succeeded.
func (m *NotificationModel) IsTrained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// TrainedAt returns when the model was fitted.
func (m *NotificationModel) TrainedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trainedAt
}

// Train fits the model. With validate, a seeded 80/20 split is used and the
// model is fitted on the training part only; otherwise all samples are used
// and only training metrics are reported.
func (m *NotificationModel) Train(samples []Sample, validate bool) (Metrics, error) {
	if len(samples) < MinTrainSamples {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, len(samples), MinTrainSamples)
	}
	for i := range samples {
		if len(samples[i].Numeric) != len(NumericFeatureNames) {
			return nil, fmt.Errorf("sample %d: %w", i, ErrFeatureMismatch)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	train, val := samples, []Sample(nil)
	if validate {
		train, val = splitSamples(samples, m.opts.ValidationFraction, m.opts.Seed)
	}

	enc := fitEncoder(train)
	x := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i := range train {
		row, err := enc.encode(train[i].Features)
		if err != nil {
			return nil, err
		}
		x[i] = row
		y[i] = clamp01(train[i].Label)
	}
	w := classWeights(y)

	var linear *linearParams
	var boosted *boostedParams
	switch m.kind {
	case KindBoosted:
		boosted = fitBoosted(x, y, w, boostConfig{
			rounds:       m.opts.Rounds,
			maxDepth:     m.opts.MaxDepth,
			learningRate: m.opts.BoostLearningRate,
			minLeaf:      m.opts.MinSamplesLeaf,
			lambda:       m.opts.Lambda,
		})
	default:
		var err error
		if linear, err = fitLinear(x, y, w, m.opts.Iterations, m.opts.L2); err != nil {
			return nil, err
		}
	}

	predict := func(row []float64) float64 {
		if boosted != nil {
			return boosted.predict(row)
		}
		return linear.predict(row)
	}

	metrics := Metrics{"n_train": float64(len(train)), "n_val": float64(len(val))}
	trainRMSE, _, err := evaluate(x, y, predict)
	if err != nil {
		return nil, err
	}
	metrics["train_rmse"] = trainRMSE

	if len(val) > 0 {
		vx := make([][]float64, len(val))
		vy := make([]float64, len(val))
		for i := range val {
			row, err := enc.encode(val[i].Features)
			if err != nil {
				return nil, err
			}
			vx[i] = row
			vy[i] = clamp01(val[i].Label)
		}
		valRMSE, valMAE, err := evaluate(vx, vy, predict)
		if err != nil {
			return nil, err
		}
		metrics["val_rmse"] = valRMSE
		metrics["val_mae"] = valMAE
	}

	m.enc = enc
	m.linear = linear
	m.boosted = boosted
	m.trained = true
	m.trainedAt = time.Now().UTC()
	return metrics, nil
}

// Predict returns the engagement probability for f.
func (m *NotificationModel) Predict(f Features) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.predictLocked(f)
}

// PredictBatch predicts every element of fs. It fails on the first error.
func (m *NotificationModel) PredictBatch(fs []Features) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float64, len(fs))
	for i := range fs {
		v, err := m.predictLocked(fs[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (m *NotificationModel) predictLocked(f Features) (float64, error) {
	if !m.trained {
		return 0, ErrNotTrained
	}
	row, err := m.enc.encode(f)
	if err != nil {
		return 0, err
	}
	var v float64
	if m.boosted != nil {
		v = m.boosted.predict(row)
	} else {
		v = m.linear.predict(row)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrTrainingDiverged
	}
	return clamp01(v), nil
}

// modelState is the gob-encoded form of a trained model.
type modelState struct {
	FormatVersion int
	Kind          Kind
	Options       Options
	Apps          []string
	NumNumeric    int
	Linear        *linearParams
	Boosted       *boostedParams
	TrainedAt     time.Time
}

// Save writes the trained model to w using gob.
func (m *NotificationModel) Save(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return ErrNotTrained
	}
	state := modelState{
		FormatVersion: formatVersion,
		Kind:          m.kind,
		Options:       m.opts,
		Apps:          m.enc.Apps,
		NumNumeric:    m.enc.NumNumeric,
		Linear:        m.linear,
		Boosted:       m.boosted,
		TrainedAt:     m.trainedAt,
	}
	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Load replaces the model with one previously written by Save.
func (m *NotificationModel) Load(r io.Reader) error {
	var state modelState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if state.FormatVersion != formatVersion {
		return fmt.Errorf("unsupported model format version %d", state.FormatVersion)
	}
	if (state.Linear == nil) == (state.Boosted == nil) {
		return fmt.Errorf("model state must hold exactly one parameter set")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = state.Kind
	m.opts = state.Options.withDefaults()
	m.enc = newEncoder(state.Apps, state.NumNumeric)
	m.linear = state.Linear
	m.boosted = state.Boosted
	m.trained = true
	m.trainedAt = state.TrainedAt
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *NotificationModel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *NotificationModel) UnmarshalBinary(data []byte) error {
	return m.Load(bytes.NewReader(data))
}

// classWeights returns balanced per-sample weights n/(2*n_class) where
// labels >= 0.5 form the positive class. A single class gets weight 1.
func classWeights(y []float64) []float64 {
	var pos int
	for _, v := range y {
		if v >= positiveThreshold {
			pos++
		}
	}
	neg := len(y) - pos

	w := make([]float64, len(y))
	if pos == 0 || neg == 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	n := float64(len(y))
	wPos := n / (2 * float64(pos))
	wNeg := n / (2 * float64(neg))
	for i, v := range y {
		if v >= positiveThreshold {
			w[i] = wPos
		} else {
			w[i] = wNeg
		}
	}
	return w
}

// splitSamples shuffles a copy of samples with seed and holds out fraction
// of them, at least one, for validation.
func splitSamples(samples []Sample, fraction float64, seed int64) (train, val []Sample) {
	shuffled := make([]Sample, len(samples))
	copy(shuffled, samples)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic split, not security sensitive
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nVal := int(math.Round(float64(len(shuffled)) * fraction))
	if nVal < 1 {
		nVal = 1
	}
	return shuffled[nVal:], shuffled[:nVal]
}

func evaluate(x [][]float64, y []float64, predict func([]float64) float64) (rmse, mae float64, err error) {
	for i := range x {
		p := predict(x[i])
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, 0, ErrTrainingDiverged
		}
		diff := p - y[i]
		rmse += diff * diff
		mae += math.Abs(diff)
	}
	n := float64(len(x))
	return math.Sqrt(rmse / n), mae / n, nil
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
