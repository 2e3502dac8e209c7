// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// linearParams is a logistic model over standardized columns:
// p = sigmoid(Bias + sum_j Weights[j] * (x[j] - Means[j]) / Scales[j]).
type linearParams struct {
	Weights []float64
	Bias    float64
	Means   []float64
	Scales  []float64
}

// gradientThreshold stops L-BFGS once the gradient norm falls below it.
const gradientThreshold = 1e-8

// fitLinear minimizes the weighted cross-entropy with an L2 penalty on the
// weights (not the bias) using L-BFGS, for at most iterations major steps.
// Targets may be continuous in [0, 1].
func fitLinear(x [][]float64, y, w []float64, iterations int, l2 float64) (*linearParams, error) {
	n := len(x)
	d := len(x[0])

	means, scales := standardize(x)
	z := make([][]float64, n)
	for i := range x {
		row := make([]float64, d)
		for j := range row {
			row[j] = (x[i][j] - means[j]) / scales[j]
		}
		z[i] = row
	}

	loss := &logLoss{z: z, y: y, w: w, wsum: floats.Sum(w), l2: l2 / float64(n)}

	// theta[0] is the bias, started at the weighted base rate.
	start := make([]float64, d+1)
	start[0] = logit(floats.Dot(w, y) / loss.wsum)

	result, err := optimize.Minimize(
		optimize.Problem{Func: loss.value, Grad: loss.gradient},
		start,
		&optimize.Settings{MajorIterations: iterations, GradientThreshold: gradientThreshold},
		&optimize.LBFGS{},
	)
	if result == nil {
		return nil, fmt.Errorf("fit linear model: %w", err)
	}
	// A line search failure next to the optimum still reports the best location.
	if floats.HasNaN(result.X) || math.IsInf(floats.Norm(result.X, 2), 0) {
		return nil, ErrTrainingDiverged
	}

	return &linearParams{
		Weights: append([]float64(nil), result.X[1:]...),
		Bias:    result.X[0],
		Means:   means,
		Scales:  scales,
	}, nil
}

// logLoss is the weighted mean cross-entropy plus l/2 * ||weights||^2.
type logLoss struct {
	z    [][]float64
	y    []float64
	w    []float64
	wsum float64
	l2   float64
}

func (l *logLoss) value(theta []float64) float64 {
	weights := theta[1:]
	var sum float64
	for i, row := range l.z {
		s := theta[0] + floats.Dot(weights, row)
		// softplus(s) - y*s is the cross-entropy of sigmoid(s) against y.
		sum += l.w[i] * (math.Max(s, 0) + math.Log1p(math.Exp(-math.Abs(s))) - l.y[i]*s)
	}
	return sum/l.wsum + l.l2/2*floats.Dot(weights, weights)
}

func (l *logLoss) gradient(grad, theta []float64) {
	weights := theta[1:]
	for j := range grad {
		grad[j] = 0
	}
	for i, row := range l.z {
		residual := l.w[i] * (sigmoid(theta[0]+floats.Dot(weights, row)) - l.y[i])
		grad[0] += residual
		floats.AddScaled(grad[1:], residual, row)
	}
	floats.Scale(1/l.wsum, grad)
	floats.AddScaled(grad[1:], l.l2, weights)
}

func (p *linearParams) predict(row []float64) float64 {
	s := p.Bias
	for j, v := range row {
		s += p.Weights[j] * (v - p.Means[j]) / p.Scales[j]
	}
	return sigmoid(s)
}

// standardize returns per-column means and sample standard deviations.
// Constant columns get a scale of 1.
func standardize(x [][]float64) (means, scales []float64) {
	d := len(x[0])
	means = make([]float64, d)
	scales = make([]float64, d)
	col := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std < 1e-12 {
			std = 1
		}
		means[j], scales[j] = mean, std
	}
	return means, scales
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// logit is the inverse sigmoid with p clamped away from 0 and 1.
func logit(p float64) float64 {
	const eps = 1e-6
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}
