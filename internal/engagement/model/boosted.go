// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import (
	"math"
	"sort"
)

// treeNode is one node of a regression tree stored in a flat slice.
// Leaf nodes carry Value; internal nodes route x[Feature] <= Threshold left.
type treeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// boostedParams is an additive ensemble of regression trees on the logit scale.
type boostedParams struct {
	BaseScore    float64
	LearningRate float64
	Trees        [][]treeNode
}

// boostConfig holds the gradient boosting hyperparameters.
type boostConfig struct {
	rounds       int
	maxDepth     int
	learningRate float64
	minLeaf      int
	lambda       float64
}

// fitBoosted fits gradient-boosted trees on the weighted logistic loss with
// Newton leaf values -G/(H+lambda). Targets may be continuous in [0, 1].
func fitBoosted(x [][]float64, y, w []float64, cfg boostConfig) *boostedParams {
	n := len(x)

	var wsum, ymean float64
	for i := range y {
		wsum += w[i]
		ymean += w[i] * y[i]
	}
	ymean /= wsum

	p := &boostedParams{
		BaseScore:    logit(ymean),
		LearningRate: cfg.learningRate,
	}

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = p.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < cfg.rounds; round++ {
		for i := range x {
			prob := sigmoid(margin[i])
			grad[i] = w[i] * (prob - y[i])
			hess[i] = w[i] * math.Max(prob*(1-prob), 1e-6)
		}

		b := &treeBuilder{x: x, grad: grad, hess: hess, cfg: cfg}
		b.build(all, 0)
		tree := b.nodes

		for i := range x {
			margin[i] += cfg.learningRate * evalTree(tree, x[i])
		}
		p.Trees = append(p.Trees, tree)
	}
	return p
}

func (p *boostedParams) predict(row []float64) float64 {
	s := p.BaseScore
	for _, tree := range p.Trees {
		s += p.LearningRate * evalTree(tree, row)
	}
	return sigmoid(s)
}

func evalTree(tree []treeNode, row []float64) float64 {
	i := 0
	for !tree[i].Leaf {
		if row[tree[i].Feature] <= tree[i].Threshold {
			i = tree[i].Left
		} else {
			i = tree[i].Right
		}
	}
	return tree[i].Value
}

type treeBuilder struct {
	x     [][]float64
	grad  []float64
	hess  []float64
	cfg   boostConfig
	nodes []treeNode
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	var g, h float64
	for _, i := range idx {
		g += b.grad[i]
		h += b.hess[i]
	}

	node := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Leaf: true, Value: -g / (h + b.cfg.lambda)})

	if depth >= b.cfg.maxDepth || len(idx) < 2*b.cfg.minLeaf {
		return node
	}

	feature, threshold, ok := b.bestSplit(idx, g, h)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[node] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return node
}

// bestSplit scans every column for the threshold with the largest positive
// gain that leaves at least minLeaf samples on each side.
func (b *treeBuilder) bestSplit(idx []int, g, h float64) (feature int, threshold float64, ok bool) {
	lambda := b.cfg.lambda
	parent := g * g / (h + lambda)
	bestGain := 1e-12

	sorted := make([]int, len(idx))
	for j := range b.x[0] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][j] < b.x[sorted[c]][j]
		})

		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			gl += b.grad[i]
			hl += b.hess[i]

			cur, next := b.x[i][j], b.x[sorted[k+1]][j]
			if cur == next {
				continue
			}
			nLeft := k + 1
			if nLeft < b.cfg.minLeaf || len(sorted)-nLeft < b.cfg.minLeaf {
				continue
			}

			gr, hr := g-gl, h-hl
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > bestGain {
				bestGain = gain
				feature = j
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}
