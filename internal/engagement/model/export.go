// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package model

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ExportFormatVersion identifies the layout of the portable export.
const ExportFormatVersion = 1

// CategoricalInput describes a one-hot encoded input.
type CategoricalInput struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// LinearExport holds the parameters of a linear model. Inputs are
// standardized with Means and Scales before the dot product.
type LinearExport struct {
	Columns []string  `json:"columns"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// TreeNodeExport is one node of an exported tree.
type TreeNodeExport struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// BoostedExport holds the parameters of a tree ensemble. The prediction is
// sigmoid(base_score + learning_rate * sum(tree outputs)).
type BoostedExport struct {
	Columns      []string           `json:"columns"`
	BaseScore    float64            `json:"base_score"`
	LearningRate float64            `json:"learning_rate"`
	Trees        [][]TreeNodeExport `json:"trees"`
}

// Export is the portable description of a trained model.
type Export struct {
	FormatVersion     int                `json:"format_version"`
	ModelType         Kind               `json:"model_type"`
	TrainedAt         time.Time          `json:"trained_at"`
	CategoricalInputs []CategoricalInput `json:"categorical_inputs"`
	NumericInputs     []string           `json:"numeric_inputs"`
	Output            string             `json:"output"`
	Linear            *LinearExport      `json:"linear,omitempty"`
	Boosted           *BoostedExport     `json:"boosted,omitempty"`
}

// Export returns a portable JSON document describing the trained model, for
// evaluation outside this service.
func (m *NotificationModel) Export() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, ErrNotTrained
	}

	columns := m.enc.columnNames()
	doc := Export{
		FormatVersion: ExportFormatVersion,
		ModelType:     m.kind,
		TrainedAt:     m.trainedAt,
		CategoricalInputs: []CategoricalInput{
			{Name: CategoricalFeature, Categories: append([]string{}, m.enc.Apps...)},
		},
		NumericInputs: append([]string{}, NumericFeatureNames[:m.enc.NumNumeric]...),
		Output:        "engagement_probability",
	}

	if m.linear != nil {
		doc.Linear = &LinearExport{
			Columns: columns,
			Weights: m.linear.Weights,
			Bias:    m.linear.Bias,
			Means:   m.linear.Means,
			Scales:  m.linear.Scales,
		}
	}
	if m.boosted != nil {
		trees := make([][]TreeNodeExport, len(m.boosted.Trees))
		for i, tree := range m.boosted.Trees {
			nodes := make([]TreeNodeExport, len(tree))
			for j, n := range tree {
				nodes[j] = TreeNodeExport(n)
			}
			trees[i] = nodes
		}
		doc.Boosted = &BoostedExport{
			Columns:      columns,
			BaseScore:    m.boosted.BaseScore,
			LearningRate: m.boosted.LearningRate,
			Trees:        trees,
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}
