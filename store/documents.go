/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Metric type keys shared by every document.
const (
	SemanticSimilarity = "semantic_similarity"
	CriteriaCheck      = "criteria_check"
	ClaimCheck         = "claim_check"
)

// Entry is one stored reference and its baseline statistics.
type Entry struct {
	Reference          string    `json:"reference"`
	Scores             []float64 `json:"scores"`
	Mean               *float64  `json:"mean"`
	Std                *float64  `json:"std"`
	SuggestedThreshold *float64  `json:"suggested_threshold"`
}

// NewEntry returns an entry for reference with empty statistics.
func NewEntry(reference string) Entry {
	return Entry{Reference: reference, Scores: []float64{}}
}

// References maps metric type to assertion id to entry.
type References map[string]map[string]Entry

// Lookup returns the entry for assertionID under metricType.
func (r References) Lookup(metricType, assertionID string) (Entry, bool) {
	e, ok := r[metricType][assertionID]
	return e, ok
}

// Put stores e, creating the metric type section when needed.
func (r *References) Put(metricType, assertionID string, e Entry) {
	if *r == nil {
		*r = References{}
	}
	if (*r)[metricType] == nil {
		(*r)[metricType] = map[string]Entry{}
	}
	if e.Scores == nil {
		e.Scores = []float64{}
	}
	(*r)[metricType][assertionID] = e
}

// Aggregate is the running average of one metric type.
type Aggregate struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
}

// Fold returns the aggregate with score included.
func (a Aggregate) Fold(score float64) Aggregate {
	return Aggregate{
		Count: a.Count + 1,
		Avg:   (a.Avg*float64(a.Count) + score) / float64(a.Count+1),
	}
}

// Report maps metric type to its running average.
type Report map[string]Aggregate

// MetricTypes returns the report keys in sorted order.
func (r Report) MetricTypes() []string {
	return slices.Sorted(maps.Keys(r))
}

// Failure is one recorded assertion failure.
type Failure struct {
	MetricType string         `json:"metric_type"`
	Result     map[string]any `json:"result"`
}

// Failures is the append-only failure document.
type Failures struct {
	Failures []Failure `json:"failures"`
}

// NewFailure converts result into its JSON object form.
func NewFailure(metricType string, result any) (Failure, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Failure{}, fmt.Errorf("encoding %s failure: %w", metricType, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Failure{}, fmt.Errorf("%s failure is not an object: %w", metricType, err)
	}
	return Failure{MetricType: metricType, Result: m}, nil
}
