/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"fmt"
	"math"

	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/store"
)

// outcome is what a plan decided about one result.
type outcome struct {
	score     float64
	threshold float64
	failed    bool
}

// files are the documents effects write to.
type files struct {
	reference string
	report    string
	failures  string
}

// effect is a pending write to the store. Plans return effects and the
// engine applies them in order.
type effect interface {
	apply(f files) error
}

type saveReference struct {
	assertionID string
	reference   string
}

func (e saveReference) apply(f files) error {
	return store.Update(f.reference, func(refs *store.References) error {
		refs.Put(store.SemanticSimilarity, e.assertionID, store.NewEntry(e.reference))
		return nil
	})
}

type appendBaseline struct {
	assertionID string
	score       float64
}

func (e appendBaseline) apply(f files) error {
	return store.Update(f.reference, func(refs *store.References) error {
		entry, ok := refs.Lookup(store.SemanticSimilarity, e.assertionID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrReferenceNotFound, e.assertionID)
		}
		entry.Scores = append(entry.Scores, e.score)
		mean, std, suggested := baselineStats(entry.Scores)
		entry.Mean, entry.Std, entry.SuggestedThreshold = &mean, &std, &suggested
		refs.Put(store.SemanticSimilarity, e.assertionID, entry)
		return nil
	})
}

type updateReport struct {
	metricType string
	score      float64
}

func (e updateReport) apply(f files) error {
	return store.Update(f.report, func(r *store.Report) error {
		if *r == nil {
			*r = store.Report{}
		}
		(*r)[e.metricType] = (*r)[e.metricType].Fold(e.score)
		return nil
	})
}

type recordFailure struct {
	metricType string
	result     any
}

func (e recordFailure) apply(f files) error {
	failure, err := store.NewFailure(e.metricType, e.result)
	if err != nil {
		return err
	}
	return store.Update(f.failures, func(doc *store.Failures) error {
		doc.Failures = append(doc.Failures, failure)
		return nil
	})
}

// baselineStats returns the population mean and standard deviation of
// scores and the threshold two deviations below the mean.
func baselineStats(scores []float64) (mean, std, suggested float64) {
	if len(scores) == 0 {
		return 0, 0, 0
	}
	n := float64(len(scores))
	for _, s := range scores {
		mean += s
	}
	mean /= n
	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	std = math.Sqrt(variance / n)
	return mean, std, mean - 2*std
}

// firstOf returns the first non-nil threshold.
func firstOf(thresholds ...*float64) (float64, bool) {
	for _, t := range thresholds {
		if t != nil {
			return *t, true
		}
	}
	return 0, false
}

// similaritySample is a scored candidate and the entry it was compared with.
type similaritySample struct {
	assertionID string
	candidate   string
	reference   string
	score       float64
	suggested   *float64
}

// SimilarityFailure is the failure record of a semantic similarity assertion.
type SimilarityFailure struct {
	AssertionID string  `json:"assertion_id"`
	Score       float64 `json:"score"`
	Threshold   float64 `json:"threshold"`
	Candidate   string  `json:"candidate"`
	Reference   string  `json:"reference"`
}

func planSimilarity(m mode.Mode, s similaritySample, explicit, instance *float64) (outcome, []effect, error) {
	switch m {
	case mode.SetReference:
		return outcome{}, []effect{saveReference{assertionID: s.assertionID, reference: s.candidate}}, nil

	case mode.SetBaseline:
		return outcome{score: s.score}, []effect{appendBaseline{assertionID: s.assertionID, score: s.score}}, nil

	case mode.Report:
		return outcome{score: s.score}, []effect{updateReport{metricType: store.SemanticSimilarity, score: s.score}}, nil

	case mode.Assert:
		threshold, ok := firstOf(explicit, instance, s.suggested)
		if !ok {
			return outcome{}, nil, fmt.Errorf("%w for %q: pass a threshold or run set-baseline", ErrNoThreshold, s.assertionID)
		}
		out := outcome{score: s.score, threshold: threshold}
		if s.score >= threshold {
			return out, nil, nil
		}
		out.failed = true
		return out, []effect{recordFailure{
			metricType: store.SemanticSimilarity,
			result: SimilarityFailure{
				AssertionID: s.assertionID,
				Score:       s.score,
				Threshold:   threshold,
				Candidate:   s.candidate,
				Reference:   s.reference,
			},
		}}, nil
	}
	return outcome{}, nil, fmt.Errorf("%w: %q", mode.ErrUnknownMode, m)
}

// planScored handles the percentage metrics. threshold is a fraction and
// score a percentage; result becomes the failure record.
func planScored(m mode.Mode, metricType string, score, threshold float64, result any) (outcome, []effect, error) {
	switch m {
	case mode.SetReference, mode.SetBaseline:
		return outcome{score: score}, nil, nil

	case mode.Report:
		return outcome{score: score}, []effect{updateReport{metricType: metricType, score: score}}, nil

	case mode.Assert:
		out := outcome{score: score, threshold: threshold * 100}
		if score >= out.threshold {
			return out, nil, nil
		}
		out.failed = true
		return out, []effect{recordFailure{metricType: metricType, result: result}}, nil
	}
	return outcome{}, nil, fmt.Errorf("%w: %q", mode.ErrUnknownMode, m)
}
