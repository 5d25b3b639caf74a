/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrReferenceNotFound is returned when no reference entry exists for an
	// assertion id outside set-reference mode.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrNoThreshold is returned in assert mode when no threshold was given
	// and the reference was never baselined.
	ErrNoThreshold = errors.New("no threshold available")

	// ErrNoCriteria is returned by CriteriaCheck for an empty criteria list.
	ErrNoCriteria = errors.New("at least one criterion is required")
)

// AssertionError reports a score below its threshold. It is returned only
// after the failure record has been written.
type AssertionError struct {
	MetricType  string
	AssertionID string
	Score       float64
	Threshold   float64
}

func (e *AssertionError) Error() string {
	if e.AssertionID != "" {
		return fmt.Sprintf("%s assertion %q failed: score %.4f is below threshold %.4f", e.MetricType, e.AssertionID, e.Score, e.Threshold)
	}
	return fmt.Sprintf("%s assertion failed: score %.2f is below threshold %.2f", e.MetricType, e.Score, e.Threshold)
}

// IsAssertion reports whether err is, or wraps, an *AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}
