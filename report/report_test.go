/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report_test

import (
	"strings"
	"testing"

	"chainguard.dev/aim/report"
	"chainguard.dev/aim/store"
)

func TestTable(t *testing.T) {
	if got := report.Table(nil); got != "" {
		t.Errorf("Table(nil) = %q, want empty", got)
	}

	got := report.Table(store.Report{
		store.SemanticSimilarity: {Count: 4, Avg: 0.85},
		store.CriteriaCheck:      {Count: 3, Avg: 200.0 / 3},
	})
	for _, want := range []string{"## Report", "Metric", "Samples", "criteria_check", "66.7%", "semantic_similarity", "0.8500", "| 4"} {
		if !strings.Contains(got, want) {
			t.Errorf("Table() missing %q:\n%s", want, got)
		}
	}
	// Rows are sorted by metric type.
	if strings.Index(got, "criteria_check") > strings.Index(got, "semantic_similarity") {
		t.Errorf("Table() rows not sorted:\n%s", got)
	}
}

func TestFailureTree(t *testing.T) {
	if got := report.FailureTree(store.Failures{}); got != "" {
		t.Errorf("FailureTree(empty) = %q, want empty", got)
	}

	failures := store.Failures{Failures: []store.Failure{{
		MetricType: store.SemanticSimilarity,
		Result: map[string]any{
			"assertion_id": "capital",
			"score":        0.42,
			"threshold":    0.85,
			"candidate":    "Berlin is in\nGermany.",
			"reference":    "Paris is the capital of France.",
		},
	}, {
		MetricType: store.CriteriaCheck,
		Result: map[string]any{
			"score":   50.0,
			"content": "Paris is the capital.",
			"criteria": []any{
				map[string]any{"criterion": "mentions Paris", "result": true},
				map[string]any{"criterion": "mentions the Seine", "result": false},
			},
		},
	}, {
		MetricType: store.ClaimCheck,
		Result: map[string]any{
			"total_score": 0.0,
			"content":     strings.Repeat("long content ", 20),
			"claims": []any{
				map[string]any{"claim": "Berlin is in Spain", "validity": false},
			},
		},
	}}}

	got := report.FailureTree(failures)
	for _, want := range []string{
		"semantic_similarity", "0.4200 < 0.8500", "capital", "Berlin is in Germany.",
		"criteria_check", "50.0%", "mentions the Seine",
		"claim_check", "UNSUPPORTED", "Berlin is in Spain", "…",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FailureTree() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "mentions Paris") {
		t.Errorf("FailureTree() lists a criterion that held:\n%s", got)
	}
}
