/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders the report and failure documents for people: the
// running averages as a markdown table and the recorded failures as a tree.
package report

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"chainguard.dev/aim/store"
	"chainguard.dev/sdk/pathtree"
)

// Table renders the running averages of r, one row per metric type.
// Similarity averages are cosine similarities; the others are percentages.
func Table(r store.Report) string {
	if len(r) == 0 {
		return ""
	}
	var buf bytes.Buffer
	table := newMarkdownTable(&buf, "Metric", "Samples", "Average")
	for _, metricType := range r.MetricTypes() {
		agg := r[metricType]
		_ = table.Append([]string{metricType, fmt.Sprintf("%d", agg.Count), formatScore(metricType, agg.Avg)})
	}
	_ = table.Render()
	return fmt.Sprintf("## Report\n\n%s", buf.String())
}

func formatScore(metricType string, score float64) string {
	if metricType == store.SemanticSimilarity {
		return fmt.Sprintf("%.4f", score)
	}
	return fmt.Sprintf("%.1f%%", score)
}

// FailureTree renders every failure under its metric type. Criteria that did
// not hold and unsupported claims appear as children of their failure.
func FailureTree(f store.Failures) string {
	if len(f.Failures) == 0 {
		return ""
	}
	tree := pathtree.New()
	tree.PrintOption = pathtree.KeyValueLabel

	counts := map[string]int{}
	for _, failure := range f.Failures {
		counts[failure.MetricType]++
	}
	for _, metricType := range slices.Sorted(maps.Keys(counts)) {
		n := counts[metricType]
		word := "failures"
		if n == 1 {
			word = "failure"
		}
		_ = tree.Add(metricType, fmt.Sprintf("❌ %d %s", n, word), "")
	}

	seen := map[string]int{}
	for _, failure := range f.Failures {
		seen[failure.MetricType]++
		path := fmt.Sprintf("%s/%d", failure.MetricType, seen[failure.MetricType])
		r := failure.Result

		switch failure.MetricType {
		case store.SemanticSimilarity:
			value := fmt.Sprintf("%.4f < %.4f", number(r, "score"), number(r, "threshold"))
			_ = tree.Add(path, value, text(r, "assertion_id"))
			_ = tree.Add(path+"/candidate", snippet(text(r, "candidate")), "")
			_ = tree.Add(path+"/reference", snippet(text(r, "reference")), "")

		case store.CriteriaCheck:
			_ = tree.Add(path, fmt.Sprintf("%.1f%%", number(r, "score")), snippet(text(r, "content")))
			for i, c := range objects(r, "criteria") {
				if held, _ := c["result"].(bool); !held {
					_ = tree.Add(fmt.Sprintf("%s/%d", path, i+1), "FAIL", text(c, "criterion"))
				}
			}

		case store.ClaimCheck:
			_ = tree.Add(path, fmt.Sprintf("%.1f%%", number(r, "total_score")), snippet(text(r, "content")))
			for i, c := range objects(r, "claims") {
				if valid, _ := c["validity"].(bool); !valid {
					_ = tree.Add(fmt.Sprintf("%s/%d", path, i+1), "UNSUPPORTED", text(c, "claim"))
				}
			}

		default:
			_ = tree.Add(path, "FAIL", "")
		}
	}
	return tree.String()
}

func number(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

// text returns a single-line rendering of the string under key.
func text(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.Join(strings.Fields(s), " ")
}

func objects(m map[string]any, key string) []map[string]any {
	list, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

const maxSnippet = 80

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= maxSnippet {
		return s
	}
	return string(r[:maxSnippet-1]) + "…"
}
