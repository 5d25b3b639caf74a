/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/aim/agents/telemetry"
	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// CriterionResult is the verdict for one criterion.
type CriterionResult struct {
	Criterion string `json:"criterion"`
	Result    bool   `json:"result"`
}

// CriteriaResult is the outcome of CriteriaCheck. Score is the percentage of
// criteria that hold.
type CriteriaResult struct {
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Criteria []CriterionResult `json:"criteria"`
}

// CriteriaCheck asks the model whether content meets each criterion.
//
// In assert mode the score must reach the threshold (call option, then
// engine, then the state's default) times 100; otherwise the result is
// recorded as a failure and an *AssertionError is returned with it.
func (m *Metrics) CriteriaCheck(ctx context.Context, st mode.State, content string, criteria []string, opts ...CallOption) (res *CriteriaResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aim.metric",
		attribute.String("metric_type", store.CriteriaCheck),
		attribute.String("mode", st.Mode.String()),
		attribute.Int("criteria", len(criteria)),
	)
	defer func() { span.End(err) }()

	if err := checkMode(st.Mode); err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return nil, ErrNoCriteria
	}
	if m.llm == nil {
		return nil, errors.New("criteria check needs an llm service")
	}
	c := newCall(opts)

	verdicts := make([]CriterionResult, len(criteria))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.criteriaJobs)
	for i, criterion := range criteria {
		g.Go(func() error {
			ok, err := m.llm.EvaluateCriterion(gctx, content, criterion)
			if err != nil {
				return fmt.Errorf("evaluating criterion %d: %w", i, err)
			}
			verdicts[i] = CriterionResult{Criterion: criterion, Result: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	met := 0
	for _, v := range verdicts {
		if v.Result {
			met++
		}
	}
	res = &CriteriaResult{
		Score:    float64(met) / float64(len(criteria)) * 100,
		Content:  content,
		Criteria: verdicts,
	}
	span.SetAttributes(attribute.Float64("score", res.Score))

	threshold, _ := firstOf(c.threshold, m.config.CriteriaThreshold, &st.Thresholds.Criteria)
	out, effects, err := planScored(st.Mode, store.CriteriaCheck, res.Score, threshold, res)
	if err != nil {
		return nil, err
	}
	return res, m.finish(ctx, st, store.CriteriaCheck, "", out, effects)
}
