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
	"chainguard.dev/aim/claimcheck"
	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/store"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"
)

// ClaimCheckResult is the outcome of ClaimCheck. TotalScore is the
// percentage of claims the reference supports.
type ClaimCheckResult struct {
	TotalScore float64                  `json:"total_score"`
	Content    string                   `json:"content"`
	Claims     []claimcheck.ClaimResult `json:"claims"`
}

// ClaimCheck extracts the claims in content and verifies each against
// reference material fetched from source.
//
// The steps run in order: extract claims, validate args for source, fetch
// the reference, chunk it, and check the claims. Content without claims
// scores 100. Mode handling matches CriteriaCheck.
func (m *Metrics) ClaimCheck(ctx context.Context, st mode.State, content string, source claimcheck.DataSource, args claimcheck.Args, opts ...CallOption) (res *ClaimCheckResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aim.metric",
		attribute.String("metric_type", store.ClaimCheck),
		attribute.String("mode", st.Mode.String()),
		attribute.String("data_source", string(source)),
	)
	defer func() { span.End(err) }()

	if err := checkMode(st.Mode); err != nil {
		return nil, err
	}
	if m.llm == nil {
		return nil, errors.New("claim check needs an llm service")
	}
	c := newCall(opts)
	log := clog.FromContext(ctx).With("data_source", string(source))

	claims, err := m.llm.ExtractClaims(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}
	if err := source.Validate(args); err != nil {
		return nil, err
	}

	res = &ClaimCheckResult{Content: content, Claims: []claimcheck.ClaimResult{}, TotalScore: 100}
	if len(claims) == 0 {
		log.Warn("No claims extracted, nothing to verify")
	} else {
		checker, err := claimcheck.New(source, m.llm, m.checkerOpts...)
		if err != nil {
			return nil, err
		}
		ref, err := checker.FetchReference(ctx, claims, args)
		if err != nil {
			return nil, fmt.Errorf("fetching reference: %w", err)
		}
		chunks, err := checker.ChunkContent(ref)
		if err != nil {
			return nil, fmt.Errorf("chunking reference: %w", err)
		}
		log.With("claims", len(claims)).With("chunks", len(chunks)).Info("Checking claims")
		verdicts, err := checker.CheckClaims(ctx, claims, chunks)
		if err != nil {
			return nil, fmt.Errorf("checking claims: %w", err)
		}
		valid := 0
		for _, v := range verdicts {
			if v.Validity {
				valid++
			}
		}
		res.Claims = verdicts
		res.TotalScore = float64(valid) / float64(len(claims)) * 100
	}
	span.SetAttributes(attribute.Float64("score", res.TotalScore))

	threshold, _ := firstOf(c.threshold, m.config.ClaimThreshold, &st.Thresholds.ClaimCheck)
	out, effects, err := planScored(st.Mode, store.ClaimCheck, res.TotalScore, threshold, res)
	if err != nil {
		return nil, err
	}
	return res, m.finish(ctx, st, store.ClaimCheck, "", out, effects)
}
