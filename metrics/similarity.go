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
	"chainguard.dev/aim/embeddings"
	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/store"
	"go.opentelemetry.io/otel/attribute"
)

// SimilarityScore compares candidate with the reference stored for
// assertionID by the cosine similarity of their embeddings.
//
// In set-reference mode candidate becomes the reference and the score is 0.
// In every other mode the reference must already exist.
func (m *Metrics) SimilarityScore(ctx context.Context, st mode.State, candidate, assertionID string, opts ...CallOption) (score float64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aim.metric",
		attribute.String("metric_type", store.SemanticSimilarity),
		attribute.String("mode", st.Mode.String()),
		attribute.String("assertion_id", assertionID),
	)
	defer func() { span.End(err) }()

	if err := checkMode(st.Mode); err != nil {
		return 0, err
	}
	if assertionID == "" {
		return 0, errors.New("assertion id is required")
	}
	c := newCall(opts)

	sample := similaritySample{assertionID: assertionID, candidate: candidate}
	if st.Mode != mode.SetReference {
		refs, err := store.Load[store.References](st.ReferenceFile(m.referenceID))
		if err != nil {
			return 0, fmt.Errorf("loading references: %w", err)
		}
		entry, ok := refs.Lookup(store.SemanticSimilarity, assertionID)
		if !ok {
			return 0, fmt.Errorf("%w: %s in %s, run set-reference first", ErrReferenceNotFound, assertionID, m.referenceID)
		}
		if m.embedder == nil {
			return 0, errors.New("similarity score needs an embedder")
		}
		sample.reference = entry.Reference
		sample.suggested = entry.SuggestedThreshold
		sample.score, err = embeddings.Similarity(ctx, m.embedder, candidate, entry.Reference)
		if err != nil {
			return 0, err
		}
		span.SetAttributes(attribute.Float64("score", sample.score))
	}

	out, effects, err := planSimilarity(st.Mode, sample, c.threshold, m.config.SimilarityThreshold)
	if err != nil {
		return 0, err
	}
	return out.score, m.finish(ctx, st, store.SemanticSimilarity, assertionID, out, effects)
}
