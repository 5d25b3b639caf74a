/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/aim/agents/executor/retry"
	"github.com/tmc/langchaingo/embeddings/voyageai"
)

type voyageEmbedder struct {
	client *voyageai.VoyageAI
	model  string
	opts   options
}

func newVoyage(model, key string, o options) (*voyageEmbedder, error) {
	client, err := voyageai.NewVoyageAI(voyageai.WithToken(key), voyageai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating voyage client: %w", err)
	}
	return &voyageEmbedder{client: client, model: model, opts: o}, nil
}

func (e *voyageEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	vec, err := retry.Do(ctx, e.opts.retryConfig, "voyage_embedding", isRetryableVoyageError, func() ([]float32, error) {
		return e.client.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	e.opts.metrics.RecordEmbedding(ctx, e.model)
	if len(vec) == 0 {
		return nil, fmt.Errorf("model %s returned no embedding", e.model)
	}
	return widen(vec), nil
}

// langchaingo flattens Voyage HTTP failures into plain errors carrying the
// status text, so classification is by message.
func isRetryableVoyageError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"429", "Too Many Requests", "500", "502", "503", "504"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
