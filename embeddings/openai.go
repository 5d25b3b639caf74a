/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package embeddings

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/aim/agents/executor/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIEmbedder struct {
	client openai.Client
	model  string
	opts   options
}

func newOpenAI(model, key string, o options) *openAIEmbedder {
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	return &openAIEmbedder{client: openai.NewClient(clientOpts...), model: model, opts: o}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	resp, err := retry.Do(ctx, e.opts.retryConfig, "openai_embedding", isRetryableOpenAIError, func() (*openai.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Model: e.model,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	e.opts.metrics.RecordEmbedding(ctx, e.model)
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned no embedding", e.model)
	}
	return resp.Data[0].Embedding, nil
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.StatusRetryable(apiErr.StatusCode)
	}
	return false
}
