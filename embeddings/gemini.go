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
	"google.golang.org/genai"
)

type geminiEmbedder struct {
	client *genai.Client
	model  string
	opts   options
}

func newGemini(ctx context.Context, model, key string, o options) (*geminiEmbedder, error) {
	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &geminiEmbedder{client: client, model: model, opts: o}, nil
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	resp, err := retry.Do(ctx, e.opts.retryConfig, "gemini_embedding", isRetryableGeminiError, func() (*genai.EmbedContentResponse, error) {
		return e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	e.opts.metrics.RecordEmbedding(ctx, e.model)
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("model %s returned no embedding", e.model)
	}
	return widen(resp.Embeddings[0].Values), nil
}

func isRetryableGeminiError(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return retry.StatusRetryable(v.Code)
		case *genai.APIError:
			return retry.StatusRetryable(v.Code)
		}
	}
	return false
}
