/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package embeddings turns text into vectors with the provider that serves a
// catalogued embedding model, and compares vectors by cosine similarity.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/telemetry"
	"chainguard.dev/aim/providers"
)

// Embedder produces an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type options struct {
	baseURL     string
	retryConfig retry.Config
	metrics     *telemetry.GenAI
}

// Option configures New.
type Option func(*options) error

// WithBaseURL points the provider client at another endpoint. Voyage does not
// support it.
func WithBaseURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return errors.New("base URL cannot be empty")
		}
		o.baseURL = url
		return nil
	}
}

// WithRetryConfig overrides the retry policy for transient provider errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		o.retryConfig = cfg
		return nil
	}
}

// New returns an Embedder for the catalogued model, authenticated with apiKey
// or, when empty, the provider's environment variable.
func New(ctx context.Context, model, apiKey string, opts ...Option) (Embedder, error) {
	m, err := providers.Embedding(model)
	if err != nil {
		return nil, err
	}
	key, err := m.Provider.APIKey(apiKey)
	if err != nil {
		return nil, err
	}
	o := options{
		retryConfig: retry.Default(),
		metrics:     telemetry.NewGenAI(telemetry.MeterName),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	switch m.Provider {
	case providers.OpenAI:
		return newOpenAI(m.Name, key, o), nil
	case providers.VoyageAI:
		if o.baseURL != "" {
			return nil, errors.New("voyage embeddings do not support a custom base URL")
		}
		return newVoyage(m.Name, key, o)
	case providers.Google:
		return newGemini(ctx, m.Name, key, o)
	}
	return nil, fmt.Errorf("%w: no embedding backend for provider %s", providers.ErrUnknownModel, m.Provider)
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude are an error.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("cosine similarity of a zero vector")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Similarity embeds both texts and returns their cosine similarity.
func Similarity(ctx context.Context, e Embedder, a, b string) (float64, error) {
	va, err := e.Embed(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("embedding candidate: %w", err)
	}
	vb, err := e.Embed(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("embedding reference: %w", err)
	}
	return Cosine(va, vb)
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
