/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics scores generated text and acts on the score according to
// the execution mode: asserting against a threshold, storing references,
// accumulating baselines, or folding scores into a report.
//
// Every call takes the mode.State explicitly. The score is computed first,
// then a plan for the state's mode decides the outcome and the documents to
// update, and the updates are applied before the call returns.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"chainguard.dev/aim/claimcheck"
	"chainguard.dev/aim/embeddings"
	"chainguard.dev/aim/llm"
	"chainguard.dev/aim/mode"
	"github.com/chainguard-dev/clog"
)

// Config holds engine-wide thresholds. A nil threshold defers to the stored
// baseline for similarity and to the state's defaults for the percentage
// metrics.
type Config struct {
	SimilarityThreshold *float64
	CriteriaThreshold   *float64
	ClaimThreshold      *float64
}

// Metrics evaluates text for one reference document. It is safe for
// concurrent use.
type Metrics struct {
	referenceID  string
	embedder     embeddings.Embedder
	llm          llm.Service
	config       Config
	observer     *Observer
	checkerOpts  []claimcheck.Option
	criteriaJobs int
}

// Option configures New.
type Option func(*Metrics) error

// WithEmbedder sets the embedder used by SimilarityScore.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(m *Metrics) error {
		if e == nil {
			return errors.New("embedder cannot be nil")
		}
		m.embedder = e
		return nil
	}
}

// WithLLM sets the service used by CriteriaCheck and ClaimCheck.
func WithLLM(s llm.Service) Option {
	return func(m *Metrics) error {
		if s == nil {
			return errors.New("llm service cannot be nil")
		}
		m.llm = s
		return nil
	}
}

// WithSimilarityThreshold sets the cosine similarity an assertion must reach,
// overriding stored baselines.
func WithSimilarityThreshold(t float64) Option {
	return func(m *Metrics) error {
		if t < -1 || t > 1 {
			return fmt.Errorf("similarity threshold must be in [-1, 1], got %v", t)
		}
		m.config.SimilarityThreshold = &t
		return nil
	}
}

// WithCriteriaThreshold sets the fraction of criteria that must hold.
func WithCriteriaThreshold(t float64) Option {
	return func(m *Metrics) error {
		if t < 0 || t > 1 {
			return fmt.Errorf("criteria threshold must be in [0, 1], got %v", t)
		}
		m.config.CriteriaThreshold = &t
		return nil
	}
}

// WithClaimThreshold sets the fraction of claims that must be supported.
func WithClaimThreshold(t float64) Option {
	return func(m *Metrics) error {
		if t < 0 || t > 1 {
			return fmt.Errorf("claim threshold must be in [0, 1], got %v", t)
		}
		m.config.ClaimThreshold = &t
		return nil
	}
}

// WithObserver replaces the Prometheus observer.
func WithObserver(o *Observer) Option {
	return func(m *Metrics) error {
		if o == nil {
			return errors.New("observer cannot be nil")
		}
		m.observer = o
		return nil
	}
}

// WithCheckerOptions passes options to every claim checker the engine builds.
func WithCheckerOptions(opts ...claimcheck.Option) Option {
	return func(m *Metrics) error {
		m.checkerOpts = append(m.checkerOpts, opts...)
		return nil
	}
}

// WithCriteriaConcurrency bounds how many criteria are judged at once.
func WithCriteriaConcurrency(n int) Option {
	return func(m *Metrics) error {
		if n <= 0 {
			return fmt.Errorf("criteria concurrency must be positive, got %d", n)
		}
		m.criteriaJobs = n
		return nil
	}
}

// New returns an engine storing references under referenceID.
func New(referenceID string, opts ...Option) (*Metrics, error) {
	if err := validReferenceID(referenceID); err != nil {
		return nil, err
	}
	m := &Metrics{referenceID: referenceID, criteriaJobs: 4}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if m.observer == nil {
		m.observer = defaultObserver()
	}
	return m, nil
}

// Models names the catalogued models an engine is built from. An empty model
// leaves the corresponding service unset, and an empty key falls back to the
// provider's environment variable.
type Models struct {
	LLM          string
	LLMKey       string
	Embedding    string
	EmbeddingKey string
}

// NewFromModels builds the LLM service and embedder for models and returns an
// engine using them. opts are applied after the services are set.
func NewFromModels(ctx context.Context, referenceID string, models Models, opts ...Option) (*Metrics, error) {
	var base []Option
	if models.LLM != "" {
		svc, err := llm.New(ctx, models.LLM, models.LLMKey)
		if err != nil {
			return nil, fmt.Errorf("creating llm service: %w", err)
		}
		base = append(base, WithLLM(svc))
	}
	if models.Embedding != "" {
		emb, err := embeddings.New(ctx, models.Embedding, models.EmbeddingKey)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		base = append(base, WithEmbedder(emb))
	}
	return New(referenceID, append(base, opts...)...)
}

// ReferenceID returns the reference document the engine reads and writes.
func (m *Metrics) ReferenceID() string { return m.referenceID }

// validReferenceID accepts slash-separated relative paths that stay inside
// the reference directory, such as "suite/case".
func validReferenceID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return errors.New("reference id is required")
	case strings.Contains(id, `\`):
		return fmt.Errorf("reference id %q must use forward slashes", id)
	case id == "." || path.Clean(id) != id || !filepath.IsLocal(filepath.FromSlash(id)):
		return fmt.Errorf("reference id %q must be a clean relative path inside the reference directory", id)
	}
	return nil
}

// CallOption configures a single metric call.
type CallOption func(*call)

type call struct {
	threshold *float64
}

// WithThreshold overrides the threshold for one assertion. Similarity takes a
// cosine similarity; criteria and claim checks take a fraction in [0, 1].
func WithThreshold(t float64) CallOption {
	return func(c *call) { c.threshold = &t }
}

func newCall(opts []CallOption) call {
	var c call
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func checkMode(m mode.Mode) error {
	if !slices.Contains(mode.Modes(), m) {
		return fmt.Errorf("%w: %q", mode.ErrUnknownMode, m)
	}
	return nil
}

func (m *Metrics) files(st mode.State) files {
	return files{
		reference: st.ReferenceFile(m.referenceID),
		report:    st.ReportFile,
		failures:  st.FailuresFile,
	}
}

// finish applies the plan's effects, records the evaluation, and turns a
// failed outcome into an *AssertionError.
func (m *Metrics) finish(ctx context.Context, st mode.State, metricType, assertionID string, out outcome, effects []effect) error {
	f := m.files(st)
	for _, e := range effects {
		if err := e.apply(f); err != nil {
			return fmt.Errorf("updating %s documents: %w", metricType, err)
		}
	}
	m.observer.Observe(metricType, st.Mode, out.score, out.failed)

	log := clog.FromContext(ctx).With("metric_type", metricType).With("mode", st.Mode.String())
	if assertionID != "" {
		log = log.With("assertion_id", assertionID)
	}
	if !out.failed {
		log.With("score", out.score).Debug("Metric evaluated")
		return nil
	}
	log.With("score", out.score).With("threshold", out.threshold).Warn("Assertion failed")
	return &AssertionError{
		MetricType:  metricType,
		AssertionID: assertionID,
		Score:       out.score,
		Threshold:   out.threshold,
	}
}
