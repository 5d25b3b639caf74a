/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package llm is the language-model side of aim: it splits text into atomic
// claims, judges text against a criterion, verifies claims against reference
// chunks and retrieves reference material with tool calls.
//
// Each operation is a prompt run by the executor of the provider that serves
// the configured model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/telemetry"
	"chainguard.dev/aim/agents/toolcall"
	"chainguard.dev/aim/providers"
	"github.com/chainguard-dev/clog"
)

// Service is the set of model-backed operations the metrics engine needs.
type Service interface {
	// ExtractClaims splits content into atomic, independently checkable claims.
	ExtractClaims(ctx context.Context, content string) ([]string, error)

	// EvaluateCriterion reports whether content satisfies criterion.
	EvaluateCriterion(ctx context.Context, content, criterion string) (bool, error)

	// CheckClaims returns one verdict per claim, in claim order, judged only
	// against chunks.
	CheckClaims(ctx context.Context, claims, chunks []string) ([]ClaimVerdict, error)

	// RetrieveWithTools lets the model call tools to gather material relevant
	// to query. It returns "" when the model found nothing.
	RetrieveWithTools(ctx context.Context, query string, tools []Tool) (string, error)
}

// ClaimVerdict is the judgment of a single claim.
type ClaimVerdict struct {
	Claim     string `json:"claim" jsonschema:"required" jsonschema_description:"The claim, verbatim"`
	Validity  bool   `json:"validity" jsonschema:"required" jsonschema_description:"True when the reference supports the claim"`
	Reasoning string `json:"reasoning" jsonschema:"required" jsonschema_description:"Why the claim is or is not supported"`
	Evidence  string `json:"evidence" jsonschema:"required" jsonschema_description:"Quote from the reference, empty when there is none"`
}

// Tool is a function the model may call during RetrieveWithTools.
type Tool struct {
	Def  toolcall.Definition
	Call func(ctx context.Context, args map[string]any) (string, error)
}

type executor[Request promptbuilder.Bindable, Response any] interface {
	Execute(ctx context.Context, request Request, tools map[string]toolcall.Tool[Response]) (Response, error)
}

type options struct {
	baseURL     string
	retryConfig retry.Config
	temperature float64
	enricher    telemetry.AttributeEnricher
}

// Option configures New.
type Option func(*options) error

// WithBaseURL points the provider client at another endpoint.
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

// WithTemperature sets the sampling temperature. Models that only accept
// their default ignore it.
func WithTemperature(t float64) Option {
	return func(o *options) error {
		if t < 0 || t > 1 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", t)
		}
		o.temperature = t
		return nil
	}
}

// WithAttributeEnricher adds attributes to every token and tool metric.
func WithAttributeEnricher(enricher telemetry.AttributeEnricher) Option {
	return func(o *options) error {
		if enricher == nil {
			return errors.New("enricher cannot be nil")
		}
		o.enricher = enricher
		return nil
	}
}

// New returns the Service for the catalogued chat model, authenticated with
// apiKey or, when empty, the provider's environment variable.
func New(ctx context.Context, model, apiKey string, opts ...Option) (Service, error) {
	m, err := providers.LLM(model)
	if err != nil {
		return nil, err
	}
	key, err := m.Provider.APIKey(apiKey)
	if err != nil {
		return nil, err
	}
	o := options{retryConfig: retry.Default(), temperature: 0.1}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	switch m.Provider {
	case providers.Anthropic:
		return newClaude(m.Name, key, o)
	case providers.OpenAI:
		return newOpenAI(m.Name, key, o)
	case providers.Google:
		return newGoogle(ctx, m.Name, key, o)
	}
	return nil, fmt.Errorf("%w: no chat backend for provider %s", providers.ErrUnknownModel, m.Provider)
}

type service struct {
	model     string
	extract   executor[*claimsRequest, *claimList]
	criterion executor[*criterionRequest, *criterionVerdict]
	verify    executor[*verificationRequest, *verification]
	retrieve  executor[*retrievalRequest, *Record]
}

func (s *service) ExtractClaims(ctx context.Context, content string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	out, err := s.extract.Execute(ctx, &claimsRequest{Content: content}, nil)
	if err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}
	claims := make([]string, 0, len(out.Claims))
	for _, c := range out.Claims {
		if c = strings.TrimSpace(c); c != "" {
			claims = append(claims, c)
		}
	}
	clog.FromContext(ctx).With("model", s.model).With("claims", len(claims)).Info("Extracted claims")
	return claims, nil
}

func (s *service) EvaluateCriterion(ctx context.Context, content, criterion string) (bool, error) {
	if strings.TrimSpace(criterion) == "" {
		return false, errors.New("criterion is required")
	}
	out, err := s.criterion.Execute(ctx, &criterionRequest{Content: content, Criterion: criterion}, nil)
	if err != nil {
		return false, fmt.Errorf("evaluating criterion: %w", err)
	}
	clog.FromContext(ctx).With("criterion", criterion).
		With("result", out.Result).
		With("reasoning", out.Reasoning).
		Info("Evaluated criterion")
	return out.Result, nil
}

func (s *service) CheckClaims(ctx context.Context, claims, chunks []string) ([]ClaimVerdict, error) {
	if len(claims) == 0 {
		return nil, nil
	}
	out, err := s.verify.Execute(ctx, &verificationRequest{Claims: claims, Chunks: chunks}, nil)
	if err != nil {
		return nil, fmt.Errorf("checking claims: %w", err)
	}
	if len(out.Results) != len(claims) {
		return nil, fmt.Errorf("model returned %d verdicts for %d claims", len(out.Results), len(claims))
	}
	// Verdicts are positional; the claim text is restored in case the model paraphrased it.
	for i := range out.Results {
		out.Results[i].Claim = claims[i]
	}
	return out.Results, nil
}

func (s *service) RetrieveWithTools(ctx context.Context, query string, tools []Tool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is required")
	}
	set := make(map[string]toolcall.Tool[*Record], len(tools)+1)
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Def.Name == ReturnRecordTool {
			return "", fmt.Errorf("tool name %q is reserved", ReturnRecordTool)
		}
		set[t.Def.Name] = wrap(t)
		names = append(names, t.Def.Name)
	}
	set[ReturnRecordTool] = returnRecord()

	rec, err := s.retrieve.Execute(ctx, &retrievalRequest{Query: query, Tools: names}, set)
	if err != nil {
		return "", fmt.Errorf("retrieving with tools: %w", err)
	}
	return rec.Text(), nil
}

// wrap adapts a Tool to the executor's tool contract. Tool failures are
// reported back to the model rather than aborting the conversation.
func wrap(t Tool) toolcall.Tool[*Record] {
	return toolcall.Tool[*Record]{
		Def: t.Def,
		Handler: func(ctx context.Context, call toolcall.Call, _ **Record) map[string]any {
			out, err := t.Call(ctx, call.Args)
			if err != nil {
				clog.FromContext(ctx).With("tool", t.Def.Name).With("error", err).Warn("Tool call failed")
				return toolcall.Error("%s failed: %v", t.Def.Name, err)
			}
			return map[string]any{"content": out}
		},
	}
}
