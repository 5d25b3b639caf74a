/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"fmt"

	"chainguard.dev/aim/agents/executor/googleexecutor"
	"chainguard.dev/aim/agents/promptbuilder"
	"google.golang.org/genai"
)

func newGoogle(ctx context.Context, model, key string, o options) (Service, error) {
	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}

	s := &service{model: model}
	if s.extract, err = googleExecutor[*claimsRequest, *claimList](client, model, claimsPrompt, o, claimListSchema); err != nil {
		return nil, fmt.Errorf("failed to create claim extractor: %w", err)
	}
	if s.criterion, err = googleExecutor[*criterionRequest, *criterionVerdict](client, model, criterionPrompt, o, criterionVerdictSchema); err != nil {
		return nil, fmt.Errorf("failed to create criterion judge: %w", err)
	}
	if s.verify, err = googleExecutor[*verificationRequest, *verification](client, model, verificationPrompt, o, verificationSchema); err != nil {
		return nil, fmt.Errorf("failed to create claim verifier: %w", err)
	}
	if s.retrieve, err = googleExecutor[*retrievalRequest, *Record](client, model, retrievalPrompt, o, nil); err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return s, nil
}

func googleExecutor[Request promptbuilder.Bindable, Response any](
	client *genai.Client,
	model string,
	prompt *promptbuilder.Prompt,
	o options,
	responseSchema map[string]any,
) (executor[Request, Response], error) {
	opts := []googleexecutor.Option[Request, Response]{
		googleexecutor.WithModel[Request, Response](model),
		googleexecutor.WithTemperature[Request, Response](float32(o.temperature)),
		googleexecutor.WithRetryConfig[Request, Response](o.retryConfig),
	}
	if responseSchema != nil {
		opts = append(opts, googleexecutor.WithResponseSchema[Request, Response](responseSchema))
	}
	if o.enricher != nil {
		opts = append(opts, googleexecutor.WithAttributeEnricher[Request, Response](o.enricher))
	}
	return googleexecutor.New[Request, Response](client, prompt, opts...)
}
