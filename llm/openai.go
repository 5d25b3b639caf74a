/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"fmt"

	"chainguard.dev/aim/agents/executor/openaiexecutor"
	"chainguard.dev/aim/agents/promptbuilder"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func newOpenAI(model, key string, o options) (Service, error) {
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	var (
		s   = &service{model: model}
		err error
	)
	if s.extract, err = openAIExecutor[*claimsRequest, *claimList](client, model, claimsPrompt, o, "claims", claimListSchema); err != nil {
		return nil, fmt.Errorf("failed to create claim extractor: %w", err)
	}
	if s.criterion, err = openAIExecutor[*criterionRequest, *criterionVerdict](client, model, criterionPrompt, o, "criterion_verdict", criterionVerdictSchema); err != nil {
		return nil, fmt.Errorf("failed to create criterion judge: %w", err)
	}
	if s.verify, err = openAIExecutor[*verificationRequest, *verification](client, model, verificationPrompt, o, "claim_verification", verificationSchema); err != nil {
		return nil, fmt.Errorf("failed to create claim verifier: %w", err)
	}
	if s.retrieve, err = openAIExecutor[*retrievalRequest, *Record](client, model, retrievalPrompt, o, "", nil); err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return s, nil
}

func openAIExecutor[Request promptbuilder.Bindable, Response any](
	client openai.Client,
	model string,
	prompt *promptbuilder.Prompt,
	o options,
	schemaName string,
	responseSchema map[string]any,
) (executor[Request, Response], error) {
	opts := []openaiexecutor.Option[Request, Response]{
		openaiexecutor.WithModel[Request, Response](model),
		openaiexecutor.WithTemperature[Request, Response](o.temperature),
		openaiexecutor.WithRetryConfig[Request, Response](o.retryConfig),
	}
	if responseSchema != nil {
		opts = append(opts, openaiexecutor.WithResponseSchema[Request, Response](schemaName, responseSchema))
	}
	if o.enricher != nil {
		opts = append(opts, openaiexecutor.WithAttributeEnricher[Request, Response](o.enricher))
	}
	return openaiexecutor.New[Request, Response](client, prompt, opts...)
}
