/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"fmt"

	"chainguard.dev/aim/agents/executor/claudeexecutor"
	"chainguard.dev/aim/agents/promptbuilder"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

func newClaude(model, key string, o options) (Service, error) {
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	var (
		s   = &service{model: model}
		err error
	)
	if s.extract, err = claudeExecutor[*claimsRequest, *claimList](client, model, claimsPrompt, o); err != nil {
		return nil, fmt.Errorf("failed to create claim extractor: %w", err)
	}
	if s.criterion, err = claudeExecutor[*criterionRequest, *criterionVerdict](client, model, criterionPrompt, o); err != nil {
		return nil, fmt.Errorf("failed to create criterion judge: %w", err)
	}
	if s.verify, err = claudeExecutor[*verificationRequest, *verification](client, model, verificationPrompt, o); err != nil {
		return nil, fmt.Errorf("failed to create claim verifier: %w", err)
	}
	if s.retrieve, err = claudeExecutor[*retrievalRequest, *Record](client, model, retrievalPrompt, o); err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return s, nil
}

func claudeExecutor[Request promptbuilder.Bindable, Response any](
	client anthropic.Client,
	model string,
	prompt *promptbuilder.Prompt,
	o options,
) (executor[Request, Response], error) {
	opts := []claudeexecutor.Option[Request, Response]{
		claudeexecutor.WithModel[Request, Response](model),
		claudeexecutor.WithTemperature[Request, Response](o.temperature),
		claudeexecutor.WithRetryConfig[Request, Response](o.retryConfig),
	}
	if o.enricher != nil {
		opts = append(opts, claudeexecutor.WithAttributeEnricher[Request, Response](o.enricher))
	}
	return claudeexecutor.New[Request, Response](client, prompt, opts...)
}
