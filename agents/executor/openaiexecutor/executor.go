/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiexecutor runs a prompt against an OpenAI chat model and
// decodes the JSON answer into a typed response. It mirrors claudeexecutor:
// same request binding, tool loop and retry behaviour.
package openaiexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/result"
	"chainguard.dev/aim/agents/telemetry"
	"chainguard.dev/aim/agents/toolcall"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "gpt-4o"

// Interface executes a bound prompt against an OpenAI chat model.
type Interface[Request promptbuilder.Bindable, Response any] interface {
	// Execute runs the conversation for request, offering tools to the model.
	Execute(ctx context.Context, request Request, tools map[string]toolcall.Tool[Response]) (Response, error)
}

type executor[Request promptbuilder.Bindable, Response any] struct {
	client             openai.Client
	model              string
	prompt             *promptbuilder.Prompt
	systemInstructions *promptbuilder.Prompt
	maxTokens          int64
	temperature        float64
	maxTurns           int
	schemaName         string
	responseSchema     map[string]any
	genaiMetrics       *telemetry.GenAI
	retryConfig        retry.Config
}

// New creates an executor for prompt.
func New[Request promptbuilder.Bindable, Response any](
	client openai.Client,
	prompt *promptbuilder.Prompt,
	opts ...Option[Request, Response],
) (Interface[Request, Response], error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}
	e := &executor[Request, Response]{
		client:       client,
		model:        DefaultModel,
		prompt:       prompt,
		maxTokens:    8192,
		temperature:  0.1,
		maxTurns:     20,
		genaiMetrics: telemetry.NewGenAI(telemetry.MeterName),
		retryConfig:  retry.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Execute implements Interface.
func (e *executor[Request, Response]) Execute(
	ctx context.Context,
	request Request,
	tools map[string]toolcall.Tool[Response],
) (response Response, err error) {
	log := clog.FromContext(ctx).With("model", e.model)

	bound, err := request.Bind(e.prompt)
	if err != nil {
		return response, fmt.Errorf("failed to bind request to prompt: %w", err)
	}
	prompt, err := bound.Build()
	if err != nil {
		return response, fmt.Errorf("failed to build prompt: %w", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "aim.llm",
		attribute.String("provider", "openai"),
		attribute.String("model", e.model))
	defer func() { span.End(err) }()

	log.With("prompt_length", len(prompt)).Info("Starting OpenAI execution")

	var messages []openai.ChatCompletionMessageParamUnion
	if e.systemInstructions != nil {
		system, err := e.systemInstructions.Build()
		if err != nil {
			return response, fmt.Errorf("building system prompt: %w", err)
		}
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(e.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(e.maxTokens),
	}
	if supportsTemperature(e.model) {
		params.Temperature = openai.Float(e.temperature)
	}
	for _, tool := range tools {
		params.Tools = append(params.Tools, ToolParam(tool.Def))
	}
	if e.responseSchema != nil && len(tools) == 0 {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   e.schemaName,
					Schema: e.responseSchema,
				},
			},
		}
	}

	var final Response
	for turn := 0; turn < e.maxTurns; turn++ {
		completion, err := retry.Do(ctx, e.retryConfig, "openai_chat", isRetryableOpenAIError, func() (*openai.ChatCompletion, error) {
			return e.client.Chat.Completions.New(ctx, params)
		})
		if err != nil {
			return response, fmt.Errorf("failed to call OpenAI: %w", err)
		}

		if completion.Usage.PromptTokens > 0 || completion.Usage.CompletionTokens > 0 {
			e.genaiMetrics.RecordTokens(ctx, e.model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
			span.RecordTokenUsage(e.model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
		}
		if len(completion.Choices) == 0 {
			return response, errors.New("no choices in OpenAI response")
		}
		msg := completion.Choices[0].Message

		if len(msg.ToolCalls) > 0 {
			params.Messages = append(params.Messages, msg.ToParam())
			for _, tc := range msg.ToolCalls {
				e.genaiMetrics.RecordToolCall(ctx, e.model, tc.Function.Name)
				payload := e.runTool(ctx, tools, tc, &final)
				if !reflect.ValueOf(&final).Elem().IsZero() {
					log.With("tool", tc.Function.Name).Info("Tool set final result")
					return final, nil
				}
				raw, err := json.Marshal(payload)
				if err != nil {
					return response, fmt.Errorf("failed to marshal tool result: %w", err)
				}
				params.Messages = append(params.Messages, openai.ChatCompletionMessageParamUnion{
					OfTool: &openai.ChatCompletionToolMessageParam{
						Content:    openai.ChatCompletionToolMessageParamContentUnion{OfString: openai.String(string(raw))},
						ToolCallID: tc.ID,
					},
				})
			}
			continue
		}

		if msg.Content == "" {
			if msg.Refusal != "" {
				return response, fmt.Errorf("model refused: %s", msg.Refusal)
			}
			return response, errors.New("no content in OpenAI response")
		}
		resp, err := result.Extract[Response](msg.Content)
		if err != nil {
			log.With("response", msg.Content).With("error", err).Warn("Failed to parse OpenAI response")
			return response, fmt.Errorf("failed to parse response: %w", err)
		}
		log.Info("Completed OpenAI execution")
		return resp, nil
	}
	return response, fmt.Errorf("no final answer after %d turns", e.maxTurns)
}

func (e *executor[Request, Response]) runTool(ctx context.Context, tools map[string]toolcall.Tool[Response], tc openai.ChatCompletionMessageToolCall, final *Response) map[string]any {
	tool, ok := tools[tc.Function.Name]
	if !ok {
		clog.FromContext(ctx).With("tool", tc.Function.Name).Warn("Model requested unknown tool")
		return toolcall.Error("unknown tool: %q", tc.Function.Name)
	}
	call, err := Call(tc)
	if err != nil {
		return toolcall.Error("%v", err)
	}
	return tool.Handler(ctx, call, final)
}

// ToolParam converts a provider-independent definition into an OpenAI function tool.
func ToolParam(def toolcall.Definition) openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  shared.FunctionParameters(def.JSONSchema()),
		},
	}
}

// Call converts an OpenAI tool call into a provider-independent call.
func Call(tc openai.ChatCompletionMessageToolCall) (toolcall.Call, error) {
	call := toolcall.Call{ID: tc.ID, Name: tc.Function.Name, Args: map[string]any{}}
	if strings.TrimSpace(tc.Function.Arguments) == "" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Args); err != nil {
		return call, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	return call, nil
}

// supportsTemperature reports whether model accepts a temperature setting.
// The o-series and gpt-5 reasoning models only allow the default.
func supportsTemperature(model string) bool {
	return !strings.HasPrefix(model, "o") && !strings.HasPrefix(model, "gpt-5")
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.StatusRetryable(apiErr.StatusCode)
	}
	return false
}
