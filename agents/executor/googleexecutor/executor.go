/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"context"
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
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "gemini-2.5-flash"

// Interface executes a bound prompt against Gemini.
type Interface[Request promptbuilder.Bindable, Response any] interface {
	// Execute runs the conversation for request, offering tools to the model.
	Execute(ctx context.Context, request Request, tools map[string]toolcall.Tool[Response]) (Response, error)
}

type executor[Request promptbuilder.Bindable, Response any] struct {
	client             *genai.Client
	prompt             *promptbuilder.Prompt
	model              string
	temperature        float32
	maxOutputTokens    int32
	maxTurns           int
	systemInstructions *promptbuilder.Prompt
	responseMIMEType   string
	responseSchema     map[string]any
	genaiMetrics       *telemetry.GenAI
	retryConfig        retry.Config
}

// New creates an executor for prompt.
func New[Request promptbuilder.Bindable, Response any](
	client *genai.Client,
	prompt *promptbuilder.Prompt,
	options ...Option[Request, Response],
) (Interface[Request, Response], error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if prompt == nil {
		return nil, errors.New("prompt is required")
	}
	exec := &executor[Request, Response]{
		client:          client,
		prompt:          prompt,
		model:           DefaultModel,
		temperature:     0.1,
		maxOutputTokens: 8192,
		maxTurns:        20,
		genaiMetrics:    telemetry.NewGenAI(telemetry.MeterName),
		retryConfig:     retry.Default(),
	}
	for _, opt := range options {
		if err := opt(exec); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return exec, nil
}

// Execute implements Interface.
func (e *executor[Request, Response]) Execute(
	ctx context.Context,
	request Request,
	tools map[string]toolcall.Tool[Response],
) (resp Response, err error) {
	log := clog.FromContext(ctx).With("model", e.model)

	bound, err := request.Bind(e.prompt)
	if err != nil {
		return resp, fmt.Errorf("failed to bind request to prompt: %w", err)
	}
	prompt, err := bound.Build()
	if err != nil {
		return resp, fmt.Errorf("failed to build prompt: %w", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "aim.llm",
		attribute.String("provider", "google"),
		attribute.String("model", e.model))
	defer func() { span.End(err) }()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(e.temperature),
		MaxOutputTokens: e.maxOutputTokens,
	}
	if e.systemInstructions != nil {
		system, err := e.systemInstructions.Build()
		if err != nil {
			return resp, fmt.Errorf("building system prompt: %w", err)
		}
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, FunctionDeclaration(tool.Def))
		names = append(names, tool.Def.Name)
	}
	if len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	} else {
		config.ResponseMIMEType = e.responseMIMEType
		if e.responseSchema != nil {
			config.ResponseJsonSchema = e.responseSchema
		}
	}

	chat, err := e.client.Chats.Create(ctx, e.model, config, nil)
	if err != nil {
		return resp, fmt.Errorf("failed to create chat with model %q: %w", e.model, err)
	}

	send := func(op string, parts ...*genai.Part) (*genai.GenerateContentResponse, error) {
		r, err := retry.Do(ctx, e.retryConfig, op, isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
			return chat.Send(ctx, parts...)
		})
		if err != nil {
			return nil, err
		}
		if r.UsageMetadata != nil {
			in, out := int64(r.UsageMetadata.PromptTokenCount), int64(r.UsageMetadata.CandidatesTokenCount)
			e.genaiMetrics.RecordTokens(ctx, e.model, in, out)
			span.RecordTokenUsage(e.model, in, out)
		}
		return r, nil
	}

	log.With("prompt_length", len(prompt)).Info("Starting Gemini execution")
	response, err := send("gemini_send", genai.NewPartFromText(prompt))
	if err != nil {
		return resp, fmt.Errorf("failed to send prompt: %w", err)
	}

	var final Response
	for turn := 0; turn < e.maxTurns; turn++ {
		if len(response.Candidates) == 0 {
			return resp, errors.New("no content generated - no candidates")
		}
		candidate := response.Candidates[0]

		if candidate.FinishReason == genai.FinishReasonMalformedFunctionCall {
			log.With("finish_message", candidate.FinishMessage).
				Warn("Model attempted a malformed function call, asking it to retry")
			response, err = send("gemini_malformed_retry", genai.NewPartFromText(fmt.Sprintf(
				"The function call was malformed. Please try again using the available functions: %s",
				strings.Join(names, ", "))))
			if err != nil {
				return resp, fmt.Errorf("failed to send retry message after malformed function call: %w", err)
			}
			continue
		}
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			return resp, errors.New("no content generated - candidate has no parts")
		}

		var (
			calls []*genai.FunctionCall
			text  strings.Builder
		)
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Thought:
			case part.FunctionCall != nil:
				calls = append(calls, part.FunctionCall)
			case part.Text != "":
				text.WriteString(part.Text)
			}
		}

		if len(calls) > 0 {
			parts := make([]*genai.Part, 0, len(calls))
			for _, fc := range calls {
				e.genaiMetrics.RecordToolCall(ctx, e.model, fc.Name)
				var payload map[string]any
				if tool, ok := tools[fc.Name]; ok {
					payload = tool.Handler(ctx, Call(fc), &final)
				} else {
					log.With("function", fc.Name).Warn("Model requested unknown function")
					payload = toolcall.Error("unknown function: %q", fc.Name)
				}
				if !reflect.ValueOf(&final).Elem().IsZero() {
					log.With("tool", fc.Name).Info("Tool set final result")
					return final, nil
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: payload,
				}})
			}
			response, err = send("gemini_tool_responses", parts...)
			if err != nil {
				return resp, fmt.Errorf("failed to send tool responses: %w", err)
			}
			continue
		}

		if text.Len() == 0 {
			return resp, errors.New("unexpected response format from model")
		}
		out, err := result.Extract[Response](text.String())
		if err != nil {
			log.With("response", text.String()).With("error", err).Warn("Failed to parse Gemini response")
			return resp, fmt.Errorf("failed to parse response: %w", err)
		}
		log.Info("Completed Gemini execution")
		return out, nil
	}
	return resp, fmt.Errorf("no final answer after %d turns", e.maxTurns)
}

// FunctionDeclaration converts a provider-independent definition into a Gemini function.
func FunctionDeclaration(def toolcall.Definition) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:                 def.Name,
		Description:          def.Description,
		ParametersJsonSchema: def.JSONSchema(),
	}
}

// Call converts a Gemini function call into a provider-independent call.
func Call(fc *genai.FunctionCall) toolcall.Call {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return toolcall.Call{ID: fc.ID, Name: fc.Name, Args: args}
}
