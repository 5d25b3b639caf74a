/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/result"
	"chainguard.dev/aim/agents/telemetry"
	"chainguard.dev/aim/agents/toolcall"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "claude-sonnet-4-20250514"

// Interface executes a bound prompt against Claude.
type Interface[Request promptbuilder.Bindable, Response any] interface {
	// Execute runs the conversation for request, offering tools to the model.
	Execute(ctx context.Context, request Request, tools map[string]toolcall.Tool[Response]) (Response, error)
}

type executor[Request promptbuilder.Bindable, Response any] struct {
	client             anthropic.Client
	modelName          string
	systemInstructions *promptbuilder.Prompt
	prompt             *promptbuilder.Prompt
	maxTokens          int64
	temperature        float64
	maxTurns           int
	genaiMetrics       *telemetry.GenAI
	retryConfig        retry.Config
}

// New creates an executor for prompt.
func New[Request promptbuilder.Bindable, Response any](
	client anthropic.Client,
	prompt *promptbuilder.Prompt,
	opts ...Option[Request, Response],
) (Interface[Request, Response], error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	e := &executor[Request, Response]{
		client:       client,
		modelName:    DefaultModel,
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
	log := clog.FromContext(ctx).With("model", e.modelName)

	bound, err := request.Bind(e.prompt)
	if err != nil {
		return response, fmt.Errorf("failed to bind request to prompt: %w", err)
	}
	prompt, err := bound.Build()
	if err != nil {
		return response, fmt.Errorf("failed to build prompt: %w", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "aim.llm",
		attribute.String("provider", "anthropic"),
		attribute.String("model", e.modelName))
	defer func() { span.End(err) }()

	log.With("prompt_length", len(prompt)).Info("Starting Claude execution")

	toolDefs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		toolDefs = append(toolDefs, anthropic.ToolUnionParam{OfTool: ToolParam(tool.Def)})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(e.modelName),
		MaxTokens:   e.maxTokens,
		Temperature: anthropic.Float(e.temperature),
		Tools:       toolDefs,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if e.systemInstructions != nil {
		system, err := e.systemInstructions.Build()
		if err != nil {
			return response, fmt.Errorf("building system prompt: %w", err)
		}
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var final Response
	for turn := 0; turn < e.maxTurns; turn++ {
		message, err := retry.Do(ctx, e.retryConfig, "claude_message", isRetryableClaudeError, func() (anthropic.Message, error) {
			stream := e.client.Messages.NewStreaming(ctx, params)
			defer stream.Close()
			var msg anthropic.Message
			for stream.Next() {
				if err := msg.Accumulate(stream.Current()); err != nil {
					return msg, fmt.Errorf("failed to accumulate event: %w", err)
				}
			}
			return msg, stream.Err()
		})
		if err != nil {
			return response, fmt.Errorf("failed to stream Claude response: %w", err)
		}

		if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
			e.genaiMetrics.RecordTokens(ctx, e.modelName, message.Usage.InputTokens, message.Usage.OutputTokens)
			span.RecordTokenUsage(e.modelName, message.Usage.InputTokens, message.Usage.OutputTokens)
		}

		var (
			uses []anthropic.ToolUseBlock
			text string
		)
		for _, block := range message.Content {
			switch block.Type {
			case "text":
				text += block.Text
			case "tool_use":
				uses = append(uses, anthropic.ToolUseBlock{ID: block.ID, Name: block.Name, Input: block.Input})
			}
		}

		if len(uses) > 0 {
			params.Messages = append(params.Messages, message.ToParam())
			results := make([]anthropic.ContentBlockParamUnion, 0, len(uses))
			for _, use := range uses {
				e.genaiMetrics.RecordToolCall(ctx, e.modelName, use.Name)
				block, err := e.runTool(ctx, tools, use, &final)
				if err != nil {
					return response, err
				}
				if !reflect.ValueOf(&final).Elem().IsZero() {
					log.With("tool", use.Name).Info("Tool set final result")
					return final, nil
				}
				results = append(results, block)
			}
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: results,
			})
			continue
		}

		if text == "" {
			return response, errors.New("no content in Claude's response")
		}
		resp, err := result.Extract[Response](text)
		if err != nil {
			log.With("response", text).With("error", err).Warn("Failed to parse Claude response")
			return response, fmt.Errorf("failed to parse response: %w", err)
		}
		log.Info("Completed Claude execution")
		return resp, nil
	}
	return response, fmt.Errorf("no final answer after %d turns", e.maxTurns)
}

func (e *executor[Request, Response]) runTool(ctx context.Context, tools map[string]toolcall.Tool[Response], use anthropic.ToolUseBlock, final *Response) (anthropic.ContentBlockParamUnion, error) {
	var payload map[string]any
	call, parseErr := Call(use)
	tool, ok := tools[use.Name]
	switch {
	case !ok:
		clog.FromContext(ctx).With("tool", use.Name).Warn("Model requested unknown tool")
		payload = toolcall.Error("unknown tool: %q", use.Name)
	case parseErr != nil:
		payload = toolcall.Error("%v", parseErr)
	default:
		payload = tool.Handler(ctx, call, final)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return anthropic.NewToolResultBlock(use.ID, string(raw), payload["error"] != nil), nil
}

// ToolParam converts a provider-independent definition into a Claude tool.
func ToolParam(def toolcall.Definition) *anthropic.ToolParam {
	return &anthropic.ToolParam{
		Name:        def.Name,
		Description: anthropic.String(def.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: def.Properties(),
			Required:   def.Required(),
		},
	}
}

// Call converts a Claude tool use block into a provider-independent call.
func Call(use anthropic.ToolUseBlock) (toolcall.Call, error) {
	call := toolcall.Call{ID: use.ID, Name: use.Name, Args: map[string]any{}}
	if len(use.Input) == 0 {
		return call, nil
	}
	if err := json.Unmarshal(use.Input, &call.Args); err != nil {
		return call, fmt.Errorf("failed to parse tool input: %w", err)
	}
	return call, nil
}
