/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaiexecutor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"chainguard.dev/aim/agents/executor/openaiexecutor"
	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/toolcall"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

type question struct{ Text string }

func (q *question) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	return p.BindXML("question", struct {
		XMLName struct{} `xml:"question"`
		Content string   `xml:",chardata"`
	}{Content: q.Text})
}

type verdict struct {
	Result bool `json:"result"`
}

var prompt = promptbuilder.MustNewPrompt(`Answer in JSON. {{question}}`)

const textReply = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"result\": true}"}}],
"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`

const toolReply = `{"id":"c0","object":"chat.completion","created":1,"model":"gpt-4o",
"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
"tool_calls":[{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"id\":\"a\"}"}}]}}],
"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`

// recorder serves canned replies and keeps the decoded request bodies.
type recorder struct {
	mu       sync.Mutex
	replies  []string
	statuses []int
	bodies   []map[string]any
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	n := len(r.bodies)
	r.bodies = append(r.bodies, body)

	w.Header().Set("Content-Type", "application/json")
	if n < len(r.statuses) && r.statuses[n] != 0 {
		w.WriteHeader(r.statuses[n])
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
		return
	}
	if n >= len(r.replies) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = io.WriteString(w, r.replies[n])
}

func newClient(t *testing.T, rec *recorder) openai.Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestExecuteToolLoop(t *testing.T) {
	rec := &recorder{replies: []string{toolReply, textReply}}
	exec, err := openaiexecutor.New[*question, *verdict](newClient(t, rec), prompt)
	require.NoError(t, err)

	var gotID string
	tools := map[string]toolcall.Tool[*verdict]{
		"lookup": {
			Def: toolcall.Definition{Name: "lookup", Description: "Look up a record",
				Parameters: []toolcall.Parameter{{Name: "id", Type: "string", Required: true}}},
			Handler: func(_ context.Context, call toolcall.Call, _ **verdict) map[string]any {
				gotID, _ = toolcall.Param[string](call, "id")
				return map[string]any{"record": "Paris is the capital of France."}
			},
		},
	}

	got, err := exec.Execute(context.Background(), &question{Text: "capital?"}, tools)
	require.NoError(t, err)
	require.True(t, got.Result)
	require.Equal(t, "a", gotID)
	require.Len(t, rec.bodies, 2)

	// The second request carries the assistant tool call and our tool result.
	msgs, ok := rec.bodies[1]["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	require.Equal(t, "tool", last["role"])
	require.Equal(t, "call_1", last["tool_call_id"])
	require.Contains(t, last["content"], "Paris")

	tl := rec.bodies[0]["tools"].([]any)
	require.Len(t, tl, 1)
}

func TestExecuteTemperatureByModel(t *testing.T) {
	for model, want := range map[string]bool{"gpt-4o": true, "o3": false, "gpt-5": false} {
		t.Run(model, func(t *testing.T) {
			rec := &recorder{replies: []string{textReply}}
			exec, err := openaiexecutor.New[*question, *verdict](newClient(t, rec), prompt,
				openaiexecutor.WithModel[*question, *verdict](model))
			require.NoError(t, err)
			_, err = exec.Execute(context.Background(), &question{Text: "?"}, nil)
			require.NoError(t, err)
			_, has := rec.bodies[0]["temperature"]
			require.Equal(t, want, has)
			require.Equal(t, model, rec.bodies[0]["model"])
		})
	}
}

func TestExecuteResponseSchema(t *testing.T) {
	rec := &recorder{replies: []string{textReply}}
	exec, err := openaiexecutor.New[*question, *verdict](newClient(t, rec), prompt,
		openaiexecutor.WithResponseSchema[*question, *verdict]("verdict", map[string]any{"type": "object"}))
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), &question{Text: "?"}, nil)
	require.NoError(t, err)

	format, ok := rec.bodies[0]["response_format"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "json_schema", format["type"])
}

func TestExecuteRetriesRateLimit(t *testing.T) {
	rec := &recorder{statuses: []int{http.StatusTooManyRequests}, replies: []string{"", textReply}}
	exec, err := openaiexecutor.New[*question, *verdict](newClient(t, rec), prompt,
		openaiexecutor.WithRetryConfig[*question, *verdict](retry.Config{MaxRetries: 1}))
	require.NoError(t, err)

	got, err := exec.Execute(context.Background(), &question{Text: "?"}, nil)
	require.NoError(t, err)
	require.True(t, got.Result)
	require.Len(t, rec.bodies, 2)
}

func TestExecuteDoesNotRetryBadRequest(t *testing.T) {
	rec := &recorder{statuses: []int{http.StatusBadRequest}}
	exec, err := openaiexecutor.New[*question, *verdict](newClient(t, rec), prompt,
		openaiexecutor.WithRetryConfig[*question, *verdict](retry.Config{MaxRetries: 3}))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), &question{Text: "?"}, nil)
	require.Error(t, err)
	require.Len(t, rec.bodies, 1)
}

func TestOptions(t *testing.T) {
	client := openai.NewClient(option.WithAPIKey("x"))
	for name, opt := range map[string]openaiexecutor.Option[*question, *verdict]{
		"empty model":     openaiexecutor.WithModel[*question, *verdict](""),
		"zero tokens":     openaiexecutor.WithMaxTokens[*question, *verdict](0),
		"hot temperature": openaiexecutor.WithTemperature[*question, *verdict](3),
		"nil system":      openaiexecutor.WithSystemInstructions[*question, *verdict](nil),
		"nil schema":      openaiexecutor.WithResponseSchema[*question, *verdict]("x", nil),
		"unnamed schema":  openaiexecutor.WithResponseSchema[*question, *verdict]("", map[string]any{}),
		"negative retry":  openaiexecutor.WithRetryConfig[*question, *verdict](retry.Config{MaxRetries: -1}),
		"zero turns":      openaiexecutor.WithMaxTurns[*question, *verdict](0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := openaiexecutor.New[*question, *verdict](client, prompt, opt)
			require.Error(t, err)
		})
	}
}
