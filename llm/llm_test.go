/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/toolcall"
	"chainguard.dev/aim/llm"
	"chainguard.dev/aim/providers"
	"github.com/stretchr/testify/require"
)

// completion renders an OpenAI chat completion whose message is content, or
// a tool call when name is set.
func completion(t *testing.T, content string, name string, args any) string {
	t.Helper()
	msg := map[string]any{"role": "assistant", "content": content}
	finish := "stop"
	if name != "" {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		msg["content"] = nil
		msg["tool_calls"] = []any{map[string]any{
			"id":       "call_" + name,
			"type":     "function",
			"function": map[string]any{"name": name, "arguments": string(raw)},
		}}
		finish = "tool_calls"
	}
	raw, err := json.Marshal(map[string]any{
		"id": "c", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": []any{map[string]any{"index": 0, "finish_reason": finish, "message": msg}},
		"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	require.NoError(t, err)
	return string(raw)
}

type server struct {
	mu      sync.Mutex
	replies []string
	bodies  []map[string]any
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	n := len(s.bodies)
	s.bodies = append(s.bodies, body)
	w.Header().Set("Content-Type", "application/json")
	if n >= len(s.replies) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"unexpected request","type":"invalid_request_error"}}`)
		return
	}
	_, _ = io.WriteString(w, s.replies[n])
}

func (s *server) prompt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.bodies[i]["messages"].([]any)
	var sb strings.Builder
	for _, m := range msgs {
		if c, ok := m.(map[string]any)["content"].(string); ok {
			sb.WriteString(c)
		}
	}
	return sb.String()
}

func newService(t *testing.T, replies ...string) (llm.Service, *server) {
	t.Helper()
	s := &server{replies: replies}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	svc, err := llm.New(context.Background(), "gpt-4o", "test",
		llm.WithBaseURL(srv.URL),
		llm.WithRetryConfig(retry.Config{}))
	require.NoError(t, err)
	return svc, s
}

func TestNew(t *testing.T) {
	_, err := llm.New(context.Background(), "voyage-3.5", "key")
	require.ErrorIs(t, err, providers.ErrUnknownModel)

	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = llm.New(context.Background(), "claude-sonnet-4-20250514", "")
	require.ErrorIs(t, err, providers.ErrMissingAPIKey)

	_, err = llm.New(context.Background(), "gpt-4o", "key", llm.WithTemperature(3))
	require.Error(t, err)

	for _, model := range []string{"claude-haiku-4-5-20251001", "o3", "gemini-2.5-pro"} {
		svc, err := llm.New(context.Background(), model, "key")
		require.NoError(t, err, model)
		require.NotNil(t, svc)
	}
}

func TestExtractClaims(t *testing.T) {
	svc, s := newService(t, completion(t, `{"claims": ["Paris is the capital of France.", "  ", "Paris has 2.1 million residents."]}`, "", nil))

	got, err := svc.ExtractClaims(context.Background(), "Paris, the capital of France, has 2.1 million residents.")
	require.NoError(t, err)
	require.Equal(t, []string{"Paris is the capital of France.", "Paris has 2.1 million residents."}, got)
	require.Contains(t, s.prompt(0), "<content>Paris, the capital of France")

	format := s.bodies[0]["response_format"].(map[string]any)
	require.Equal(t, "json_schema", format["type"])
}

func TestExtractClaimsEmptyContent(t *testing.T) {
	svc, s := newService(t)
	got, err := svc.ExtractClaims(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, s.bodies, "no model call for empty content")
}

func TestEvaluateCriterion(t *testing.T) {
	svc, s := newService(t, completion(t, `{"result": false, "reasoning": "It is rude."}`, "", nil))

	got, err := svc.EvaluateCriterion(context.Background(), "Go away.", "The reply is polite")
	require.NoError(t, err)
	require.False(t, got)
	require.Contains(t, s.prompt(0), "<criterion>The reply is polite</criterion>")

	_, err = svc.EvaluateCriterion(context.Background(), "Go away.", "")
	require.Error(t, err)
}

func TestCheckClaims(t *testing.T) {
	svc, s := newService(t,
		completion(t, `{"results": [
  {"claim": "paraphrased", "validity": true, "reasoning": "stated", "evidence": "Paris is the capital"},
  {"claim": "B", "validity": false, "reasoning": "not mentioned", "evidence": ""}]}`, "", nil),
		completion(t, `{"results": []}`, "", nil))

	claims := []string{"Paris is the capital of France.", "Paris is in Spain."}
	got, err := svc.CheckClaims(context.Background(), claims, []string{"Paris is the capital of France."})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, claims[0], got[0].Claim)
	require.True(t, got[0].Validity)
	require.False(t, got[1].Validity)
	require.Contains(t, s.prompt(0), `<claim index="2">Paris is in Spain.</claim>`)
	require.Contains(t, s.prompt(0), `<chunk index="1">`)

	_, err = svc.CheckClaims(context.Background(), claims, nil)
	require.ErrorContains(t, err, "0 verdicts for 2 claims")
}

func TestRetrieveWithTools(t *testing.T) {
	svc, s := newService(t,
		completion(t, "", "search", map[string]any{"q": "capital of France"}),
		completion(t, "", llm.ReturnRecordTool, map[string]any{"result": []string{"Paris is the capital.", "France is in Europe."}}),
	)

	var queries []string
	search := llm.Tool{
		Def: toolcall.Definition{Name: "search", Parameters: []toolcall.Parameter{{Name: "q", Type: "string", Required: true}}},
		Call: func(_ context.Context, args map[string]any) (string, error) {
			queries = append(queries, args["q"].(string))
			return "Paris is the capital.", nil
		},
	}

	got, err := svc.RetrieveWithTools(context.Background(), "Paris is the capital of France.", []llm.Tool{search})
	require.NoError(t, err)
	require.Equal(t, "Paris is the capital.\n\nFrance is in Europe.", got)
	require.Equal(t, []string{"capital of France"}, queries)

	tools := s.bodies[0]["tools"].([]any)
	require.Len(t, tools, 2)
	_, hasFormat := s.bodies[0]["response_format"]
	require.False(t, hasFormat, "structured output is not combined with tools")
}

func TestRetrieveWithToolsNothingFound(t *testing.T) {
	svc, _ := newService(t, completion(t, "", llm.ReturnRecordTool, map[string]any{"result": nil}))
	got, err := svc.RetrieveWithTools(context.Background(), "unknowable", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRetrieveWithToolsReservedName(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RetrieveWithTools(context.Background(), "q", []llm.Tool{{Def: toolcall.Definition{Name: llm.ReturnRecordTool}}})
	require.ErrorContains(t, err, "reserved")
}
