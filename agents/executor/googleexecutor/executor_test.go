/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/aim/agents/executor/googleexecutor"
	"chainguard.dev/aim/agents/executor/retry"
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/toolcall"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
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

const textReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"result\": true}"}]},"finishReason":"STOP"}],
"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2}}`

const callReply = `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"id":"a"}}}]},"finishReason":"STOP"}]}`

type recorder struct {
	mu      sync.Mutex
	replies []string
	paths   []string
	bodies  []map[string]any
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	n := len(r.bodies)
	r.bodies = append(r.bodies, body)
	r.paths = append(r.paths, req.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	if n >= len(r.replies) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"unexpected","status":"INVALID_ARGUMENT"}}`)
		return
	}
	_, _ = io.WriteString(w, r.replies[n])
}

func newClient(t *testing.T, rec *recorder) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	return client
}

func TestExecuteText(t *testing.T) {
	rec := &recorder{replies: []string{textReply}}
	exec, err := googleexecutor.New[*question, *verdict](newClient(t, rec), prompt,
		googleexecutor.WithResponseSchema[*question, *verdict](map[string]any{"type": "object"}))
	require.NoError(t, err)

	got, err := exec.Execute(context.Background(), &question{Text: "Is Paris in France?"}, nil)
	require.NoError(t, err)
	require.True(t, got.Result)
	require.Len(t, rec.paths, 1)
	require.True(t, strings.HasSuffix(rec.paths[0], "gemini-2.5-flash:generateContent"), rec.paths[0])

	cfg := rec.bodies[0]["generationConfig"].(map[string]any)
	require.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestExecuteFunctionCall(t *testing.T) {
	rec := &recorder{replies: []string{callReply, textReply}}
	exec, err := googleexecutor.New[*question, *verdict](newClient(t, rec), prompt,
		googleexecutor.WithRetryConfig[*question, *verdict](retry.Config{}))
	require.NoError(t, err)

	var gotID string
	tools := map[string]toolcall.Tool[*verdict]{
		"lookup": {
			Def: toolcall.Definition{Name: "lookup", Parameters: []toolcall.Parameter{{Name: "id", Type: "string", Required: true}}},
			Handler: func(_ context.Context, call toolcall.Call, _ **verdict) map[string]any {
				gotID, _ = toolcall.Param[string](call, "id")
				return map[string]any{"record": "Paris"}
			},
		},
	}
	got, err := exec.Execute(context.Background(), &question{Text: "capital?"}, tools)
	require.NoError(t, err)
	require.True(t, got.Result)
	require.Equal(t, "a", gotID)
	require.Len(t, rec.bodies, 2)
	require.Contains(t, rec.bodies[0], "tools")
}

func TestNewValidation(t *testing.T) {
	_, err := googleexecutor.New[*question, *verdict](nil, prompt)
	require.Error(t, err)

	client := newClient(t, &recorder{})
	_, err = googleexecutor.New[*question, *verdict](client, nil)
	require.Error(t, err)

	for name, opt := range map[string]googleexecutor.Option[*question, *verdict]{
		"not gemini":  googleexecutor.WithModel[*question, *verdict]("gpt-4o"),
		"temperature": googleexecutor.WithTemperature[*question, *verdict](2.5),
		"tokens":      googleexecutor.WithMaxOutputTokens[*question, *verdict](0),
		"system":      googleexecutor.WithSystemInstructions[*question, *verdict](nil),
		"mime":        googleexecutor.WithResponseMIMEType[*question, *verdict](""),
		"schema":      googleexecutor.WithResponseSchema[*question, *verdict](nil),
		"turns":       googleexecutor.WithMaxTurns[*question, *verdict](0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := googleexecutor.New[*question, *verdict](client, prompt, opt)
			require.Error(t, err)
		})
	}
}

func TestFunctionDeclaration(t *testing.T) {
	decl := googleexecutor.FunctionDeclaration(toolcall.Definition{
		Name:   "return_record",
		Schema: map[string]any{"properties": map[string]any{}},
	})
	require.Equal(t, "return_record", decl.Name)
	require.Equal(t, "object", decl.ParametersJsonSchema.(map[string]any)["type"])

	call := googleexecutor.Call(&genai.FunctionCall{ID: "1", Name: "x"})
	require.NotNil(t, call.Args)
}
