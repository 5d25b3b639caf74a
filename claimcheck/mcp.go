/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claimcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chainguard.dev/aim/agents/toolcall"
	"chainguard.dev/aim/llm"
	"github.com/chainguard-dev/clog"
	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

// MCPParams describes how to reach an MCP server: a stdio command, or the URL
// of a streamable HTTP endpoint.
type MCPParams struct {
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Session is a connection to an MCP server.
type Session interface {
	// Tools lists the server's tools.
	Tools(ctx context.Context) ([]toolcall.Definition, error)
	// Call invokes a tool and returns its text content.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Dialer opens a Session.
type Dialer func(ctx context.Context, p MCPParams) (Session, error)

type mcpChecker struct {
	verifier
	dial Dialer
}

// FetchReference runs one tool-using retrieval per claim against the server
// in args.Params and keeps the non-empty results in claim order.
func (m *mcpChecker) FetchReference(ctx context.Context, claims []string, args Args) (Reference, error) {
	if args.Params == nil {
		return nil, errors.New("params are required")
	}
	session, err := m.dial(ctx, *args.Params)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			clog.FromContext(ctx).With("error", err).Warn("Failed to close MCP session")
		}
	}()

	defs, err := session.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}
	tools := make([]llm.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, llm.Tool{
			Def: def,
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				return session.Call(ctx, def.Name, args)
			},
		})
	}

	ref := make(Reference, 0, len(claims))
	for _, claim := range claims {
		content, err := m.llm.RetrieveWithTools(ctx, claim, tools)
		if err != nil {
			return nil, fmt.Errorf("retrieving reference for claim %q: %w", claim, err)
		}
		if content != "" {
			ref = append(ref, content)
		}
	}
	return ref, nil
}

// ChunkContent returns the retrieved records unchanged.
func (m *mcpChecker) ChunkContent(ref Reference) ([]string, error) {
	return ref, nil
}

var clientInfo = mcp.Implementation{Name: "aim", Version: "1.0.0"}

// DialMCP connects to an MCP server with trpc-mcp-go and initializes the session.
func DialMCP(ctx context.Context, p MCPParams) (Session, error) {
	var (
		client mcp.Connector
		err    error
	)
	switch {
	case p.Command != "":
		client, err = mcp.NewStdioClient(mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{Command: p.Command, Args: p.Args},
			Timeout:      p.Timeout,
		}, clientInfo)
	case p.URL != "":
		var opts []mcp.ClientOption
		if len(p.Headers) > 0 {
			h := http.Header{}
			for k, v := range p.Headers {
				h.Set(k, v)
			}
			opts = append(opts, mcp.WithHTTPHeaders(h))
		}
		client, err = mcp.NewClient(p.URL, clientInfo, opts...)
	default:
		return nil, errors.New("MCP params need a command or a URL")
	}
	if err != nil {
		return nil, fmt.Errorf("creating MCP client: %w", err)
	}

	resp, err := client.Initialize(ctx, &mcp.InitializeRequest{})
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("initializing MCP session: %w", err)
	}
	clog.FromContext(ctx).With("server", resp.ServerInfo.Name).
		With("version", resp.ServerInfo.Version).
		Info("MCP session initialized")
	return &mcpSession{client: client}, nil
}

type mcpSession struct {
	client mcp.Connector
}

func (s *mcpSession) Tools(ctx context.Context) ([]toolcall.Definition, error) {
	resp, err := s.client.ListTools(ctx, &mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	defs := make([]toolcall.Definition, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schema, err := schemaMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		defs = append(defs, toolcall.Definition{Name: t.Name, Description: t.Description, Schema: schema})
	}
	return defs, nil
}

func (s *mcpSession) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := &mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", name, err)
	}
	text := contentText(resp.Content)
	if resp.IsError {
		return "", fmt.Errorf("tool %s returned error: %s", name, text)
	}
	return text, nil
}

func (s *mcpSession) Close() error {
	return s.client.Close()
}

func contentText(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch t := c.(type) {
		case mcp.TextContent:
			parts = append(parts, t.Text)
		case *mcp.TextContent:
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaMap converts an MCP input schema into a generic JSON object.
func schemaMap(s any) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding input schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding input schema: %w", err)
	}
	if out == nil {
		out = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out, nil
}
