/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claimcheck_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainguard.dev/aim/agents/toolcall"
	"chainguard.dev/aim/claimcheck"
	"chainguard.dev/aim/llm"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// fakeLLM answers RetrieveWithTools by calling the first tool with the
// query, and marks claims valid when some chunk contains them.
type fakeLLM struct {
	retrieveErr error
	queries     []string
}

func (f *fakeLLM) ExtractClaims(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeLLM) EvaluateCriterion(context.Context, string, string) (bool, error) { return true, nil }

func (f *fakeLLM) CheckClaims(_ context.Context, claims, chunks []string) ([]llm.ClaimVerdict, error) {
	out := make([]llm.ClaimVerdict, len(claims))
	for i, c := range claims {
		out[i] = llm.ClaimVerdict{Claim: c}
		for _, ch := range chunks {
			if strings.Contains(ch, c) {
				out[i].Validity = true
				out[i].Evidence = c
			}
		}
	}
	return out, nil
}

func (f *fakeLLM) RetrieveWithTools(ctx context.Context, query string, tools []llm.Tool) (string, error) {
	f.queries = append(f.queries, query)
	if f.retrieveErr != nil {
		return "", f.retrieveErr
	}
	if len(tools) == 0 {
		return "", nil
	}
	return tools[0].Call(ctx, map[string]any{"q": query})
}

func TestRequiredArgs(t *testing.T) {
	for ds, want := range map[claimcheck.DataSource][]string{
		claimcheck.Web:       {"urls"},
		claimcheck.MCP:       {"params"},
		claimcheck.Retriever: {"retriever_request", "query"},
	} {
		if diff := cmp.Diff(want, ds.RequiredArgs()); diff != "" {
			t.Errorf("%s.RequiredArgs() mismatch (-want +got):\n%s", ds, diff)
		}
	}
}

func TestValidate(t *testing.T) {
	retriever := func(context.Context, string) ([]string, error) { return nil, nil }
	tests := []struct {
		name   string
		source claimcheck.DataSource
		args   claimcheck.Args
		want   []string
	}{
		{"web ok", claimcheck.Web, claimcheck.Args{URLs: []string{"https://example.com"}}, nil},
		{"web blank urls", claimcheck.Web, claimcheck.Args{URLs: []string{" "}}, []string{"urls"}},
		{"mcp ok", claimcheck.MCP, claimcheck.Args{Params: &claimcheck.MCPParams{Command: "server"}}, nil},
		{"mcp empty params", claimcheck.MCP, claimcheck.Args{Params: &claimcheck.MCPParams{}}, []string{"params"}},
		{"retriever ok", claimcheck.Retriever, claimcheck.Args{Retriever: retriever, Query: "q"}, nil},
		{"retriever nothing", claimcheck.Retriever, claimcheck.Args{}, []string{"retriever_request", "query"}},
		{"retriever no query", claimcheck.Retriever, claimcheck.Args{Retriever: retriever}, []string{"query"}},
		{"retriever ignores urls", claimcheck.Retriever, claimcheck.Args{URLs: []string{"x"}, Query: "q"}, []string{"retriever_request"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate(tt.args)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			var missing *claimcheck.MissingArgsError
			require.True(t, errors.As(err, &missing), "error = %v", err)
			require.Equal(t, tt.want, missing.Missing)
			require.Equal(t, tt.source, missing.Source)
		})
	}

	require.Error(t, claimcheck.DataSource("FTP").Validate(claimcheck.Args{}))
}

func TestParseDataSource(t *testing.T) {
	got, err := claimcheck.ParseDataSource(" web ")
	require.NoError(t, err)
	require.Equal(t, claimcheck.Web, got)

	_, err = claimcheck.ParseDataSource("ftp")
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	_, err := claimcheck.New(claimcheck.Web, nil)
	require.Error(t, err)

	_, err = claimcheck.New("FTP", &fakeLLM{})
	require.Error(t, err)

	_, err = claimcheck.New(claimcheck.Web, &fakeLLM{}, claimcheck.WithChunking(100, 100))
	require.Error(t, err)

	for _, ds := range []claimcheck.DataSource{claimcheck.Web, claimcheck.MCP, claimcheck.Retriever} {
		c, err := claimcheck.New(ds, &fakeLLM{})
		require.NoError(t, err)
		require.NotNil(t, c)
	}
}

func TestRetrieverReceivesOnlyQuery(t *testing.T) {
	c, err := claimcheck.New(claimcheck.Retriever, &fakeLLM{})
	require.NoError(t, err)

	var got []string
	args := claimcheck.Args{
		Query: "capital of France",
		Retriever: func(_ context.Context, query string) ([]string, error) {
			got = append(got, query)
			return []string{"Paris is the capital of France."}, nil
		},
	}
	ref, err := c.FetchReference(context.Background(), []string{"claim a", "claim b"}, args)
	require.NoError(t, err)
	require.Equal(t, []string{"capital of France"}, got)

	chunks, err := c.ChunkContent(ref)
	require.NoError(t, err)
	require.Equal(t, []string{"Paris is the capital of France."}, chunks)

	verdicts, err := c.CheckClaims(context.Background(), []string{"Paris is the capital of France.", "Lyon"}, chunks)
	require.NoError(t, err)
	require.True(t, verdicts[0].Validity)
	require.False(t, verdicts[1].Validity)

	args.Retriever = func(context.Context, string) ([]string, error) { return nil, io.ErrUnexpectedEOF }
	_, err = c.FetchReference(context.Background(), nil, args)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWebFetchReference(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><h1>France</h1><p>Paris is the <b>capital</b>.</p></body></html>`)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"population": 2100000}`)
	})
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := claimcheck.New(claimcheck.Web, &fakeLLM{}, claimcheck.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ref, err := c.FetchReference(context.Background(), nil, claimcheck.Args{URLs: []string{
		srv.URL + "/page",
		srv.URL + "/missing",
		srv.URL + "/image.png",
		srv.URL + "/data.json",
	}})
	require.NoError(t, err)
	require.Len(t, ref, 2)
	require.Contains(t, ref[0], "# France")
	require.Contains(t, ref[0], "Paris is the **capital**.")
	require.Equal(t, `{"population": 2100000}`, ref[1])
}

func TestWebAllPagesFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	c, err := claimcheck.New(claimcheck.Web, &fakeLLM{}, claimcheck.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = c.FetchReference(context.Background(), nil, claimcheck.Args{URLs: []string{srv.URL + "/a", srv.URL + "/b"}})
	require.ErrorContains(t, err, "HTTP status 404")
}

func TestWebTruncatesPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("é", 10))
	}))
	t.Cleanup(srv.Close)

	c, err := claimcheck.New(claimcheck.Web, &fakeLLM{},
		claimcheck.WithHTTPClient(srv.Client()),
		claimcheck.WithMaxPageChars(5))
	require.NoError(t, err)
	ref, err := c.FetchReference(context.Background(), nil, claimcheck.Args{URLs: []string{srv.URL}})
	require.NoError(t, err)
	require.Equal(t, "ééééé", ref[0])
}

func TestWebAllPagesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, err := claimcheck.New(claimcheck.Web, &fakeLLM{}, claimcheck.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = c.FetchReference(context.Background(), nil, claimcheck.Args{URLs: []string{srv.URL + "/a", srv.URL + "/b"}})
	require.EqualError(t, err, "all reference pages were empty")
}

func TestWebChunkContent(t *testing.T) {
	c, err := claimcheck.New(claimcheck.Web, &fakeLLM{}, claimcheck.WithChunking(100, 10))
	require.NoError(t, err)

	para := strings.Repeat("word ", 30)
	chunks, err := c.ChunkContent(claimcheck.Reference{para + "\n\n" + para, "short page"})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)
	for _, ch := range chunks {
		require.LessOrEqual(t, len(ch), 100)
	}
	require.Equal(t, "short page", chunks[len(chunks)-1])
}

type fakeSession struct {
	calls  []string
	closed bool
}

func (s *fakeSession) Tools(context.Context) ([]toolcall.Definition, error) {
	return []toolcall.Definition{{Name: "lookup", Schema: map[string]any{"type": "object"}}}, nil
}

func (s *fakeSession) Call(_ context.Context, name string, args map[string]any) (string, error) {
	q, _ := args["q"].(string)
	s.calls = append(s.calls, name+":"+q)
	if strings.Contains(q, "unknown") {
		return "", nil
	}
	return "record for " + q, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func TestMCPFetchReference(t *testing.T) {
	session := &fakeSession{}
	var dialed claimcheck.MCPParams
	dial := func(_ context.Context, p claimcheck.MCPParams) (claimcheck.Session, error) {
		dialed = p
		return session, nil
	}
	svc := &fakeLLM{}
	c, err := claimcheck.New(claimcheck.MCP, svc, claimcheck.WithDialer(dial))
	require.NoError(t, err)

	params := &claimcheck.MCPParams{Command: "kb-server", Args: []string{"--stdio"}}
	ref, err := c.FetchReference(context.Background(), []string{"a", "unknown b", "c"}, claimcheck.Args{Params: params})
	require.NoError(t, err)
	require.Equal(t, claimcheck.Reference{"record for a", "record for c"}, ref)
	require.Equal(t, *params, dialed)
	require.Equal(t, []string{"a", "unknown b", "c"}, svc.queries)
	require.True(t, session.closed)

	chunks, err := c.ChunkContent(ref)
	require.NoError(t, err)
	require.Equal(t, []string(ref), chunks)
}

func TestMCPRetrievalError(t *testing.T) {
	session := &fakeSession{}
	c, err := claimcheck.New(claimcheck.MCP, &fakeLLM{retrieveErr: io.ErrClosedPipe},
		claimcheck.WithDialer(func(context.Context, claimcheck.MCPParams) (claimcheck.Session, error) { return session, nil }))
	require.NoError(t, err)

	_, err = c.FetchReference(context.Background(), []string{"a"}, claimcheck.Args{Params: &claimcheck.MCPParams{URL: "http://x"}})
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.True(t, session.closed)
}

func TestDialMCPNeedsTarget(t *testing.T) {
	_, err := claimcheck.DialMCP(context.Background(), claimcheck.MCPParams{})
	require.Error(t, err)
}
