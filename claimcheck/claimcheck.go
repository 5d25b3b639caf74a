/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claimcheck verifies claims against reference material fetched from
// a data source: web pages, an MCP tool server, or a caller's retriever.
//
// Every source follows the same three steps behind the Checker interface:
// fetch the reference, cut it into chunks, and ask the model for one verdict
// per claim.
package claimcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainguard.dev/aim/llm"
)

// DataSource names where reference material comes from.
type DataSource string

const (
	Web       DataSource = "WEB"
	MCP       DataSource = "MCP"
	Retriever DataSource = "RETRIEVER"
)

// Argument keys, as reported by MissingArgsError.
const (
	ArgURLs      = "urls"
	ArgParams    = "params"
	ArgRetriever = "retriever_request"
	ArgQuery     = "query"
)

// ParseDataSource converts a case-insensitive name into a DataSource.
func ParseDataSource(s string) (DataSource, error) {
	switch ds := DataSource(strings.ToUpper(strings.TrimSpace(s))); ds {
	case Web, MCP, Retriever:
		return ds, nil
	}
	return "", fmt.Errorf("unknown data source %q", s)
}

// RequiredArgs lists the argument keys the source needs, in order.
func (ds DataSource) RequiredArgs() []string {
	switch ds {
	case Web:
		return []string{ArgURLs}
	case MCP:
		return []string{ArgParams}
	case Retriever:
		return []string{ArgRetriever, ArgQuery}
	}
	return nil
}

// RetrieverFunc returns documents relevant to query.
type RetrieverFunc func(ctx context.Context, query string) ([]string, error)

// Args carries the source-specific inputs of a claim check.
type Args struct {
	// URLs are fetched by the web source.
	URLs []string
	// Params describes the MCP server to connect to.
	Params *MCPParams
	// Retriever is called with Query only.
	Retriever RetrieverFunc
	Query     string
}

// MissingArgsError lists the required argument keys that were absent or blank.
type MissingArgsError struct {
	Source  DataSource
	Missing []string
}

func (e *MissingArgsError) Error() string {
	return fmt.Sprintf("missing required arguments for %s data source: %s", e.Source, strings.Join(e.Missing, ", "))
}

// Validate checks args against the source's required keys.
func (ds DataSource) Validate(args Args) error {
	required := ds.RequiredArgs()
	if required == nil {
		return fmt.Errorf("unknown data source %q", string(ds))
	}
	var missing []string
	for _, key := range required {
		if !args.has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingArgsError{Source: ds, Missing: missing}
	}
	return nil
}

func (a Args) has(key string) bool {
	switch key {
	case ArgURLs:
		for _, u := range a.URLs {
			if strings.TrimSpace(u) != "" {
				return true
			}
		}
		return false
	case ArgParams:
		return a.Params != nil && (a.Params.Command != "" || a.Params.URL != "")
	case ArgRetriever:
		return a.Retriever != nil
	case ArgQuery:
		return strings.TrimSpace(a.Query) != ""
	}
	return false
}

// Reference is the fetched material, one document per entry.
type Reference []string

// ClaimResult is the verdict for one claim.
type ClaimResult = llm.ClaimVerdict

// Checker is one data source's implementation of the claim check.
type Checker interface {
	// FetchReference gathers reference material for claims.
	FetchReference(ctx context.Context, claims []string, args Args) (Reference, error)
	// ChunkContent cuts the reference into the pieces shown to the model.
	ChunkContent(ref Reference) ([]string, error)
	// CheckClaims returns one verdict per claim, in claim order.
	CheckClaims(ctx context.Context, claims, chunks []string) ([]ClaimResult, error)
}

type options struct {
	httpClient     *http.Client
	maxConcurrency int
	maxPageChars   int
	chunkSize      int
	chunkOverlap   int
	dial           Dialer
}

// Option configures New.
type Option func(*options) error

// WithHTTPClient sets the client the web source fetches pages with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		o.httpClient = c
		return nil
	}
}

// WithMaxConcurrency bounds parallel page fetches.
func WithMaxConcurrency(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max concurrency must be positive, got %d", n)
		}
		o.maxConcurrency = n
		return nil
	}
}

// WithMaxPageChars truncates each fetched page to n characters (runes).
func WithMaxPageChars(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max page chars must be positive, got %d", n)
		}
		o.maxPageChars = n
		return nil
	}
}

// WithChunking sets the web source's chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(o *options) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return fmt.Errorf("invalid chunking: size %d, overlap %d", size, overlap)
		}
		o.chunkSize, o.chunkOverlap = size, overlap
		return nil
	}
}

// WithDialer replaces how the MCP source connects to servers.
func WithDialer(d Dialer) Option {
	return func(o *options) error {
		if d == nil {
			return errors.New("dialer cannot be nil")
		}
		o.dial = d
		return nil
	}
}

// New returns the Checker for source.
func New(source DataSource, svc llm.Service, opts ...Option) (Checker, error) {
	if svc == nil {
		return nil, errors.New("llm service is required")
	}
	o := options{
		httpClient:     http.DefaultClient,
		maxConcurrency: 4,
		maxPageChars:   50_000,
		chunkSize:      1000,
		chunkOverlap:   100,
		dial:           DialMCP,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	v := verifier{llm: svc}
	switch source {
	case Web:
		return &webChecker{verifier: v, opts: o}, nil
	case MCP:
		return &mcpChecker{verifier: v, dial: o.dial}, nil
	case Retriever:
		return &retrieverChecker{verifier: v}, nil
	}
	return nil, fmt.Errorf("unknown data source %q", string(source))
}

// verifier is the CheckClaims step every source shares.
type verifier struct {
	llm llm.Service
}

func (v verifier) CheckClaims(ctx context.Context, claims, chunks []string) ([]ClaimResult, error) {
	return v.llm.CheckClaims(ctx, claims, chunks)
}
