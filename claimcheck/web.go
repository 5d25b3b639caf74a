/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claimcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/chainguard-dev/clog"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

type webChecker struct {
	verifier
	opts options
}

// FetchReference fetches every URL concurrently. Pages that fail are logged
// and skipped; the call fails only when no page could be fetched.
func (w *webChecker) FetchReference(ctx context.Context, _ []string, args Args) (Reference, error) {
	urls := make([]string, 0, len(args.URLs))
	for _, u := range args.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("urls are required")
	}

	pages := make([]string, len(urls))
	errs := make([]error, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.maxConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			pages[i], errs[i] = w.fetch(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := clog.FromContext(ctx)
	ref := make(Reference, 0, len(urls))
	for i, u := range urls {
		if errs[i] != nil {
			log.With("url", u).With("error", errs[i]).Warn("Skipping reference page")
			continue
		}
		if pages[i] != "" {
			ref = append(ref, pages[i])
		}
	}
	if len(ref) == 0 {
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("no reference page could be fetched: %w", err)
		}
		return nil, errors.New("all reference pages were empty")
	}
	log.With("pages", len(ref)).With("urls", len(urls)).Info("Fetched reference pages")
	return ref, nil
}

func (w *webChecker) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "aim/claim-check")
	req.Header.Set("Accept", "text/html,text/plain,application/json;q=0.9,*/*;q=0.1")

	resp, err := w.opts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: HTTP status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		mediaType = http.DetectContentType(body)
		mediaType, _, _ = strings.Cut(mediaType, ";")
	}

	var text string
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err = htmlToMarkdown(string(body))
		if err != nil {
			return "", fmt.Errorf("converting %s: %w", url, err)
		}
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		text = string(body)
	default:
		return "", fmt.Errorf("fetching %s: unsupported content type %q", url, mediaType)
	}
	return truncate(strings.TrimSpace(text), w.opts.maxPageChars), nil
}

func htmlToMarkdown(html string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	return conv.ConvertString(html)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ChunkContent splits every page with a recursive character splitter.
func (w *webChecker) ChunkContent(ref Reference) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(w.opts.chunkSize),
		textsplitter.WithChunkOverlap(w.opts.chunkOverlap),
	)
	var chunks []string
	for _, doc := range ref {
		parts, err := splitter.SplitText(doc)
		if err != nil {
			return nil, fmt.Errorf("splitting reference: %w", err)
		}
		chunks = append(chunks, parts...)
	}
	return chunks, nil
}
