/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claimcheck

import (
	"context"
	"errors"
	"fmt"
)

type retrieverChecker struct {
	verifier
}

// FetchReference calls the caller's retriever with the query alone.
func (r *retrieverChecker) FetchReference(ctx context.Context, _ []string, args Args) (Reference, error) {
	if args.Retriever == nil {
		return nil, errors.New("retriever_request is required")
	}
	if args.Query == "" {
		return nil, errors.New("query is required for retriever_request")
	}
	docs, err := args.Retriever(ctx, args.Query)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}
	return docs, nil
}

// ChunkContent returns the retrieved documents unchanged.
func (r *retrieverChecker) ChunkContent(ref Reference) ([]string, error) {
	return ref, nil
}
