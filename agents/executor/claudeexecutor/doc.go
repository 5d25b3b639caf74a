/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor runs a prompt against an Anthropic Claude model and
// decodes the JSON answer into a typed response.
//
// The executor owns the conversation loop: it binds the request into the
// prompt template, streams the reply, runs any requested tools and feeds their
// results back until the model answers with text or a tool sets the final
// result.
//
//	client := anthropic.NewClient(option.WithAPIKey(key))
//
//	exec, err := claudeexecutor.New[*Request, *Verdict](
//	    client,
//	    prompt,
//	    claudeexecutor.WithModel[*Request, *Verdict]("claude-sonnet-4-20250514"),
//	)
//	if err != nil {
//	    return nil, err
//	}
//	verdict, err := exec.Execute(ctx, req, nil)
//
// Rate limit and overload responses (429, 5xx, 529) are retried with
// exponential backoff; see WithRetryConfig.
package claudeexecutor
