/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"errors"

	"chainguard.dev/aim/agents/executor/retry"
	"github.com/anthropics/anthropic-sdk-go"
)

// isRetryableClaudeError reports rate limit, overload and transient server errors.
func isRetryableClaudeError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retry.StatusRetryable(apiErr.StatusCode)
	}
	return false
}
