/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"errors"
	"strings"

	"chainguard.dev/aim/agents/executor/retry"
	"google.golang.org/genai"
)

// isRetryableGeminiError reports quota, rate limit and transient server errors.
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return retry.StatusRetryable(v.Code)
		case *genai.APIError:
			return retry.StatusRetryable(v.Code)
		}
	}
	msg := err.Error()
	for _, marker := range []string{"RESOURCE_EXHAUSTED", "Resource exhausted", "rate limit", "quota exceeded", "UNAVAILABLE", "Overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
