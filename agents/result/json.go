/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned by Extract when the text carries no JSON payload.
var ErrEmpty = errors.New("no JSON content in response")

// ExtractJSON returns the JSON payload of a model response.
//
// In order of preference it returns the body of the first ```json fence, the
// body of a response that is entirely wrapped in a bare ``` fence, or the
// outermost object/array found in the text. Text without any of those is
// returned trimmed.
func ExtractJSON(text string) string {
	if body, ok := fencedBlock(text, "```json"); ok {
		return body
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```") && len(trimmed) >= 6 {
		inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
		// Drop an info string such as "JSON" on the opening fence line.
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[") {
			inner = inner[nl+1:]
		}
		return strings.TrimSpace(inner)
	}

	if span, ok := outermost(trimmed); ok {
		return span
	}
	return trimmed
}

// fencedBlock returns the lines between an opening fence line and the next
// closing ``` line.
func fencedBlock(text, open string) (string, bool) {
	var body []string
	inside := false
	for line := range strings.Lines(text) {
		line = strings.TrimRight(line, "\r\n")
		switch {
		case !inside && strings.TrimSpace(line) == open:
			inside = true
		case inside && strings.TrimSpace(line) == "```":
			return strings.TrimSpace(strings.Join(body, "\n")), true
		case inside:
			body = append(body, line)
		}
	}
	if inside {
		return strings.TrimSpace(strings.Join(body, "\n")), true
	}
	return "", false
}

// outermost returns the span from the first '{' or '[' to the matching last
// '}' or ']' when the text is not already bare JSON.
func outermost(text string) (string, bool) {
	if json.Valid([]byte(text)) {
		return text, true
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	span := text[start : end+1]
	if !json.Valid([]byte(span)) {
		return "", false
	}
	return span, true
}

// Extract unmarshals the JSON payload of text into a T.
func Extract[T any](text string) (T, error) {
	var out T
	payload := ExtractJSON(text)
	if payload == "" {
		return out, ErrEmpty
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("decoding %T: %w", out, err)
	}
	return out, nil
}
