/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chainguard.dev/aim/agents/toolcall"
)

// ReturnRecordTool is the tool the model calls to finish a retrieval.
const ReturnRecordTool = "return_record"

// Record is the payload of return_record. Result is a list of records, a
// single string, or null when nothing relevant was found.
type Record struct {
	Result any `json:"result"`
}

// Text flattens the record into reference text.
func (r *Record) Text() string {
	if r == nil {
		return ""
	}
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	default:
		return flatten(v)
	}
}

func flatten(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

var returnRecordDef = toolcall.Definition{
	Name: ReturnRecordTool,
	Description: "Finish the retrieval. Pass the records relevant to the query as a list, " +
		"a single string, or null when nothing relevant was found.",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{
				"description": "Relevant content from the knowledge base: a list of content pieces if found, otherwise null. Do not wrap the list in quotes.",
				"anyOf": []any{
					map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
					map[string]any{"type": "string"},
					map[string]any{"type": "null"},
				},
			},
		},
		"required": []string{"result"},
	},
}

func returnRecord() toolcall.Tool[*Record] {
	return toolcall.Tool[*Record]{
		Def: returnRecordDef,
		Handler: func(_ context.Context, call toolcall.Call, result **Record) map[string]any {
			*result = &Record{Result: call.Args["result"]}
			return map[string]any{"status": "recorded"}
		},
	}
}
