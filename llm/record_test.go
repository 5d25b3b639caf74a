/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"testing"

	"chainguard.dev/aim/agents/toolcall"
)

func TestRecordText(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		want   string
	}{
		{"nil record", nil, ""},
		{"null result", &Record{}, ""},
		{"string", &Record{Result: "  one record "}, "one record"},
		{"list", &Record{Result: []any{"a", "", nil, "b"}}, "a\n\nb"},
		{"objects", &Record{Result: []any{map[string]any{"id": 1.0}}}, `{"id":1}`},
		{"number", &Record{Result: 4.0}, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReturnRecordEndsLoop(t *testing.T) {
	var rec *Record
	tool := returnRecord()
	tool.Handler(t.Context(), toolcall.Call{Name: ReturnRecordTool, Args: map[string]any{"result": nil}}, &rec)
	if rec == nil {
		t.Fatal("return_record with null result did not set a record")
	}
	if got := rec.Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}
}
