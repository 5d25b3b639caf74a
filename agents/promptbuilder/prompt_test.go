/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder_test

import (
	"strings"
	"testing"

	"chainguard.dev/aim/agents/promptbuilder"
	"github.com/google/go-cmp/cmp"
)

type answer struct {
	XMLName struct{} `xml:"answer"`
	Text    string   `xml:",chardata"`
}

func TestNewPromptPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*promptbuilder.Prompt, error)
		want    []string
		wantErr bool
	}{{
		name:  "none",
		build: func() (*promptbuilder.Prompt, error) { return promptbuilder.NewPrompt("plain text") },
		want:  nil,
	}, {
		name: "repeated and spaced",
		build: func() (*promptbuilder.Prompt, error) {
			return promptbuilder.NewPrompt("{{ claims }} then {{content}} and {{claims}}")
		},
		want: []string{"claims", "content"},
	}, {
		name:    "unclosed",
		build:   func() (*promptbuilder.Prompt, error) { return promptbuilder.NewPrompt("{{claims") },
		wantErr: true,
	}, {
		name:    "bad identifier",
		build:   func() (*promptbuilder.Prompt, error) { return promptbuilder.NewPrompt("{{1abc}}") },
		wantErr: true,
	}, {
		name:    "empty identifier",
		build:   func() (*promptbuilder.Prompt, error) { return promptbuilder.NewPrompt("{{}}") },
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.build()
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPrompt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tt.want, p.Placeholders()); diff != "" {
				t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildEscapesBoundContent(t *testing.T) {
	p := promptbuilder.MustNewPrompt("Judge:\n{{answer}}")

	bound, err := p.BindXML("answer", answer{Text: "<script> & {{answer}}"})
	if err != nil {
		t.Fatalf("BindXML() = %v", err)
	}
	got, err := bound.Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	want := "Judge:\n<answer>&lt;script&gt; &amp; {{answer}}</answer>"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBindErrors(t *testing.T) {
	p := promptbuilder.MustNewPrompt("{{a}} {{b}}")

	if _, err := p.BindJSON("missing", 1); err == nil {
		t.Error("BindJSON(missing) succeeded, want error")
	}

	once, err := p.BindStringLiteral("a", "x")
	if err != nil {
		t.Fatalf("BindStringLiteral() = %v", err)
	}
	if _, err := once.BindStringLiteral("a", "y"); err == nil {
		t.Error("second bind succeeded, want error")
	}

	if _, err := once.Build(); err == nil || !strings.Contains(err.Error(), "unbound placeholder: b") {
		t.Errorf("Build() error = %v, want unbound placeholder b", err)
	}

	// The original prompt is not mutated by binding.
	if _, err := p.BindStringLiteral("a", "z"); err != nil {
		t.Errorf("original prompt was mutated: %v", err)
	}
}

func TestBindFormats(t *testing.T) {
	p := promptbuilder.MustNewPrompt("{{j}}|{{y}}")
	p, err := p.BindJSON("j", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("BindJSON() = %v", err)
	}
	p, err = p.BindYAML("y", []string{"one"})
	if err != nil {
		t.Fatalf("BindYAML() = %v", err)
	}
	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	want := "{\n  \"n\": 1\n}|- one\n"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNewPrompt() did not panic on invalid template")
		}
	}()
	promptbuilder.MustNewPrompt("{{oops")
}
