/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package providers maps model identifiers to the vendor that serves them and
// the environment variable that carries that vendor's API key.
package providers

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Provider is a model vendor.
type Provider string

const (
	OpenAI    Provider = "OPENAI"
	Anthropic Provider = "ANTHROPIC"
	VoyageAI  Provider = "VOYAGE_AI"
	Google    Provider = "GOOGLE"
)

var (
	// ErrUnknownModel is returned for model identifiers outside the catalogue.
	ErrUnknownModel = errors.New("unknown model")
	// ErrMissingAPIKey is returned when neither an explicit key nor the
	// provider's environment variable is set.
	ErrMissingAPIKey = errors.New("missing API key")
)

// EnvVar returns the credential environment variable for p.
func (p Provider) EnvVar() string {
	switch p {
	case OpenAI:
		return "OPENAI_API_KEY"
	case Anthropic:
		return "ANTHROPIC_API_KEY"
	case VoyageAI:
		return "VOYAGEAI_API_KEY"
	case Google:
		return "GEMINI_API_KEY"
	}
	return ""
}

// APIKey returns explicit when set, otherwise the provider's environment variable.
func (p Provider) APIKey(explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	if env := p.EnvVar(); env != "" {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("%w: set %s", ErrMissingAPIKey, env)
	}
	return "", fmt.Errorf("%w: unknown provider %q", ErrMissingAPIKey, string(p))
}

// Model is a catalogued model.
type Model struct {
	Name     string
	Provider Provider
}

var llmModels = []Model{
	{"gpt-4o", OpenAI},
	{"gpt-4.1", OpenAI},
	{"o3", OpenAI},
	{"gpt-5", OpenAI},
	{"claude-3-5-sonnet-latest", Anthropic},
	{"claude-3-7-sonnet-latest", Anthropic},
	{"claude-sonnet-4-20250514", Anthropic},
	{"claude-sonnet-4-5-latest", Anthropic},
	{"claude-haiku-4-5-20251001", Anthropic},
	{"claude-opus-4-1-latest", Anthropic},
	{"gemini-2.5-flash", Google},
	{"gemini-2.5-pro", Google},
}

var embedModels = []Model{
	{"text-embedding-3-large", OpenAI},
	{"text-embedding-3-small", OpenAI},
	{"text-embedding-ada-002", OpenAI},
	{"voyage-3-large", VoyageAI},
	{"voyage-3.5", VoyageAI},
	{"voyage-3.5-lite", VoyageAI},
	{"gemini-embedding-001", Google},
}

// LLM looks up a chat model.
func LLM(name string) (Model, error) {
	return lookup(llmModels, "language", name)
}

// Embedding looks up an embedding model.
func Embedding(name string) (Model, error) {
	return lookup(embedModels, "embedding", name)
}

// LLMModels lists the chat model catalogue.
func LLMModels() []Model { return slices.Clone(llmModels) }

// EmbeddingModels lists the embedding model catalogue.
func EmbeddingModels() []Model { return slices.Clone(embedModels) }

func lookup(models []Model, kind, name string) (Model, error) {
	i := slices.IndexFunc(models, func(m Model) bool { return m.Name == name })
	if i < 0 {
		return Model{}, fmt.Errorf("%w: unknown %s model %q", ErrUnknownModel, kind, name)
	}
	return models[i], nil
}
