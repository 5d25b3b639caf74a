/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the aim run configuration and provider credentials.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/providers"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the run configuration file.
type Config struct {
	// Run is the shell command that runs the evaluation tests.
	Run string `json:"run" yaml:"run" validate:"required"`
	// DataDir is where references, reports and failures are stored.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	// Shell runs Run with "-c". Defaults to /bin/sh.
	Shell string `json:"shell,omitempty" yaml:"shell,omitempty"`
	// Env is added to the environment of the test command.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" validate:"dive,keys,required,endkeys"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration at path. Files ending in .yaml or .yml are
// YAML; anything else is JSON. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(raw, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw in the format named by ext, applies defaults and
// validates the result.
func Parse(raw []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decoding YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
	}

	cfg.Run = strings.TrimSpace(cfg.Run)
	if cfg.DataDir == "" {
		cfg.DataDir = mode.DefaultDataDir
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, describe(err)
	}
	return &cfg, nil
}

// describe turns validator errors into messages naming the config keys.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", key(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", key(fe.Field()), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func key(field string) string {
	switch field {
	case "Run":
		return "run"
	case "DataDir":
		return "data_dir"
	}
	return strings.ToLower(field)
}

// Environ returns the extra environment as KEY=VALUE pairs sorted by key.
func (c *Config) Environ() []string {
	out := make([]string, 0, len(c.Env))
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// Credentials are the provider API keys found in the environment.
type Credentials struct {
	OpenAI    string `env:"OPENAI_API_KEY"`
	Anthropic string `env:"ANTHROPIC_API_KEY"`
	VoyageAI  string `env:"VOYAGEAI_API_KEY"`
	Gemini    string `env:"GEMINI_API_KEY"`
}

// LoadCredentials reads the provider keys from the environment.
func LoadCredentials(ctx context.Context) (Credentials, error) {
	var c Credentials
	if err := envconfig.Process(ctx, &c); err != nil {
		return Credentials{}, fmt.Errorf("processing environment: %w", err)
	}
	return c, nil
}

// Available lists the providers that have a key.
func (c Credentials) Available() []providers.Provider {
	var out []providers.Provider
	for p, key := range map[providers.Provider]string{
		providers.OpenAI:    c.OpenAI,
		providers.Anthropic: c.Anthropic,
		providers.VoyageAI:  c.VoyageAI,
		providers.Google:    c.Gemini,
	} {
		if strings.TrimSpace(key) != "" {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
