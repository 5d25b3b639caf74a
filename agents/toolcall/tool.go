/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package toolcall defines tools once, independent of the model provider that
// ends up calling them. Executors translate a Definition into their SDK's tool
// type and every provider-specific call into a Call.
package toolcall

import (
	"context"
	"fmt"
	"maps"
)

// Call is a provider-independent tool invocation.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Parameter describes a single scalar tool parameter.
type Parameter struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number"
	Description string
	Required    bool
}

// Definition describes a tool to the model.
type Definition struct {
	Name        string
	Description string
	// Parameters builds a flat object schema. It is ignored when Schema is set.
	Parameters []Parameter
	// Schema is a complete JSON Schema for the arguments object, as supplied
	// by MCP servers or derived with the schema package.
	Schema map[string]any
}

// JSONSchema returns the arguments schema as a JSON object.
func (d Definition) JSONSchema() map[string]any {
	if d.Schema != nil {
		s := maps.Clone(d.Schema)
		if _, ok := s["type"]; !ok {
			s["type"] = "object"
		}
		return s
	}
	props := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Properties returns the "properties" member of the schema.
func (d Definition) Properties() map[string]any {
	props, _ := d.JSONSchema()["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	return props
}

// Required returns the "required" member of the schema.
func (d Definition) Required() []string {
	switch req := d.JSONSchema()["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Tool pairs a definition with its handler.
//
// The handler returns the payload sent back to the model. A handler that
// stores a non-zero value in *result ends the conversation: the executor
// returns that value immediately.
type Tool[Resp any] struct {
	Def     Definition
	Handler func(ctx context.Context, call Call, result *Resp) map[string]any
}

// Error builds the payload returned to the model when a tool fails.
func Error(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// Param extracts a required argument from call.
func Param[T any](call Call, name string) (T, map[string]any) {
	var zero T
	v, ok := call.Args[name]
	if !ok {
		return zero, Error("%s parameter is required", name)
	}
	return convert[T](name, v)
}

// OptionalParam extracts an argument, returning def when it is absent or null.
func OptionalParam[T any](call Call, name string, def T) (T, map[string]any) {
	v, ok := call.Args[name]
	if !ok || v == nil {
		return def, nil
	}
	return convert[T](name, v)
}

func convert[T any](name string, v any) (T, map[string]any) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	// JSON numbers decode as float64.
	var zero T
	if f, ok := v.(float64); ok {
		switch any(zero).(type) {
		case int:
			return any(int(f)).(T), nil
		case int32:
			return any(int32(f)).(T), nil
		case int64:
			return any(int64(f)).(T), nil
		}
	}
	return zero, Error("%s parameter must be of type %T, got %T", name, zero, v)
}
