/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package schema derives JSON Schemas from Go types for tool parameters and
// structured model responses.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generator wraps jsonschema.Reflector with the settings model providers accept:
// inline definitions and required fields taken from `jsonschema:"required"` tags.
type Generator struct {
	reflector jsonschema.Reflector
}

// NewGenerator returns a Generator with project defaults.
func NewGenerator() *Generator {
	return &Generator{
		reflector: jsonschema.Reflector{
			RequiredFromJSONSchemaTags: true,
			ExpandedStruct:             true,
			AllowAdditionalProperties:  true,
			DoNotReference:             true,
		},
	}
}

// Reflect returns the JSON schema for v.
func (g *Generator) Reflect(v any) *jsonschema.Schema {
	return g.reflector.Reflect(v)
}

// Reflect derives the JSON schema for v using a default generator.
func Reflect(v any) *jsonschema.Schema {
	return NewGenerator().Reflect(v)
}

// ReflectType reflects the zero value of T.
func ReflectType[T any]() *jsonschema.Schema {
	var zero T
	return Reflect(&zero)
}

// Map returns the schema of T as a generic JSON object, the shape SDKs take
// for function parameters and response formats. The "$schema" and "$id"
// keywords are dropped because several providers reject them.
func Map[T any]() (map[string]any, error) {
	raw, err := json.Marshal(ReflectType[T]())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustMap is Map that panics on error, for package level tool definitions.
func MustMap[T any]() map[string]any {
	m, err := Map[T]()
	if err != nil {
		panic(err)
	}
	return m
}
