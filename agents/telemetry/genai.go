/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package telemetry records OpenTelemetry metrics and spans for the model
// calls aim makes while judging, extracting and embedding.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is shared by every executor and embedder; the model is a dimension.
const MeterName = "chainguard.dev/aim"

// AttributeEnricher adds caller context (run id, metric type, ...) to the
// base attributes of each measurement.
type AttributeEnricher func(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue

// GenAI holds token, tool call and embedding counters.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	toolCalls        metric.Int64Counter
	embeddings       metric.Int64Counter
	enricher         AttributeEnricher
}

// NewGenAI creates the counters on the named meter. A counter that cannot be
// created is replaced by a no-op so instrumentation never breaks evaluation.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			slog.Warn("Failed to create counter, metric disabled", "counter", name, "error", err, "meter", meterName)
			return noop.Int64Counter{}
		}
		return c
	}
	return &GenAI{
		promptTokens:     counter("genai.token.prompt", "The number of prompt tokens used", "{tokens}"),
		completionTokens: counter("genai.token.completion", "The number of completion tokens used", "{tokens}"),
		toolCalls:        counter("genai.tool.calls", "The number of tool calls made during execution", "{calls}"),
		embeddings:       counter("genai.embeddings", "The number of texts embedded", "{texts}"),
	}
}

// SetAttributeEnricher installs enricher for subsequent measurements.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.enricher = enricher
}

func (m *GenAI) attrs(ctx context.Context, base []attribute.KeyValue, extra []attribute.KeyValue) metric.MeasurementOption {
	if m.enricher != nil {
		base = m.enricher(ctx, base)
	}
	return metric.WithAttributes(append(base, extra...)...)
}

// RecordTokens records prompt and completion token usage for model.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	opt := m.attrs(ctx, []attribute.KeyValue{attribute.String("model", model)}, attrs)
	m.promptTokens.Add(ctx, promptTokens, opt)
	m.completionTokens.Add(ctx, completionTokens, opt)
}

// RecordToolCall records one tool invocation requested by model.
func (m *GenAI) RecordToolCall(ctx context.Context, model, tool string, attrs ...attribute.KeyValue) {
	m.toolCalls.Add(ctx, 1, m.attrs(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("tool", tool),
	}, attrs))
}

// RecordEmbedding records one embedded text.
func (m *GenAI) RecordEmbedding(ctx context.Context, model string, attrs ...attribute.KeyValue) {
	m.embeddings.Add(ctx, 1, m.attrs(ctx, []attribute.KeyValue{attribute.String("model", model)}, attrs))
}
