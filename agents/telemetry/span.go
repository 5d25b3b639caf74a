/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chainguard.dev/aim"

// Span is a thin wrapper so callers can close a span with their named error
// result in a single deferred call.
type Span struct {
	span oteltrace.Span
}

// StartSpan starts a span named name under ctx.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0")).
		Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// SetAttributes annotates the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordTokenUsage puts token counts on the span so they show next to the trace.
func (s *Span) RecordTokenUsage(model string, input, output int64) {
	s.span.SetAttributes(
		attribute.String("model", model),
		attribute.Int64("tokens.input", input),
		attribute.Int64("tokens.output", output),
		attribute.Int64("tokens.total", input+output),
	)
}

// End closes the span, marking it failed when err is non-nil.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
