package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "empathos-relay"

// SpanContext wraps an OTel span for managed lifecycle.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan creates a new span as a child of the current trace context.
// Returns a SpanContext that must be ended with End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartCompletionSpan opens a client span around one completion call.
//
//	sc := logger.StartCompletionSpan(ctx, "review", client.Model())
//	defer sc.End()
func StartCompletionSpan(ctx context.Context, step, model string) *SpanContext {
	return StartSpan(ctx, "brain."+step,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("empathos.step", step),
			attribute.String("llm.model", model),
		),
	)
}

// Context returns the context with the span attached.
func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End completes the span. Safe to call multiple times.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records an error on the span and marks it failed.
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
		sc.span.SetStatus(codes.Error, err.Error())
	}
}

// RecordUsage attaches token counts and the chosen capability, if any.
func (sc *SpanContext) RecordUsage(promptTokens, completionTokens int, capability string) {
	if sc.span == nil {
		return
	}
	sc.span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", promptTokens),
		attribute.Int("llm.usage.completion_tokens", completionTokens),
	)
	if capability != "" {
		sc.span.SetAttributes(attribute.String("llm.capability", capability))
	}
}
