// Package tracing records tool calls as OpenTelemetry spans under an existing
// parent trace. Without an active parent span every operation is a no-op.
package tracing

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Attribute keys recorded on tool spans.
const (
	AttrInput       = "tool.input"
	AttrSummary     = "tool.summary"
	AttrResultCount = "tool.result_count"
	AttrDurationMs  = "tool.duration_ms"
	AttrErrMessage  = "tool.error.message"
	AttrRetryable   = "tool.error.retryable"
	AttrWasRetried  = "tool.error.was_retried"
)

// Tracer starts tool spans.
type Tracer struct {
	tracer trace.Tracer
	now    func() time.Time
}

// New returns a Tracer backed by the given provider.
func New(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name), now: time.Now}
}

// StartTurn opens the span for one externally triggered unit of work, such
// as an agent turn or an MCP tool request, so tool spans have a parent. A nil
// Tracer returns a no-op span.
func (t *Tracer) StartTurn(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
}

// Span is one recorded unit of work. The zero value and nil are no-ops.
type Span struct {
	span  trace.Span
	start time.Time
	now   func() time.Time
}

// Start opens a child span of the span in ctx. When ctx carries no valid
// span (or t is nil) it returns ctx unchanged and a no-op Span.
func (t *Tracer) Start(ctx context.Context, name string, input any) (context.Context, *Span) {
	if t == nil || !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, &Span{}
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	if encoded, ok := encodeInput(input); ok {
		span.SetAttributes(attribute.String(AttrInput, encoded))
	}
	return ctx, &Span{span: span, start: t.now(), now: t.now}
}

// Active reports whether the span records anything.
func (s *Span) Active() bool {
	return s != nil && s.span != nil
}

// EndSuccess records the result summary, result count and duration.
func (s *Span) EndSuccess(result any) {
	if !s.Active() {
		return
	}
	summary, count := Summarize(result)
	s.span.SetAttributes(
		attribute.String(AttrSummary, summary),
		attribute.Int(AttrResultCount, count),
		attribute.Int64(AttrDurationMs, s.elapsed().Milliseconds()),
	)
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

// EndError records the failure and marks the span as an error.
func (s *Span) EndError(err error, retryable, wasRetried bool) {
	if !s.Active() {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
		s.span.RecordError(err)
	}
	s.span.SetAttributes(
		attribute.String(AttrErrMessage, msg),
		attribute.Bool(AttrRetryable, retryable),
		attribute.Bool(AttrWasRetried, wasRetried),
		attribute.Int64(AttrDurationMs, s.elapsed().Milliseconds()),
	)
	s.span.SetStatus(codes.Error, msg)
	s.span.End()
}

func (s *Span) elapsed() time.Duration {
	return s.now().Sub(s.start)
}

func encodeInput(input any) (string, bool) {
	if input == nil {
		return "", false
	}
	v, err := structpb.NewValue(BoundInput(input))
	if err != nil {
		return "", false
	}
	out, err := protojson.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// toGeneric converts typed values into the map/slice/scalar shapes produced
// by encoding/json, which is what both bounding and structpb expect.
func toGeneric(v any) (any, bool) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
