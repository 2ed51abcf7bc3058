package tracing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return tp, sr
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStart_NoParentIsNoop(t *testing.T) {
	tp, sr := newRecorder()
	tr := New(tp, "test")

	ctx := context.Background()
	got, span := tr.Start(ctx, "semanticSearch", map[string]any{"query": "x"})
	assert.Equal(t, ctx, got)
	assert.False(t, span.Active())
	span.EndSuccess(map[string]any{"tracks": []any{1}})
	span.EndError(errors.New("boom"), true, false)

	assert.Empty(t, sr.Ended())

	var nilTracer *Tracer
	_, span = nilTracer.Start(ctx, "x", nil)
	assert.False(t, span.Active())
}

func TestSpan_EndSuccess(t *testing.T) {
	tp, sr := newRecorder()
	tr := New(tp, "test")

	ctx, parent := tp.Tracer("parent").Start(context.Background(), "agent-turn")
	_, span := tr.Start(ctx, "semanticSearch", map[string]any{"query": "lost love", "limit": 5})
	require.True(t, span.Active())
	span.EndSuccess(map[string]any{"tracks": []any{"a", "b", "c"}})
	parent.End()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	child := ended[0]
	assert.Equal(t, "semanticSearch", child.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, codes.Ok, child.Status().Code)

	a := attrs(child)
	assert.Equal(t, int64(3), a[AttrResultCount].AsInt64())
	assert.Equal(t, "returned 3 tracks", a[AttrSummary].AsString())
	_, hasDuration := a[AttrDurationMs]
	assert.True(t, hasDuration)

	var input map[string]any
	require.NoError(t, json.Unmarshal([]byte(a[AttrInput].AsString()), &input))
	assert.Equal(t, "lost love", input["query"])
}

func TestSpan_EndError(t *testing.T) {
	tp, sr := newRecorder()
	tr := New(tp, "test")

	ctx, parent := tp.Tracer("parent").Start(context.Background(), "agent-turn")
	_, span := tr.Start(ctx, "catalogueSearch", nil)
	span.EndError(errors.New("HTTP 503: unavailable"), true, true)
	parent.End()

	child := sr.Ended()[0]
	assert.Equal(t, codes.Error, child.Status().Code)
	a := attrs(child)
	assert.Equal(t, "HTTP 503: unavailable", a[AttrErrMessage].AsString())
	assert.True(t, a[AttrRetryable].AsBool())
	assert.True(t, a[AttrWasRetried].AsBool())
	require.NotEmpty(t, child.Events(), "error is recorded as a span event")
}

func TestBoundInput(t *testing.T) {
	long := strings.Repeat("é", 600)
	isrcs := make([]string, 25)
	for i := range isrcs {
		isrcs[i] = "USRC1760783" + string(rune('A'+i))
	}

	type input struct {
		Query string   `json:"query"`
		ISRCs []string `json:"isrcs"`
		Short []int    `json:"short"`
	}
	got := BoundInput(input{Query: long, ISRCs: isrcs, Short: []int{1, 2, 3}}).(map[string]any)

	q := got["query"].(string)
	assert.True(t, strings.HasPrefix(q, strings.Repeat("é", 500)))
	assert.Contains(t, q, "truncated, 600 chars total")

	arr := got["isrcs"].(map[string]any)
	assert.Equal(t, "array", arr["type"])
	assert.Equal(t, float64(25), arr["length"])
	assert.Len(t, arr["sample"], 5)
	assert.Equal(t, isrcs[0], arr["sample"].([]any)[0])

	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, got["short"])
}

func TestBoundInput_Exactly10ItemsKept(t *testing.T) {
	items := make([]any, 10)
	for i := range items {
		items[i] = float64(i)
	}
	assert.Equal(t, items, BoundInput(items))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		result any
		count  int
	}{
		{name: "tracks", result: map[string]any{"tracks": []any{1, 2}}, count: 2},
		{name: "tracks and albums", result: map[string]any{"tracks": []any{1}, "albums": []any{1, 2}}, count: 3},
		{name: "found", result: struct {
			Found    []string `json:"found"`
			NotFound []string `json:"notFound"`
		}{Found: []string{"a"}, NotFound: []string{"b", "c"}}, count: 1},
		{name: "totalFound", result: map[string]any{"totalFound": 7}, count: 7},
		{name: "resultCount", result: map[string]any{"resultCount": 4}, count: 4},
		{name: "unknown", result: map[string]any{"ok": true}, count: 0},
		{name: "nil", result: nil, count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, count := Summarize(tt.result)
			assert.Equal(t, tt.count, count)
		})
	}
}

func TestStartTurn_ParentsToolSpans(t *testing.T) {
	tp, sr := newRecorder()
	tr := New(tp, "test")

	ctx, turn := tr.StartTurn(context.Background(), "agent.turn", attribute.String("conversation.id", "c1"))
	_, span := tr.Start(ctx, "batchMetadata", map[string]any{"isrcs": []any{}})
	require.True(t, span.Active())
	span.EndSuccess(map[string]any{"found": []any{}})
	turn.End()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestStartTurn_NilTracer(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.StartTurn(context.Background(), "agent.turn")
	span.End()
	_, tool := tr.Start(ctx, "semanticSearch", nil)
	assert.False(t, tool.Active())
}

func TestProvider(t *testing.T) {
	var b strings.Builder
	tp, err := NewProvider("discovery-test", &b)
	require.NoError(t, err)

	tr := New(tp, "test")
	_, turn := tr.StartTurn(context.Background(), "agent.turn")
	turn.End()
	require.NoError(t, Shutdown(context.Background(), tp))
	assert.Contains(t, b.String(), `"agent.turn"`)
	assert.NoError(t, Shutdown(context.Background(), nil))
}
