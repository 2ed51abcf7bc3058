package agentstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algojuke/discovery/internal/httpclient"
	"github.com/algojuke/discovery/pkg/agenttools"
	"github.com/algojuke/discovery/pkg/toolexec"
)

// scriptedModel replays one chunk list per turn and records what it was sent.
type scriptedModel struct {
	turns     [][]Chunk
	streamErr error
	histories [][]Message
}

func (m *scriptedModel) Stream(_ context.Context, messages []Message) (<-chan Chunk, error) {
	m.histories = append(m.histories, append([]Message(nil), messages...))
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	turn := len(m.histories) - 1
	if turn >= len(m.turns) {
		turn = len(m.turns) - 1
	}
	out := make(chan Chunk, len(m.turns[turn]))
	for _, c := range m.turns[turn] {
		out <- c
	}
	close(out)
	return out, nil
}

type fakeTools struct {
	mu      sync.Mutex
	calls   []agenttools.ToolID
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeTools) Call(_ context.Context, id agenttools.ToolID, _ json.RawMessage) (agenttools.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return agenttools.Outcome{}, f.err
	}
	return agenttools.Outcome{Value: map[string]any{"tracks": []string{"USRC17607839"}}}, nil
}

func (f *fakeTools) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type collector struct {
	events []Event
	onText func()
}

func (c *collector) emit(ev Event) error {
	c.events = append(c.events, ev)
	if ev.Type == EventTextDelta && c.onText != nil {
		c.onText()
	}
	return nil
}

func (c *collector) types() []EventType {
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func newTestRunner(m Model, tools ToolCaller, opts ...Option) *Runner {
	base := []Option{
		WithLogger(log.New(io.Discard, "", 0)),
		WithIDGenerator(func() string { return "msg-1" }),
	}
	return NewRunner(m, tools, append(base, opts...)...)
}

func toolCall(id, name string) Chunk {
	return Chunk{ToolCall: &ToolCall{ID: id, Name: name, Arguments: json.RawMessage(`{"query":"x"}`)}}
}

func TestRun_TextOnly(t *testing.T) {
	m := &scriptedModel{turns: [][]Chunk{{
		{Text: "Here are "},
		{Text: "some ideas."},
		{Usage: &Usage{InputTokens: 10, OutputTokens: 4}},
	}}}
	c := &collector{}
	tr, err := newTestRunner(m, &fakeTools{}).Run(context.Background(), Request{ConversationID: "conv-1"}, c.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventMessageStart, EventTextDelta, EventTextDelta, EventMessageEnd}, c.types())
	assert.Equal(t, "msg-1", c.events[0].MessageID)
	assert.Equal(t, "conv-1", c.events[0].ConversationID)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 4}, c.events[3].Usage)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "Here are some ideas.", tr.Messages[0].Content)
}

func TestRun_ToolLoop(t *testing.T) {
	m := &scriptedModel{turns: [][]Chunk{
		{toolCall("call-1", "semanticSearch"), {Usage: &Usage{InputTokens: 5, OutputTokens: 2}}},
		{{Text: "Try Teardrop."}, {Usage: &Usage{InputTokens: 20, OutputTokens: 3}}},
	}}
	tools := &fakeTools{}
	c := &collector{}
	tr, err := newTestRunner(m, tools).Run(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "sad songs"}},
	}, c.emit)
	require.NoError(t, err)

	assert.Equal(t, []agenttools.ToolID{agenttools.SemanticSearch}, tools.calls)
	assert.Equal(t, 1, tr.ToolCalls)
	assert.Equal(t, Usage{InputTokens: 25, OutputTokens: 5}, tr.Usage)

	require.Len(t, m.histories, 2)
	second := m.histories[1]
	require.Len(t, second, 3)
	assert.Equal(t, RoleTool, second[2].Role)
	assert.Equal(t, "call-1", second[2].ToolCallID)
	assert.JSONEq(t, `{"tracks":["USRC17607839"]}`, second[2].Content)
}

func TestRun_ToolFailureIsFedBackToModel(t *testing.T) {
	m := &scriptedModel{turns: [][]Chunk{
		{toolCall("call-1", "semanticSearch")},
		{{Text: "Search is down, sorry."}},
	}}
	tools := &fakeTools{err: &toolexec.ToolError{Tool: "semanticSearch", Code: toolexec.CodeTimeout, Retryable: true, WasRetried: true}}
	c := &collector{}
	_, err := newTestRunner(m, tools).Run(context.Background(), Request{}, c.emit)
	require.NoError(t, err)

	var payload agenttools.ErrorPayload
	require.NoError(t, json.Unmarshal([]byte(m.histories[1][1].Content), &payload))
	assert.Equal(t, toolexec.CodeTimeout, payload.Code)
	assert.True(t, payload.WasRetried)
	assert.Equal(t, EventMessageEnd, c.events[len(c.events)-1].Type)
}

func TestRun_ModelFailureEmitsErrorEvent(t *testing.T) {
	m := &scriptedModel{streamErr: &httpclient.HTTPError{StatusCode: 429, Message: "quota"}}
	c := &collector{}
	_, err := newTestRunner(m, &fakeTools{}).Run(context.Background(), Request{}, c.emit)
	require.Error(t, err)

	require.Equal(t, []EventType{EventMessageStart, EventError}, c.types())
	ev := c.events[1]
	assert.Equal(t, toolexec.CodeRateLimited, ev.Code)
	assert.True(t, ev.Retryable)
	assert.NotContains(t, ev.Message, "quota")
}

func TestRun_CancelBetweenChunksStopsToolCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &scriptedModel{turns: [][]Chunk{{
		{Text: "Let me look."},
		toolCall("call-1", "semanticSearch"),
	}}}
	tools := &fakeTools{}
	c := &collector{onText: cancel}

	_, err := newTestRunner(m, tools).Run(ctx, Request{}, c.emit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tools.count(), "no tool call after cancellation")
	assert.Equal(t, []EventType{EventMessageStart, EventTextDelta}, c.types())
}

func TestRun_CancelDiscardsInFlightResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &scriptedModel{turns: [][]Chunk{
		{toolCall("call-1", "semanticSearch"), toolCall("call-2", "batchMetadata")},
		{{Text: "never reached"}},
	}}
	tools := &fakeTools{block: make(chan struct{}), started: make(chan struct{})}
	go func() {
		<-tools.started
		cancel()
	}()

	tr, err := newTestRunner(m, tools).Run(ctx, Request{}, (&collector{}).emit)
	close(tools.block)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, m.histories, 1, "model is not called again")
	assert.Equal(t, 1, tools.count(), "second tool call is never issued")
	for _, msg := range tr.Messages {
		assert.NotEqual(t, RoleTool, msg.Role, "in-flight result is discarded")
	}
}

func TestRun_TurnLimit(t *testing.T) {
	m := &scriptedModel{turns: [][]Chunk{{toolCall("c", "semanticSearch")}}}
	c := &collector{}
	_, err := newTestRunner(m, &fakeTools{}, WithMaxTurns(2)).Run(context.Background(), Request{}, c.emit)
	assert.ErrorIs(t, err, ErrTooManyTurns)
	assert.Len(t, m.histories, 2)

	last := c.events[len(c.events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, toolexec.CodeInternal, last.Code)
	assert.False(t, last.Retryable)
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{MessageStart("m", "c"), `{"type":"message_start","messageId":"m","conversationId":"c"}`},
		{TextDelta("hi"), `{"type":"text_delta","content":"hi"}`},
		{MessageEnd(Usage{InputTokens: 1, OutputTokens: 2}), `{"type":"message_end","usage":{"inputTokens":1,"outputTokens":2}}`},
		{ErrorEvent(errors.New("connection refused")), `{"type":"error","code":"AI_SERVICE_UNAVAILABLE","message":"Assistant is temporarily unavailable. Please try again in a moment.","retryable":true}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			got, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteSSE(&b, TextDelta("x")))
	assert.Equal(t, "event: text_delta\ndata: {\"type\":\"text_delta\",\"content\":\"x\"}\n\n", b.String())
}

func TestCodesAreClosed(t *testing.T) {
	codes := Codes()
	assert.Len(t, codes, 7)
	for _, err := range []error{errors.New("odd"), context.DeadlineExceeded, errors.New("invalid")} {
		assert.Contains(t, codes, ErrorEvent(err).Code)
	}
}
