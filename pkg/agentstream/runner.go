package agentstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/algojuke/discovery/pkg/agenttools"
	"github.com/algojuke/discovery/pkg/toolexec"
)

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

// Chunk is one increment of model output. Exactly one field is set.
type Chunk struct {
	Text     string
	ToolCall *ToolCall
	Usage    *Usage
	Err      error
}

// Model streams one completion. The channel is closed when the completion ends.
type Model interface {
	Stream(ctx context.Context, messages []Message) (<-chan Chunk, error)
}

// ToolCaller runs a tool by ID.
type ToolCaller interface {
	Call(ctx context.Context, id agenttools.ToolID, args json.RawMessage) (agenttools.Outcome, error)
}

// ErrTooManyTurns is returned when the model keeps calling tools past the turn limit.
var ErrTooManyTurns = errors.New("agent did not finish within the turn limit")

// Runner drives the model/tool loop for one user message.
type Runner struct {
	model    Model
	tools    ToolCaller
	maxTurns int
	logger   *log.Logger
	newID    func() string
}

// Option customises a Runner.
type Option func(*Runner)

func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator replaces the message ID source, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

func NewRunner(model Model, tools ToolCaller, opts ...Option) *Runner {
	r := &Runner{
		model:    model,
		tools:    tools,
		maxTurns: 8,
		logger:   log.Default(),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request is one user message within a conversation.
type Request struct {
	ConversationID string
	Messages       []Message
}

// Transcript is what the run added to the conversation.
type Transcript struct {
	MessageID string
	Messages  []Message
	Usage     Usage
	ToolCalls int
}

// Run emits message_start, text deltas as they arrive, and message_end. A
// model failure is emitted as an error event and returned. Once ctx is
// cancelled no further tool calls are issued, an in-flight tool call runs to
// completion but its result is dropped, and no closing event is emitted.
func (r *Runner) Run(ctx context.Context, req Request, emit func(Event) error) (*Transcript, error) {
	tr := &Transcript{MessageID: r.newID()}
	if err := emit(MessageStart(tr.MessageID, req.ConversationID)); err != nil {
		return tr, err
	}

	history := append([]Message(nil), req.Messages...)
	for turn := 0; turn < r.maxTurns; turn++ {
		text, calls, err := r.streamTurn(ctx, history, tr, emit)
		if err != nil {
			return tr, r.fail(ctx, err, emit)
		}
		reply := Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
		history = append(history, reply)
		tr.Messages = append(tr.Messages, reply)

		if len(calls) == 0 {
			return tr, emit(MessageEnd(tr.Usage))
		}
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				r.logger.Printf("agentstream: message %s cancelled before tool %s", tr.MessageID, call.Name)
				return tr, err
			}
			content, err := r.invoke(ctx, call)
			if err != nil {
				r.logger.Printf("agentstream: message %s cancelled, discarding in-flight %s result", tr.MessageID, call.Name)
				return tr, err
			}
			tr.ToolCalls++
			msg := Message{Role: RoleTool, ToolCallID: call.ID, Content: content}
			history = append(history, msg)
			tr.Messages = append(tr.Messages, msg)
		}
	}
	return tr, r.fail(ctx, toolexec.WithRetryable(ErrTooManyTurns, false), emit)
}

func (r *Runner) fail(ctx context.Context, err error, emit func(Event) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.logger.Printf("agentstream: run failed: %v", err)
	if emitErr := emit(ErrorEvent(err)); emitErr != nil {
		return fmt.Errorf("%w (emit error event: %v)", err, emitErr)
	}
	return err
}

func (r *Runner) streamTurn(ctx context.Context, history []Message, tr *Transcript, emit func(Event) error) (string, []ToolCall, error) {
	chunks, err := r.model.Stream(ctx, history)
	if err != nil {
		return "", nil, err
	}
	var text strings.Builder
	var calls []ToolCall
	for {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		var chunk Chunk
		var ok bool
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case chunk, ok = <-chunks:
		}
		if !ok {
			return text.String(), calls, nil
		}
		switch {
		case chunk.Err != nil:
			return "", nil, chunk.Err
		case chunk.Usage != nil:
			tr.Usage.add(*chunk.Usage)
		case chunk.ToolCall != nil:
			calls = append(calls, *chunk.ToolCall)
		case chunk.Text != "":
			text.WriteString(chunk.Text)
			if err := emit(TextDelta(chunk.Text)); err != nil {
				return "", nil, err
			}
		}
	}
}

type callResult struct {
	out agenttools.Outcome
	err error
}

// invoke runs the tool detached from ctx cancellation and waits for it unless
// ctx ends first. Tool failures become tool messages for the model.
func (r *Runner) invoke(ctx context.Context, call ToolCall) (string, error) {
	done := make(chan callResult, 1)
	go func() {
		out, err := r.tools.Call(context.WithoutCancel(ctx), agenttools.ToolID(call.Name), call.Arguments)
		done <- callResult{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return toolContent(res), nil
	}
}

func toolContent(res callResult) string {
	if res.err != nil {
		te, ok := toolexec.AsToolError(res.err)
		if !ok {
			te = &toolexec.ToolError{Code: toolexec.CodeFor(res.err), Retryable: toolexec.IsRetryable(res.err)}
		}
		body, _ := json.Marshal(agenttools.ErrorPayload{
			Error:      te.UserMessage(),
			Code:       te.Code,
			Field:      te.Field,
			Retryable:  te.Retryable,
			WasRetried: te.WasRetried,
		})
		return string(body)
	}
	body, err := json.Marshal(res.out.Value)
	if err != nil {
		return fmt.Sprintf(`{"error":"unserialisable tool result: %s"}`, err)
	}
	return string(body)
}
