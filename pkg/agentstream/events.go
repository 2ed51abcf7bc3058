// Package agentstream runs one agent turn against a chat model, executing
// tool calls as the model asks for them, and reports progress as a stream of
// boundary events.
package agentstream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/algojuke/discovery/pkg/toolexec"
)

// EventType names a boundary event.
type EventType string

const (
	EventMessageStart EventType = "message_start"
	EventTextDelta    EventType = "text_delta"
	EventMessageEnd   EventType = "message_end"
	EventError        EventType = "error"
)

// Usage counts model tokens for a whole message.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (u *Usage) add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// Event is one boundary event. Only the fields of its Type are serialised.
type Event struct {
	Type           EventType
	MessageID      string
	ConversationID string
	Content        string
	Usage          Usage
	Code           toolexec.Code
	Message        string
	Retryable      bool
}

func MessageStart(messageID, conversationID string) Event {
	return Event{Type: EventMessageStart, MessageID: messageID, ConversationID: conversationID}
}

func TextDelta(content string) Event {
	return Event{Type: EventTextDelta, Content: content}
}

func MessageEnd(usage Usage) Event {
	return Event{Type: EventMessageEnd, Usage: usage}
}

// ErrorEvent converts err into an error event with a stable code and a
// user-facing message. Internal detail never reaches the message.
func ErrorEvent(err error) Event {
	code := toolexec.CodeFor(err)
	retryable := toolexec.IsRetryable(err)
	if te, ok := toolexec.AsToolError(err); ok {
		retryable = te.Retryable
	}
	return Event{
		Type:      EventError,
		Code:      code,
		Message:   toolexec.UserMessage("assistant", code, "", ""),
		Retryable: retryable,
	}
}

// Codes is the closed set of codes an error event may carry.
func Codes() []toolexec.Code {
	return []toolexec.Code{
		toolexec.CodeAIServiceUnavailable,
		toolexec.CodeDatabase,
		toolexec.CodeValidation,
		toolexec.CodeRateLimited,
		toolexec.CodeTimeout,
		toolexec.CodeInternal,
		toolexec.CodeNotFound,
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventMessageStart:
		return json.Marshal(struct {
			Type           EventType `json:"type"`
			MessageID      string    `json:"messageId"`
			ConversationID string    `json:"conversationId"`
		}{e.Type, e.MessageID, e.ConversationID})
	case EventTextDelta:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventMessageEnd:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Usage Usage     `json:"usage"`
		}{e.Type, e.Usage})
	case EventError:
		return json.Marshal(struct {
			Type      EventType     `json:"type"`
			Code      toolexec.Code `json:"code"`
			Message   string        `json:"message"`
			Retryable bool          `json:"retryable"`
		}{e.Type, e.Code, e.Message, e.Retryable})
	}
	return nil, fmt.Errorf("unknown event type %q", e.Type)
}

// WriteSSE writes ev as one server-sent event.
func WriteSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
