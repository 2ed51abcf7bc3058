package agentstream

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/algojuke/discovery/pkg/agenttools"
	"github.com/algojuke/discovery/pkg/tracing"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

// Handler serves one agent turn per request as server-sent events. The turn
// stops when the client disconnects.
type Handler struct {
	runner *Runner
	tracer *tracing.Tracer
}

func NewHandler(runner *Runner, tracer *tracing.Tracer) *Handler {
	return &Handler{runner: runner, tracer: tracer}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 || strings.TrimSpace(req.Messages[len(req.Messages)-1].Content) == "" {
		http.Error(w, "a non-empty user message is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		ctx = agenttools.WithUserID(ctx, userID)
	}
	ctx, span := h.tracer.StartTurn(ctx, "agent.turn", attribute.String("conversation.id", req.ConversationID))
	defer span.End()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	emit := func(ev Event) error {
		if err := WriteSSE(w, ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}
	tr, err := h.runner.Run(ctx, Request{ConversationID: req.ConversationID, Messages: req.Messages}, emit)
	if tr != nil {
		span.SetAttributes(attribute.Int("agent.tool_calls", tr.ToolCalls))
	}
	if err != nil {
		span.RecordError(err)
	}
}
