package agentstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algojuke/discovery/internal/httpclient"
	"github.com/algojuke/discovery/pkg/agenttools"
)

func TestOpenAIModel_Stream(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Looking.",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "semanticSearch", "arguments": "{\"query\":\"rainy day\"}"}}]}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	m := NewOpenAIModel(httpclient.New(httpclient.Config{BaseURL: srv.URL}), "gpt-test",
		[]mcp.Tool{agenttools.Definition(agenttools.SemanticSearch)})

	chunks, err := m.Stream(context.Background(), []Message{
		{Role: RoleUser, Content: "rainy day music"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c0", Name: "batchMetadata"}}},
		{Role: RoleTool, ToolCallID: "c0", Content: "{}"},
	})
	require.NoError(t, err)

	var all []Chunk
	for c := range chunks {
		all = append(all, c)
	}
	require.Len(t, all, 3)
	assert.Equal(t, "Looking.", all[0].Text)
	require.NotNil(t, all[1].ToolCall)
	assert.Equal(t, "semanticSearch", all[1].ToolCall.Name)
	assert.JSONEq(t, `{"query":"rainy day"}`, string(all[1].ToolCall.Arguments))
	assert.Equal(t, &Usage{InputTokens: 42, OutputTokens: 7}, all[2].Usage)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, "auto", got.ToolChoice)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "semanticSearch", got.Tools[0].Function.Name)
	assert.Contains(t, string(got.Tools[0].Function.Parameters), `"query"`)

	require.Len(t, got.Messages, 4, "system prompt is prepended")
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "{}", got.Messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c0", got.Messages[3].ToolCallID)
}

func TestOpenAIModel_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewOpenAIModel(httpclient.New(httpclient.Config{BaseURL: srv.URL}), "gpt-test", nil)
	_, err := m.Stream(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, EventError, ErrorEvent(err).Type)
	assert.Equal(t, "AI_SERVICE_UNAVAILABLE", string(ErrorEvent(err).Code))
}
