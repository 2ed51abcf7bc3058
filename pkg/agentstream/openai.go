package agentstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/algojuke/discovery/internal/httpclient"
)

// DefaultSystemPrompt frames the model as a music discovery assistant.
const DefaultSystemPrompt = `You help listeners discover music. Use semanticSearch for moods, themes and lyrical ideas, catalogueSearch for specific titles or artists, and batchMetadata to inspect tracks before recommending them. When you have a set of tracks, present them with suggestPlaylist and give each a one-sentence reason.`

// OpenAIModel calls an OpenAI-compatible chat-completion endpoint with the
// agent tools attached. The completion is requested in one piece and replayed
// as chunks.
type OpenAIModel struct {
	client *httpclient.Client
	model  string
	system string
	tools  []chatTool
}

// NewOpenAIModel creates a model exposing the given tool definitions.
func NewOpenAIModel(client *httpclient.Client, model string, defs []mcp.Tool) *OpenAIModel {
	tools := make([]chatTool, 0, len(defs))
	for _, def := range defs {
		params, _ := json.Marshal(def.InputSchema)
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return &OpenAIModel{client: client, model: model, system: DefaultSystemPrompt, tools: tools}
}

func (m *OpenAIModel) Stream(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	req := chatRequest{
		Model:    m.model,
		Messages: m.toChat(messages),
		Tools:    m.tools,
	}
	if len(m.tools) > 0 {
		req.ToolChoice = "auto"
	}
	var resp chatResponse
	if err := m.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices")
	}

	msg := resp.Choices[0].Message
	out := make(chan Chunk, len(msg.ToolCalls)+2)
	if msg.Content != "" {
		out <- Chunk{Text: msg.Content}
	}
	for _, tc := range msg.ToolCalls {
		out <- Chunk{ToolCall: &ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		}}
	}
	out <- Chunk{Usage: &Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}}
	close(out)
	return out, nil
}

func (m *OpenAIModel) toChat(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if m.system != "" && (len(messages) == 0 || messages[0].Role != RoleSystem) {
		out = append(out, chatMessage{Role: string(RoleSystem), Content: m.system})
	}
	for _, msg := range messages {
		cm := chatMessage{Role: string(msg.Role), Content: msg.Content, ToolCallID: msg.ToolCallID}
		for _, tc := range msg.ToolCalls {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: chatFunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, cm)
	}
	return out
}

// ===================================================
// Wire types
// ===================================================

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

var _ Model = (*OpenAIModel)(nil)
