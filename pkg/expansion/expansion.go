// Package expansion rewrites one listener request into 1–3 search sub-queries.
package expansion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/algojuke/discovery/internal/httpclient"
)

// MaxQueries is the upper bound on sub-queries for one request.
const MaxQueries = 3

// ErrNoQueries is returned when the model produced nothing usable.
var ErrNoQueries = errors.New("query expansion returned no queries")

// Expander turns a user query into sub-queries.
type Expander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// ===================================================
// OpenAI chat-completion expander
// ===================================================

// OpenAIExpander asks a chat-completion model for a JSON list of sub-queries.
type OpenAIExpander struct {
	client     *httpclient.Client
	model      string
	maxQueries int
}

// NewOpenAIExpander creates an expander. maxQueries is clamped to 1..3.
func NewOpenAIExpander(client *httpclient.Client, model string, maxQueries int) *OpenAIExpander {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxQueries < 1 || maxQueries > MaxQueries {
		maxQueries = MaxQueries
	}
	return &OpenAIExpander{client: client, model: model, maxQueries: maxQueries}
}

const systemPrompt = `You rewrite music discovery requests into search queries for a track index whose documents describe mood, themes, lyrics and sound.
Return JSON only: {"queries": ["..."]} with between 1 and %d short, distinct queries. Keep the listener's intent; do not invent artists.`

func (e *OpenAIExpander) Expand(ctx context.Context, query string) ([]string, error) {
	req := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, e.maxQueries)},
			{Role: "user", Content: query},
		},
		Temperature:    0.2,
		MaxTokens:      256,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	var resp chatResponse
	if err := e.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, fmt.Errorf("query expansion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("query expansion: empty completion")
	}
	return ParseQueries(resp.Choices[0].Message.Content, e.maxQueries)
}

// ParseQueries extracts sub-queries from model output. It accepts
// {"queries": [...]} or a bare JSON array, optionally wrapped in a code fence,
// trims and de-duplicates case-insensitively, and keeps at most limit entries.
func ParseQueries(content string, limit int) ([]string, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var list []string
	var obj struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Queries != nil {
		list = obj.Queries
	} else if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("query expansion: unparseable output: %w", err)
	}

	if limit < 1 || limit > MaxQueries {
		limit = MaxQueries
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, limit)
	for _, q := range list {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoQueries
	}
	return out, nil
}

// Passthrough uses the query as its only sub-query. It backs local runs
// without a model endpoint.
type Passthrough struct{}

func (Passthrough) Expand(_ context.Context, query string) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrNoQueries
	}
	return []string{q}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var (
	_ Expander = (*OpenAIExpander)(nil)
	_ Expander = Passthrough{}
)
