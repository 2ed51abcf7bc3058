package agenttools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/algojuke/discovery/pkg/isrc"
	"github.com/algojuke/discovery/pkg/toolexec"
)

// Register adds every tool to the MCP server.
func (t *Tools) Register(s *server.MCPServer) {
	for _, id := range IDs() {
		s.AddTool(Definition(id), t.Handler(id))
	}
}

// Handler adapts a tool to an MCP handler. Tool failures are returned as
// isError results, never as protocol errors.
func (t *Tools) Handler(id ToolID) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return errorResult(&toolexec.ToolError{Tool: string(id), Code: toolexec.CodeValidation, Detail: err.Error()}), nil
		}
		out, err := t.Call(ctx, id, args)
		if err != nil {
			return errorResult(err), nil
		}
		body, err := json.Marshal(successEnvelope{Data: out.Value, WasRetried: out.WasRetried})
		if err != nil {
			return errorResult(&toolexec.ToolError{Tool: string(id), Code: toolexec.CodeInternal, Detail: err.Error()}), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

type successEnvelope struct {
	Data       any  `json:"data"`
	WasRetried bool `json:"wasRetried"`
}

// ErrorPayload is the JSON body of a failed tool result.
type ErrorPayload struct {
	Error      string        `json:"error"`
	Code       toolexec.Code `json:"code"`
	Field      string        `json:"field,omitempty"`
	Retryable  bool          `json:"retryable"`
	WasRetried bool          `json:"wasRetried"`
}

func errorResult(err error) *mcp.CallToolResult {
	te, ok := toolexec.AsToolError(err)
	if !ok {
		te = &toolexec.ToolError{Code: toolexec.CodeFor(err), Cause: err, Retryable: toolexec.IsRetryable(err)}
	}
	body, _ := json.Marshal(ErrorPayload{
		Error:      te.UserMessage(),
		Code:       te.Code,
		Field:      te.Field,
		Retryable:  te.Retryable,
		WasRetried: te.WasRetried,
	})
	return mcp.NewToolResultError(string(body))
}

// =============================================================================
// DEFINITIONS
// =============================================================================

// Definition returns the MCP schema for a tool, with the same bounds the
// input types enforce.
func Definition(id ToolID) mcp.Tool {
	switch id {
	case SemanticSearch:
		return mcp.NewTool(string(SemanticSearch),
			mcp.WithDescription(
				"Search the indexed music library by meaning. Accepts moods, themes, situations or "+
					"lyrical ideas and returns tracks ranked by fused dense and keyword relevance.",
			),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language description of the music wanted"),
				mcp.MinLength(1),
				mcp.MaxLength(SemanticQueryMax),
			),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", SemanticLimitDef, SemanticLimitMax)),
				mcp.Min(1),
				mcp.Max(SemanticLimitMax),
				mcp.DefaultNumber(SemanticLimitDef),
			),
			mcp.WithNumber("offset",
				mcp.Description(fmt.Sprintf("Number of ranked results to skip (max: %d)", SemanticOffsetMax)),
				mcp.Min(0),
				mcp.Max(SemanticOffsetMax),
				mcp.DefaultNumber(0),
			),
		)
	case CatalogueSearch:
		return mcp.NewTool(string(CatalogueSearch),
			mcp.WithDescription(
				"Search the streaming catalogue by title or artist. Results say whether each item is "+
					"already in the user's library and whether a track is indexed for semantic search.",
			),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Title, artist or album keywords"),
				mcp.MinLength(1),
				mcp.MaxLength(CatalogueQueryMax),
			),
			mcp.WithString("searchType",
				mcp.Description("What to search for"),
				mcp.Enum("tracks", "albums", "both"),
				mcp.DefaultString("both"),
			),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", CatalogueLimitDef, CatalogueLimitMax)),
				mcp.Min(1),
				mcp.Max(CatalogueLimitMax),
				mcp.DefaultNumber(CatalogueLimitDef),
			),
		)
	case BatchMetadata:
		return mcp.NewTool(string(BatchMetadata),
			mcp.WithDescription("Fetch indexed metadata and audio features for up to 100 tracks by ISRC."),
			mcp.WithArray("isrcs",
				mcp.Required(),
				mcp.Description("ISRCs to look up, case-insensitive"),
				mcp.MaxItems(BatchISRCsMax),
				mcp.WithStringItems(mcp.Pattern(isrcPattern)),
			),
		)
	case SuggestPlaylist:
		return mcp.NewTool(string(SuggestPlaylist),
			mcp.WithDescription("Present a playlist to the user. Each track carries a short reason for its inclusion."),
			mcp.WithString("title",
				mcp.Required(),
				mcp.MinLength(1),
				mcp.MaxLength(PlaylistTitleMax),
			),
			mcp.WithString("description",
				mcp.MaxLength(PlaylistDescription),
			),
			mcp.WithArray("tracks",
				mcp.Required(),
				mcp.MinItems(1),
				mcp.MaxItems(PlaylistTracksMax),
				mcp.Items(map[string]any{
					"type":     "object",
					"required": []string{"isrc", "reasoning"},
					"properties": map[string]any{
						"isrc":      map[string]any{"type": "string", "pattern": isrcPattern},
						"reasoning": map[string]any{"type": "string", "minLength": 1, "maxLength": PlaylistReasonMax},
					},
				}),
			),
		)
	}
	return mcp.NewTool(string(id))
}

var isrcPattern = fmt.Sprintf("^[A-Za-z0-9]{%d}$", isrc.Length)
