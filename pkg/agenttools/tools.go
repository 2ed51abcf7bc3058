// Package agenttools defines the closed set of tools the discovery agent can
// call, their validated inputs and typed outputs, and the dispatch table that
// runs them through the tool executor.
package agenttools

import (
	"context"
	"encoding/json"
	"log"

	"github.com/algojuke/discovery/pkg/catalogue"
	"github.com/algojuke/discovery/pkg/hybridsearch"
	"github.com/algojuke/discovery/pkg/library"
	"github.com/algojuke/discovery/pkg/toolexec"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

// ToolID identifies one tool variant.
type ToolID string

const (
	SemanticSearch  ToolID = "semanticSearch"
	CatalogueSearch ToolID = "catalogueSearch"
	BatchMetadata   ToolID = "batchMetadata"
	SuggestPlaylist ToolID = "suggestPlaylist"
)

// IDs lists every tool in registration order.
func IDs() []ToolID {
	return []ToolID{SemanticSearch, CatalogueSearch, BatchMetadata, SuggestPlaylist}
}

// Valid reports whether id is one of the known tools.
func (id ToolID) Valid() bool {
	for _, known := range IDs() {
		if id == known {
			return true
		}
	}
	return false
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Retriever runs hybrid retrieval.
type Retriever interface {
	Search(ctx context.Context, req hybridsearch.Request) (*hybridsearch.Response, error)
}

// MetadataIndex reads indexed track payloads.
type MetadataIndex interface {
	GetByISRCs(ctx context.Context, isrcs []string) (map[string]vectorstore.TrackPayload, error)
	ExistingISRCs(ctx context.Context, isrcs []string) (map[string]bool, error)
}

// Deps are the collaborators shared by the tools. Library may be nil, in
// which case nothing is annotated as in the library.
type Deps struct {
	Retriever     Retriever
	Index         MetadataIndex
	Catalogue     catalogue.Searcher
	Library       library.Store
	DefaultUserID string
}

// =============================================================================
// DISPATCH
// =============================================================================

// Outcome is a successful tool call.
type Outcome struct {
	Value      any
	WasRetried bool
}

type handler func(ctx context.Context, args json.RawMessage) (Outcome, error)

// Tools dispatches tool calls by ID.
type Tools struct {
	exec  *toolexec.Executor
	deps  Deps
	table map[ToolID]handler
}

// New builds the dispatch table.
func New(exec *toolexec.Executor, deps Deps) *Tools {
	if exec == nil {
		exec = toolexec.NewExecutor()
	}
	t := &Tools{exec: exec, deps: deps}
	t.table = map[ToolID]handler{
		SemanticSearch:  bind(t, SemanticSearch, defaultSemanticSearchInput, t.semanticSearch),
		CatalogueSearch: bind(t, CatalogueSearch, defaultCatalogueSearchInput, t.catalogueSearch),
		BatchMetadata:   bind(t, BatchMetadata, func() BatchMetadataInput { return BatchMetadataInput{} }, t.batchMetadata),
		SuggestPlaylist: bind(t, SuggestPlaylist, func() SuggestPlaylistInput { return SuggestPlaylistInput{} }, t.suggestPlaylist),
	}
	return t
}

// Call decodes args into the tool's input type and runs it. Every error is a
// *toolexec.ToolError.
func (t *Tools) Call(ctx context.Context, id ToolID, args json.RawMessage) (Outcome, error) {
	h, ok := t.table[id]
	if !ok {
		return Outcome{}, &toolexec.ToolError{
			Tool:   string(id),
			Code:   toolexec.CodeNotFound,
			Detail: "unknown tool " + string(id),
		}
	}
	return h(ctx, args)
}

func (t *Tools) logger() *log.Logger {
	return t.exec.Logger()
}

// bind decodes JSON arguments over the tool's defaults, so absent fields keep
// their default and explicit values are validated. Malformed arguments fail
// validation inside Execute, so they are traced like any other rejected call.
func bind[In toolexec.Validator, Out any](t *Tools, id ToolID, defaults func() In, fn func(context.Context, In) (Out, error)) handler {
	run := func(ctx context.Context, a decodedArgs[In]) (Out, error) { return fn(ctx, a.in) }
	return func(ctx context.Context, raw json.RawMessage) (Outcome, error) {
		a := decodedArgs[In]{in: defaults()}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.in); err != nil {
				a.decodeErr = toolexec.NewValidationError("", "malformed arguments: %v", err)
			}
		}
		res, err := toolexec.Execute(ctx, t.exec, string(id), a, run)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Value: res.Value, WasRetried: res.WasRetried}, nil
	}
}

// decodedArgs is a decoded tool input plus any decode failure.
type decodedArgs[In toolexec.Validator] struct {
	in        In
	decodeErr error
}

func (a decodedArgs[In]) Validate() error {
	if a.decodeErr != nil {
		return a.decodeErr
	}
	return a.in.Validate()
}

// MarshalJSON records the input itself on spans.
func (a decodedArgs[In]) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.in)
}

// =============================================================================
// USER SCOPE
// =============================================================================

type userKey struct{}

// WithUserID scopes library annotations to a user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func (t *Tools) userID(ctx context.Context) string {
	if v, ok := ctx.Value(userKey{}).(string); ok && v != "" {
		return v
	}
	return t.deps.DefaultUserID
}
