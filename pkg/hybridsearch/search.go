// Package hybridsearch expands a listener query into sub-queries, runs dense
// and sparse lookups for each, and fuses the ranked lists with Reciprocal Rank
// Fusion.
package hybridsearch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algojuke/discovery/pkg/embedding"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Index is the part of the vector store retrieval needs.
type Index interface {
	DenseSearch(ctx context.Context, embedding []float32, k int) ([]vectorstore.Hit, error)
	SparseSearch(ctx context.Context, sparse vectorstore.SparseVector, k int) ([]vectorstore.Hit, error)
}

// Expander produces 1–3 sub-queries.
type Expander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// QueryEncoder embeds sub-queries into dense and sparse vectors.
type QueryEncoder interface {
	Encode(ctx context.Context, texts []string) ([]embedding.Vectors, error)
}

// Options configures the hybrid search behavior.
type Options struct {
	RRFConstant   int // RRF constant c (default: 60)
	OverFetch     int // extra candidates per lookup beyond offset+limit (default: 50)
	MaxSubQueries int // cap on expanded sub-queries (default: 3)
	DefaultLimit  int // limit when the request has none (default: 50)
	MaxCandidates int // hard cap on k per lookup and on offset+limit (default: 1000)
	Logger        *log.Logger
}

// DefaultOptions returns sensible defaults for hybrid search.
func DefaultOptions() Options {
	return Options{
		RRFConstant:   60,
		OverFetch:     50,
		MaxSubQueries: 3,
		DefaultLimit:  50,
		MaxCandidates: 1000,
	}
}

// Request is one search call.
type Request struct {
	Query  string
	Limit  int
	Offset int
}

// Result is one fused, deduplicated track.
type Result struct {
	ISRC           string                     `json:"isrc"`
	Title          string                     `json:"title"`
	Artist         string                     `json:"artist"`
	Album          string                     `json:"album,omitempty"`
	Score          float32                    `json:"score"`
	DenseRank      int                        `json:"denseRank,omitempty"`
	SparseRank     int                        `json:"sparseRank,omitempty"`
	MatchedQueries []string                   `json:"matchedQueries"`
	Features       *vectorstore.AudioFeatures `json:"features,omitempty"`
}

// Response carries the window plus diagnostics about the fusion.
type Response struct {
	Results         []Result
	SubQueries      []string
	TotalCandidates int // deduplicated candidates before windowing
	FailedLookups   int
	Took            time.Duration
}

// Searcher provides hybrid search over the dense and sparse indexes.
type Searcher struct {
	index    Index
	expander Expander
	encoder  QueryEncoder
	opts     Options
	logger   *log.Logger
}

// New creates a new hybrid searcher.
func New(index Index, expander Expander, encoder QueryEncoder, opts Options) *Searcher {
	def := DefaultOptions()
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = def.RRFConstant
	}
	if opts.OverFetch < 0 {
		opts.OverFetch = def.OverFetch
	}
	if opts.MaxSubQueries <= 0 || opts.MaxSubQueries > 3 {
		opts.MaxSubQueries = def.MaxSubQueries
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = def.DefaultLimit
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	opts.OverFetch = min(opts.OverFetch, opts.MaxCandidates)
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Searcher{index: index, expander: expander, encoder: encoder, opts: opts, logger: logger}
}

// Search runs expansion, lookups, fusion, deduplication and windowing.
// Expansion or encoding failures fail the call. A failed lookup contributes
// no candidates; the call only fails when every lookup failed.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	// Every term is capped at MaxCandidates first, so k cannot overflow.
	limit = min(limit, s.opts.MaxCandidates)
	offset := min(max(req.Offset, 0), s.opts.MaxCandidates)

	subQueries, err := s.expander.Expand(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}
	if len(subQueries) == 0 {
		return nil, fmt.Errorf("expand query: no sub-queries")
	}
	if len(subQueries) > s.opts.MaxSubQueries {
		subQueries = subQueries[:s.opts.MaxSubQueries]
	}

	vectors, err := s.encoder.Encode(ctx, subQueries)
	if err != nil {
		return nil, fmt.Errorf("embed sub-queries: %w", err)
	}
	if len(vectors) != len(subQueries) {
		return nil, fmt.Errorf("embed sub-queries: got %d vectors for %d queries", len(vectors), len(subQueries))
	}

	k := min(offset+limit+s.opts.OverFetch, s.opts.MaxCandidates)
	lists, failed, firstErr := s.lookup(ctx, subQueries, vectors, k)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(lists) {
		return nil, fmt.Errorf("all %d index lookups failed: %w", failed, firstErr)
	}

	fused := dedupeByISRC(fuseRRF(lists, s.opts.RRFConstant, len(lists)))
	page := window(fused, offset, limit)

	results := make([]Result, len(page))
	for i, c := range page {
		results[i] = Result{
			ISRC:           c.isrc,
			Title:          c.payload.Title,
			Artist:         c.payload.Artist,
			Album:          c.payload.Album,
			Score:          float32(c.score),
			DenseRank:      c.denseRank,
			SparseRank:     c.sparseRank,
			MatchedQueries: c.queries,
			Features:       c.payload.Features,
		}
	}

	return &Response{
		Results:         results,
		SubQueries:      subQueries,
		TotalCandidates: len(fused),
		FailedLookups:   failed,
		Took:            time.Since(start),
	}, nil
}

// lookup issues a dense and a sparse lookup per sub-query concurrently.
// Lists are returned in sub-query order, dense before sparse, so fusion
// tie-breaking does not depend on goroutine scheduling.
func (s *Searcher) lookup(ctx context.Context, subQueries []string, vectors []embedding.Vectors, k int) ([]RankedList, int, error) {
	lists := make([]RankedList, 2*len(subQueries))
	errs := make([]error, len(lists))

	var g errgroup.Group
	for i, q := range subQueries {
		vec := vectors[i]
		dense, sparse := 2*i, 2*i+1
		lists[dense] = RankedList{SubQuery: q, Kind: Dense}
		lists[sparse] = RankedList{SubQuery: q, Kind: Sparse}

		g.Go(func() error {
			hits, err := s.index.DenseSearch(ctx, vec.Dense, k)
			lists[dense].Hits, errs[dense] = hits, err
			return nil
		})
		g.Go(func() error {
			hits, err := s.index.SparseSearch(ctx, vec.Sparse, k)
			lists[sparse].Hits, errs[sparse] = hits, err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		lists[i].Hits = nil
		s.logger.Printf("hybridsearch: %s lookup for %q failed, continuing without it: %v", lists[i].Kind, lists[i].SubQuery, err)
	}
	return lists, failed, firstErr
}
