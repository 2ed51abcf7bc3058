package agenttools

import (
	"context"
	"errors"
	"fmt"

	"github.com/algojuke/discovery/pkg/catalogue"
	"github.com/algojuke/discovery/pkg/hybridsearch"
	"github.com/algojuke/discovery/pkg/isrc"
	"github.com/algojuke/discovery/pkg/toolexec"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

var errNotConfigured = errors.New("tool dependency not configured")

// =============================================================================
// SEMANTIC SEARCH
// =============================================================================

type SemanticSearchOutput struct {
	Results    []hybridsearch.Result `json:"results"`
	SubQueries []string              `json:"subQueries"`
	TotalFound int                   `json:"totalFound"`
	Offset     int                   `json:"offset"`
}

func (t *Tools) semanticSearch(ctx context.Context, in SemanticSearchInput) (SemanticSearchOutput, error) {
	if t.deps.Retriever == nil {
		return SemanticSearchOutput{}, toolexec.WithRetryable(errNotConfigured, false)
	}
	resp, err := t.deps.Retriever.Search(ctx, hybridsearch.Request{
		Query:  in.Query,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return SemanticSearchOutput{}, err
	}
	results := resp.Results
	if results == nil {
		results = []hybridsearch.Result{}
	}
	return SemanticSearchOutput{
		Results:    results,
		SubQueries: resp.SubQueries,
		TotalFound: resp.TotalCandidates,
		Offset:     in.Offset,
	}, nil
}

// =============================================================================
// CATALOGUE SEARCH
// =============================================================================

type CatalogueTrack struct {
	catalogue.Track
	InLibrary bool `json:"inLibrary"`
	Indexed   bool `json:"indexed"`
}

type CatalogueAlbum struct {
	catalogue.Album
	InLibrary bool `json:"inLibrary"`
}

type CatalogueSearchOutput struct {
	Tracks []CatalogueTrack `json:"tracks"`
	Albums []CatalogueAlbum `json:"albums"`
}

// catalogueSearch forwards the query and annotates results. Annotation
// lookups fail open: an error leaves every flag false.
func (t *Tools) catalogueSearch(ctx context.Context, in CatalogueSearchInput) (CatalogueSearchOutput, error) {
	if t.deps.Catalogue == nil {
		return CatalogueSearchOutput{}, toolexec.WithRetryable(errNotConfigured, false)
	}
	resp, err := t.deps.Catalogue.Search(ctx, catalogue.SearchRequest{
		Query: in.Query,
		Type:  in.SearchType,
		Limit: in.Limit,
	})
	if err != nil {
		return CatalogueSearchOutput{}, err
	}

	isrcs := make([]string, 0, len(resp.Tracks))
	for _, tr := range resp.Tracks {
		if tr.ISRC != "" {
			isrcs = append(isrcs, tr.ISRC)
		}
	}
	albumIDs := make([]string, 0, len(resp.Albums))
	for _, al := range resp.Albums {
		albumIDs = append(albumIDs, al.CatalogID)
	}

	userID := t.userID(ctx)
	savedTracks, savedAlbums := map[string]bool{}, map[string]bool{}
	if t.deps.Library != nil && userID != "" {
		if len(isrcs) > 0 {
			savedTracks = toolexec.FailOpen(ctx, t.logger(), "library track lookup", map[string]bool{},
				func(ctx context.Context) (map[string]bool, error) {
					return t.deps.Library.TracksInLibrary(ctx, userID, isrcs)
				})
		}
		if len(albumIDs) > 0 {
			savedAlbums = toolexec.FailOpen(ctx, t.logger(), "library album lookup", map[string]bool{},
				func(ctx context.Context) (map[string]bool, error) {
					return t.deps.Library.AlbumsInLibrary(ctx, userID, albumIDs)
				})
		}
	}
	indexed := map[string]bool{}
	if t.deps.Index != nil && len(isrcs) > 0 {
		indexed = toolexec.FailOpen(ctx, t.logger(), "index existence lookup", map[string]bool{},
			func(ctx context.Context) (map[string]bool, error) {
				return t.deps.Index.ExistingISRCs(ctx, dedupeISRCs(isrcs))
			})
	}

	out := CatalogueSearchOutput{
		Tracks: make([]CatalogueTrack, 0, len(resp.Tracks)),
		Albums: make([]CatalogueAlbum, 0, len(resp.Albums)),
	}
	for _, tr := range resp.Tracks {
		code := isrc.Normalize(tr.ISRC)
		out.Tracks = append(out.Tracks, CatalogueTrack{
			Track:     tr,
			InLibrary: savedTracks[code],
			Indexed:   indexed[code],
		})
	}
	for _, al := range resp.Albums {
		out.Albums = append(out.Albums, CatalogueAlbum{Album: al, InLibrary: savedAlbums[al.CatalogID]})
	}
	return out, nil
}

// =============================================================================
// BATCH METADATA
// =============================================================================

type BatchMetadataOutput struct {
	Found    []vectorstore.TrackPayload `json:"found"`
	NotFound []string                   `json:"notFound"`
}

func (t *Tools) batchMetadata(ctx context.Context, in BatchMetadataInput) (BatchMetadataOutput, error) {
	codes := in.normalized()
	out := BatchMetadataOutput{Found: []vectorstore.TrackPayload{}, NotFound: []string{}}
	if len(codes) == 0 {
		return out, nil
	}
	if t.deps.Index == nil {
		return out, toolexec.WithRetryable(errNotConfigured, false)
	}
	payloads, err := t.deps.Index.GetByISRCs(ctx, codes)
	if err != nil {
		return BatchMetadataOutput{}, fmt.Errorf("fetch metadata: %w", err)
	}
	for _, code := range codes {
		p, ok := payloads[code]
		if !ok {
			out.NotFound = append(out.NotFound, code)
			continue
		}
		if p.ISRC == "" {
			p.ISRC = code
		}
		out.Found = append(out.Found, p)
	}
	return out, nil
}

// =============================================================================
// PLAYLIST SUGGESTION
// =============================================================================

type PlaylistTrack struct {
	ISRC      string                     `json:"isrc"`
	Reasoning string                     `json:"reasoning"`
	Title     string                     `json:"title,omitempty"`
	Artist    string                     `json:"artist,omitempty"`
	Album     string                     `json:"album,omitempty"`
	Features  *vectorstore.AudioFeatures `json:"features,omitempty"`
	Enriched  bool                       `json:"enriched"`
}

type SuggestPlaylistOutput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Tracks      []PlaylistTrack `json:"tracks"`
}

// suggestPlaylist presents the playlist with index metadata attached. Missing
// metadata leaves the entry un-enriched rather than failing the call.
func (t *Tools) suggestPlaylist(ctx context.Context, in SuggestPlaylistInput) (SuggestPlaylistOutput, error) {
	codes := make([]string, len(in.Tracks))
	for i, tr := range in.Tracks {
		codes[i] = isrc.Normalize(tr.ISRC)
	}

	meta := map[string]vectorstore.TrackPayload{}
	if t.deps.Index != nil {
		meta = toolexec.FailOpen(ctx, t.logger(), "playlist metadata lookup", meta,
			func(ctx context.Context) (map[string]vectorstore.TrackPayload, error) {
				return t.deps.Index.GetByISRCs(ctx, dedupeISRCs(codes))
			})
	}

	out := SuggestPlaylistOutput{
		Title:       in.Title,
		Description: in.Description,
		Tracks:      make([]PlaylistTrack, 0, len(in.Tracks)),
	}
	for i, tr := range in.Tracks {
		entry := PlaylistTrack{ISRC: codes[i], Reasoning: tr.Reasoning}
		if p, ok := meta[codes[i]]; ok {
			entry.Title = p.Title
			entry.Artist = p.Artist
			entry.Album = p.Album
			entry.Features = p.Features
			entry.Enriched = true
		}
		out.Tracks = append(out.Tracks, entry)
	}
	return out, nil
}
