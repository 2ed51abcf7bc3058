package enrichment

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/algojuke/discovery/pkg/embedding"
	"github.com/algojuke/discovery/pkg/ingestion"
	"github.com/algojuke/discovery/pkg/isrc"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

const errTypeInvalidTrack = "InvalidTrack"

// Upserter writes index documents.
type Upserter interface {
	Upsert(ctx context.Context, docs []vectorstore.TrackDocument) error
}

// Encoder produces the dense and sparse vectors for document text.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([]embedding.Vectors, error)
}

// Result summarises one indexed track.
type Result struct {
	ISRC        string `json:"isrc"`
	DocumentID  string `json:"documentId"`
	SparseTerms int    `json:"sparseTerms"`
}

// Activities holds the enrichment activities.
type Activities struct {
	store   Upserter
	encoder Encoder
}

// NewActivities creates a new Activities instance.
func NewActivities(store Upserter, encoder Encoder) *Activities {
	return &Activities{store: store, encoder: encoder}
}

// EnrichTrack builds the document text, embeds it and upserts the document.
func (a *Activities) EnrichTrack(ctx context.Context, ev ingestion.EnrichmentEvent) (*Result, error) {
	logger := activity.GetLogger(ctx)

	code, err := isrc.Parse(ev.ISRC)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(fmt.Sprintf("track %q: %v", ev.ISRC, err), errTypeInvalidTrack, err)
	}

	text := DocumentText(ev)
	vecs, err := a.encoder.Encode(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", code, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed %s: expected 1 vector set, got %d", code, len(vecs))
	}

	doc := vectorstore.TrackDocument{
		ID:     isrc.DocumentID(code),
		ISRC:   code,
		Dense:  vecs[0].Dense,
		Sparse: vecs[0].Sparse,
		Payload: vectorstore.TrackPayload{
			ISRC:   code,
			Title:  ev.Title,
			Artist: ev.Artist,
			Album:  ev.Album,

			Interpretation: strings.TrimSpace(ev.Interpretation),
			Features:       ev.Features,
		},
	}
	if err := a.store.Upsert(ctx, []vectorstore.TrackDocument{doc}); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", code, err)
	}

	logger.Info("upserted track document", "isrc", code, "sparseTerms", doc.Sparse.Len())
	return &Result{ISRC: code, DocumentID: doc.ID.String(), SparseTerms: doc.Sparse.Len()}, nil
}

// DocumentText is the text both encoders see for a track. The interpretation
// is appended so searches can match on what a song is about.
func DocumentText(ev ingestion.EnrichmentEvent) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(ev.Title))
	if artist := strings.TrimSpace(ev.Artist); artist != "" {
		b.WriteString(" by ")
		b.WriteString(artist)
	}
	if album := strings.TrimSpace(ev.Album); album != "" {
		b.WriteString(" from the album ")
		b.WriteString(album)
	}
	if interp := strings.TrimSpace(ev.Interpretation); interp != "" {
		b.WriteString(". ")
		b.WriteString(interp)
	}
	return b.String()
}
