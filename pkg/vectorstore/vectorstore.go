package vectorstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SparseVector is a weighted set of term indices. Indices are zero-based and
// strictly increasing; Values[i] is the weight of Indices[i].
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Len returns the number of non-zero terms.
func (v SparseVector) Len() int {
	return len(v.Indices)
}

// AudioFeatures mirrors the audio analysis attached to an indexed track.
type AudioFeatures struct {
	Tempo            *float64 `json:"tempo,omitempty"`
	Energy           *float64 `json:"energy,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
	Danceability     *float64 `json:"danceability,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Key              *int     `json:"key,omitempty"`
	Mode             *int     `json:"mode,omitempty"`
}

// TrackPayload holds the display and audio fields stored next to the vectors.
type TrackPayload struct {
	ISRC           string         `json:"isrc"`
	Title          string         `json:"title"`
	Artist         string         `json:"artist"`
	Album          string         `json:"album,omitempty"`
	Interpretation string         `json:"interpretation,omitempty"`
	Features       *AudioFeatures `json:"features,omitempty"`
}

// TrackDocument is the single indexed document for one track.
type TrackDocument struct {
	ID        uuid.UUID
	ISRC      string
	Dense     []float32
	Sparse    SparseVector
	Payload   TrackPayload
	UpdatedAt *time.Time
}

// Hit is one candidate returned by a dense or sparse lookup. Hits are returned
// best first; the position in the slice is the rank.
type Hit struct {
	ID      uuid.UUID
	ISRC    string
	Score   float32
	Payload TrackPayload
}

// Store is the index backend contract used by retrieval, scheduling and enrichment.
type Store interface {
	// DenseSearch returns up to k hits ordered by cosine similarity.
	DenseSearch(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	// SparseSearch returns up to k hits ordered by sparse inner product.
	SparseSearch(ctx context.Context, sparse SparseVector, k int) ([]Hit, error)
	// ExistingISRCs reports which of the given normalised ISRCs are indexed,
	// in a single round trip.
	ExistingISRCs(ctx context.Context, isrcs []string) (map[string]bool, error)
	// GetByISRCs fetches payloads for the given normalised ISRCs.
	GetByISRCs(ctx context.Context, isrcs []string) (map[string]TrackPayload, error)
	// Upsert inserts or replaces documents keyed by their derived ID.
	Upsert(ctx context.Context, docs []TrackDocument) error
	Close() error
}
