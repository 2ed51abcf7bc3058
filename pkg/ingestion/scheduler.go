// Package ingestion decides whether a track needs enrichment and dispatches
// one enrichment event per track that is not yet in the index.
package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/algojuke/discovery/pkg/vectorstore"

	"github.com/algojuke/discovery/pkg/isrc"
)

// Reason explains why a track was not scheduled.
type Reason string

const (
	ReasonMissingISRC    Reason = "missing_isrc"
	ReasonInvalidISRC    Reason = "invalid_isrc"
	ReasonAlreadyIndexed Reason = "already_indexed"
	// ReasonDispatchError keeps the wire value existing callers already match on.
	ReasonDispatchError Reason = "inngest_error"
)

// Track is the scheduling input for one recording.
type Track struct {
	ISRC   string `json:"isrc"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`

	// Optional analysis results, stored with the indexed document when known.
	Interpretation string                     `json:"interpretation,omitempty"`
	Features       *vectorstore.AudioFeatures `json:"features,omitempty"`
}

// Album is a batch of tracks added together.
type Album struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Tracks []Track `json:"tracks"`
}

// TrackResult is the per-track outcome. A missing Reason means scheduled.
type TrackResult struct {
	ISRC      string `json:"isrc"`
	Scheduled bool   `json:"scheduled"`
	Reason    Reason `json:"reason,omitempty"`
	EventID   string `json:"eventId,omitempty"`
}

// AlbumResult aggregates per-track outcomes. ScheduledCount+SkippedCount
// always equals TotalTracks.
type AlbumResult struct {
	TotalTracks    int           `json:"totalTracks"`
	ScheduledCount int           `json:"scheduledCount"`
	SkippedCount   int           `json:"skippedCount"`
	Results        []TrackResult `json:"results"`
}

// ExistenceChecker answers "which of these ISRCs are indexed" in one round trip.
type ExistenceChecker interface {
	ExistingISRCs(ctx context.Context, isrcs []string) (map[string]bool, error)
}

// Scheduler validates tracks, checks the index and publishes enrichment events.
type Scheduler struct {
	index     ExistenceChecker
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for degradations and dispatch failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler.
func NewScheduler(index ExistenceChecker, publisher Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		index:     index,
		publisher: publisher,
		logger:    log.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleTrack schedules enrichment for a single track. It never returns an
// error: every failure is reported in the result.
func (s *Scheduler) ScheduleTrack(ctx context.Context, t Track) TrackResult {
	code, reason := validate(t.ISRC)
	if reason != "" {
		return TrackResult{ISRC: code, Reason: reason}
	}
	indexed := s.existing(ctx, []string{code})
	return s.dispatch(ctx, t, code, indexed[code])
}

// ScheduleAlbumTracks schedules every track of an album independently, in
// order. One track's failure never stops its siblings.
func (s *Scheduler) ScheduleAlbumTracks(ctx context.Context, a Album) AlbumResult {
	res := AlbumResult{TotalTracks: len(a.Tracks), Results: make([]TrackResult, 0, len(a.Tracks))}

	codes := make([]string, len(a.Tracks))
	reasons := make([]Reason, len(a.Tracks))
	var valid []string
	for i, t := range a.Tracks {
		codes[i], reasons[i] = validate(t.ISRC)
		if reasons[i] == "" {
			valid = append(valid, codes[i])
		}
	}

	var indexed map[string]bool
	if len(valid) > 0 {
		indexed = s.existing(ctx, valid)
	}

	for i, t := range a.Tracks {
		if t.Album == "" {
			t.Album = a.Title
		}
		if t.Artist == "" {
			t.Artist = a.Artist
		}
		var r TrackResult
		if reasons[i] != "" {
			r = TrackResult{ISRC: codes[i], Reason: reasons[i]}
		} else {
			r = s.dispatch(ctx, t, codes[i], indexed[codes[i]])
		}
		if r.Scheduled {
			res.ScheduledCount++
		} else {
			res.SkippedCount++
		}
		res.Results = append(res.Results, r)
	}

	s.logger.Printf("ingestion: album %q: %d/%d tracks scheduled", a.Title, res.ScheduledCount, res.TotalTracks)
	return res
}

// existing runs the batch existence check. On failure it reports nothing as
// indexed: enrichment is idempotent, so a false negative only costs a redundant job.
func (s *Scheduler) existing(ctx context.Context, codes []string) map[string]bool {
	found, err := s.index.ExistingISRCs(ctx, codes)
	if err != nil {
		s.logger.Printf("ingestion: existence check failed for %d isrc(s), treating all as not indexed: %v", len(codes), err)
		return map[string]bool{}
	}
	if found == nil {
		return map[string]bool{}
	}
	return found
}

func (s *Scheduler) dispatch(ctx context.Context, t Track, code string, indexed bool) TrackResult {
	if indexed {
		return TrackResult{ISRC: code, Reason: ReasonAlreadyIndexed}
	}
	ev := EnrichmentEvent{
		EventID:     s.newID(),
		ISRC:        code,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		RequestedAt: s.now().UTC(),

		Interpretation: t.Interpretation,
		Features:       t.Features,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Printf("ingestion: dispatch failed for %s: %v", code, err)
		return TrackResult{ISRC: code, Reason: ReasonDispatchError}
	}
	return TrackResult{ISRC: code, Scheduled: true, EventID: ev.EventID}
}

func validate(raw string) (string, Reason) {
	code, err := isrc.Parse(raw)
	switch {
	case errors.Is(err, isrc.ErrMissing):
		return "", ReasonMissingISRC
	case err != nil:
		return isrc.Normalize(raw), ReasonInvalidISRC
	}
	return code, ""
}
