// Package library answers which tracks and albums a user already saved.
package library

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algojuke/discovery/pkg/isrc"
)

// Store looks up library membership. Results only contain keys that are saved.
type Store interface {
	TracksInLibrary(ctx context.Context, userID string, isrcs []string) (map[string]bool, error)
	AlbumsInLibrary(ctx context.Context, userID string, catalogIDs []string) (map[string]bool, error)
	AddTracks(ctx context.Context, userID string, isrcs []string) error
}

type postgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Store over the shared pool.
func NewPostgresStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) TracksInLibrary(ctx context.Context, userID string, isrcs []string) (map[string]bool, error) {
	codes := normalizeAll(isrcs)
	if userID == "" || len(codes) == 0 {
		return map[string]bool{}, nil
	}
	return s.members(ctx, `SELECT isrc FROM library_tracks WHERE user_id = $1 AND isrc = ANY($2)`, userID, codes)
}

func (s *postgresStore) AlbumsInLibrary(ctx context.Context, userID string, catalogIDs []string) (map[string]bool, error) {
	if userID == "" || len(catalogIDs) == 0 {
		return map[string]bool{}, nil
	}
	return s.members(ctx, `SELECT catalog_id FROM library_albums WHERE user_id = $1 AND catalog_id = ANY($2)`, userID, catalogIDs)
}

func (s *postgresStore) members(ctx context.Context, stmt, userID string, keys []string) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, stmt, userID, keys)
	if err != nil {
		return nil, fmt.Errorf("library lookup: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("library lookup: %w", err)
	}
	out := make(map[string]bool, len(found))
	for _, k := range found {
		out[k] = true
	}
	return out, nil
}

func (s *postgresStore) AddTracks(ctx context.Context, userID string, isrcs []string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	batch := &pgx.Batch{}
	for _, code := range normalizeAll(isrcs) {
		batch.Queue(`INSERT INTO library_tracks (user_id, isrc) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, code)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("add library tracks: %w", err)
	}
	return nil
}

// MemoryStore keeps library membership in process. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tracks map[string]map[string]bool
	albums map[string]map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracks: map[string]map[string]bool{},
		albums: map[string]map[string]bool{},
	}
}

func (m *MemoryStore) TracksInLibrary(_ context.Context, userID string, isrcs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.tracks[userID], normalizeAll(isrcs)), nil
}

func (m *MemoryStore) AlbumsInLibrary(_ context.Context, userID string, catalogIDs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.albums[userID], catalogIDs), nil
}

func (m *MemoryStore) AddTracks(_ context.Context, userID string, isrcs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracks[userID] == nil {
		m.tracks[userID] = map[string]bool{}
	}
	for _, code := range normalizeAll(isrcs) {
		m.tracks[userID][code] = true
	}
	return nil
}

// AddAlbums saves albums for a user.
func (m *MemoryStore) AddAlbums(userID string, catalogIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.albums[userID] == nil {
		m.albums[userID] = map[string]bool{}
	}
	for _, id := range catalogIDs {
		m.albums[userID][id] = true
	}
}

func lookup(saved map[string]bool, keys []string) map[string]bool {
	out := map[string]bool{}
	for _, k := range keys {
		if saved[k] {
			out[k] = true
		}
	}
	return out
}

// normalizeAll upper-cases and drops invalid codes; they can never be saved.
func normalizeAll(isrcs []string) []string {
	out := make([]string, 0, len(isrcs))
	for _, raw := range isrcs {
		code := isrc.Normalize(raw)
		if isrc.Valid(code) {
			out = append(out, code)
		}
	}
	return out
}

var (
	_ Store = (*postgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
