package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/algojuke/discovery/pkg/isrc"
)

// PgVectorStore implements Store backed by Postgres + pgvector. Dense vectors
// live in a vector(dim) column, sparse term weights in a sparsevec(vocab) column.
// The schema is owned by the migrations in /migrations.
type PgVectorStore struct {
	db        *sql.DB
	dimension int
	vocabSize int
}

// NewPgVectorStoreFromDB reuses an existing *sql.DB (for example via pgxpool/stdlib).
func NewPgVectorStoreFromDB(db *sql.DB, dimension, vocabSize int) (*PgVectorStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if vocabSize <= 0 {
		return nil, errors.New("sparse vocabulary size must be positive")
	}
	return &PgVectorStore{db: db, dimension: dimension, vocabSize: vocabSize}, nil
}

func (s *PgVectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DenseSearch performs cosine similarity search.
func (s *PgVectorStore) DenseSearch(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	embLit, err := toVectorLiteral(embedding, s.dimension)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, isrc, 1 - (dense <=> $1::vector) AS score, payload
FROM track_vectors
WHERE dense IS NOT NULL
ORDER BY dense <=> $1::vector
LIMIT $2`, embLit, k)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return scanHits(rows)
}

// SparseSearch ranks by inner product between the query and stored term weights.
// pgvector's <#> operator returns the negated inner product.
func (s *PgVectorStore) SparseSearch(ctx context.Context, sparse SparseVector, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	if sparse.Len() == 0 {
		return nil, nil
	}
	lit, err := toSparseLiteral(sparse, s.vocabSize)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, isrc, (sparse <#> $1::sparsevec) * -1 AS score, payload
FROM track_vectors
WHERE sparse IS NOT NULL
ORDER BY sparse <#> $1::sparsevec
LIMIT $2`, lit, k)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	return scanHits(rows)
}

// ExistingISRCs looks documents up by their derived keys, so no secondary
// index on the ISRC column is needed.
func (s *PgVectorStore) ExistingISRCs(ctx context.Context, isrcs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(isrcs))
	if len(isrcs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT isrc FROM track_vectors WHERE id = ANY($1::uuid[])`, pq.Array(documentIDs(isrcs)))
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = true
	}
	return out, rows.Err()
}

// GetByISRCs fetches stored payloads keyed by normalised ISRC.
func (s *PgVectorStore) GetByISRCs(ctx context.Context, isrcs []string) (map[string]TrackPayload, error) {
	out := make(map[string]TrackPayload, len(isrcs))
	if len(isrcs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT isrc, payload FROM track_vectors WHERE id = ANY($1::uuid[])`, pq.Array(documentIDs(isrcs)))
	if err != nil {
		return nil, fmt.Errorf("fetch payloads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code     string
			metaJSON []byte
		)
		if err := rows.Scan(&code, &metaJSON); err != nil {
			return nil, err
		}
		var p TrackPayload
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &p); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", code, err)
			}
		}
		out[code] = p
	}
	return out, rows.Err()
}

// Upsert inserts or updates documents with their vectors.
func (s *PgVectorStore) Upsert(ctx context.Context, docs []TrackDocument) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO track_vectors (id, isrc, dense, sparse, payload, updated_at)
VALUES ($1, $2, $3::vector, $4::sparsevec, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  isrc=EXCLUDED.isrc,
  dense=EXCLUDED.dense,
  sparse=EXCLUDED.sparse,
  payload=EXCLUDED.payload,
  updated_at=EXCLUDED.updated_at`

	for _, d := range docs {
		code := isrc.Normalize(d.ISRC)
		if !isrc.Valid(code) {
			return fmt.Errorf("upsert: %q: %w", d.ISRC, isrc.ErrInvalid)
		}
		id := isrc.DocumentID(code)
		if d.ID != uuid.Nil && d.ID != id {
			return fmt.Errorf("upsert: document id %s does not match key derived from %s", d.ID, code)
		}
		embLit, err := toVectorLiteral(d.Dense, s.dimension)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", code, err)
		}
		sparseLit, err := toSparseLiteral(d.Sparse, s.vocabSize)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", code, err)
		}
		payload := d.Payload
		payload.ISRC = code
		metaBytes, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, id, code, embLit, sparseLit, metaBytes, time.Now().UTC()); err != nil {
			return fmt.Errorf("upsert %s: %w", code, err)
		}
	}
	return tx.Commit()
}

func scanHits(rows *sql.Rows) ([]Hit, error) {
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var (
			h        Hit
			metaJSON []byte
		)
		if err := rows.Scan(&h.ID, &h.ISRC, &h.Score, &metaJSON); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &h.Payload); err != nil {
				// A malformed payload should not drop the candidate; ranking only needs the ISRC.
				h.Payload = TrackPayload{ISRC: h.ISRC}
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func documentIDs(isrcs []string) []string {
	ids := make([]string, 0, len(isrcs))
	for _, code := range isrcs {
		ids = append(ids, isrc.DocumentID(code).String())
	}
	return ids
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// toSparseLiteral renders pgvector's sparsevec text form: {i:v,...}/dim with
// one-based indices.
func toSparseLiteral(v SparseVector, dim int) (string, error) {
	if len(v.Indices) != len(v.Values) {
		return "", fmt.Errorf("sparse vector has %d indices but %d values", len(v.Indices), len(v.Values))
	}
	parts := make([]string, len(v.Indices))
	for i, idx := range v.Indices {
		if int(idx) >= dim {
			return "", fmt.Errorf("sparse index %d exceeds vocabulary size %d", idx, dim)
		}
		parts[i] = strconv.FormatUint(uint64(idx)+1, 10) + ":" + strconv.FormatFloat(float64(v.Values[i]), 'f', -1, 32)
	}
	return "{" + strings.Join(parts, ",") + "}/" + strconv.Itoa(dim), nil
}

var _ Store = (*PgVectorStore)(nil)
