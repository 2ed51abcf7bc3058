// Package wiring builds the components shared by the discovery binaries from
// a loaded configuration.
package wiring

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/algojuke/discovery/internal/config"
	"github.com/algojuke/discovery/internal/database"
	"github.com/algojuke/discovery/internal/httpclient"
	"github.com/algojuke/discovery/pkg/embedding"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

// OpenIndex connects to Postgres, applies migrations and returns the vector
// store over the shared pool. The caller closes the returned client.
func OpenIndex(ctx context.Context, cfg *config.Config) (*database.Client, *vectorstore.PgVectorStore, error) {
	db, err := database.NewClient(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.MigrationsPath != "" {
		if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	store, err := vectorstore.NewPgVectorStoreFromDB(db.DB(), cfg.Database.VectorDim, cfg.Database.SparseVocab)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("vector store: %w", err)
	}
	return db, store, nil
}

// NewEncoder builds the dense+sparse encoder shared by query time and
// enrichment, so both sides produce comparable vectors.
func NewEncoder(cfg *config.Config) (*embedding.Encoder, error) {
	sparse := embedding.NewSparseEncoder(cfg.Database.SparseVocab)
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "local":
		log.Printf("Using local hashing embeddings (dim=%d)", cfg.Database.VectorDim)
		return embedding.NewEncoder(embedding.NewLocalProvider(cfg.Database.VectorDim), sparse), nil
	case "openai", "":
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for openai embeddings")
		}
		client := httpclient.New(httpclient.Config{
			BaseURL:     cfg.Embedding.BaseURL,
			BearerToken: cfg.Embedding.APIKey,
		})
		return embedding.NewEncoder(embedding.NewOpenAIProvider(client, cfg.Embedding.Model, cfg.Database.VectorDim), sparse), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}
