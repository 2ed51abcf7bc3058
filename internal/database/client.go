// Package database provides the PostgreSQL pool shared by the vector store and
// the library store, plus schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Client wraps the connection pool. Pool serves pgx-native callers; DB is a
// database/sql view over the same pool for code written against *sql.DB.
type Client struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewClient creates a new database client connected to the given PostgreSQL URL.
func NewClient(ctx context.Context, databaseURL string, maxConns int) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool, db: stdlib.OpenDBFromPool(pool)}, nil
}

// Pool returns the pgx pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// DB returns the *sql.DB bridge for custom queries.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the bridge and the pool.
func (c *Client) Close() error {
	err := c.db.Close()
	c.pool.Close()
	return err
}

// Migrate runs database migrations from the given path.
func (c *Client) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(c.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
