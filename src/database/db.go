package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Schema creates the tables used by the PostgreSQL state store
const Schema = `
CREATE TABLE IF NOT EXISTS key_records (
	key_value   TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	daily_limit INTEGER NOT NULL CHECK (daily_limit > 0),
	used_today  INTEGER NOT NULL DEFAULT 0 CHECK (used_today >= 0),
	last_reset  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS key_pool_meta (
	id      SMALLINT PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	updated TIMESTAMPTZ NOT NULL
);
`

// Database holds the PostgreSQL connection pool
type Database struct {
	pool *pgxpool.Pool
}

// New creates a new database connection and applies the schema
func New(ctx context.Context, databaseURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Every operation is serialized by the pool manager; a small pool is enough
	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &Database{pool: pool}

	if err := db.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// NewDatabaseFromPool creates a Database instance from an existing pool
func NewDatabaseFromPool(pool *pgxpool.Pool) *Database {
	return &Database{pool: pool}
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// initializeSchema executes Schema
func (db *Database) initializeSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	log.Info().Str("component", "database").Msg("database schema initialized")
	return nil
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return fmt.Errorf("database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.pool.Ping(ctx)
}

// BeginTx starts a transaction
func (db *Database) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("database connection not initialized")
	}
	return db.pool.Begin(ctx)
}
