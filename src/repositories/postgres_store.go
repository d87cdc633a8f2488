package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/khabaroff/apikey-rotator/src/database"
	"github.com/khabaroff/apikey-rotator/src/models"
)

// PostgresStore keeps the pool in PostgreSQL, one row per key
type PostgresStore struct {
	db *database.Database
}

var (
	_ StateStore    = (*PostgresStore)(nil)
	_ HealthChecker = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store on an initialized database
func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads the meta row and all records in pool order inside one read-only transaction
func (s *PostgresStore) Load(ctx context.Context) (*models.KeyPool, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pool := models.NewKeyPool()
	err = tx.QueryRow(ctx, `SELECT version, updated FROM key_pool_meta WHERE id = 1`).Scan(&pool.Version, &pool.Updated)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		pool.Version = models.SchemaVersion
	case err != nil:
		return nil, fmt.Errorf("failed to read pool meta: %w", err)
	case pool.Version > models.SchemaVersion:
		return nil, fmt.Errorf("%w: %d", models.ErrUnsupportedVersion, pool.Version)
	}

	rows, err := tx.Query(ctx, `
		SELECT key_value, name, active, daily_limit, used_today, last_reset
		FROM key_records
		ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query key records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.KeyRecord
		if err := rows.Scan(&rec.Key, &rec.Name, &rec.Active, &rec.DailyLimit, &rec.UsedToday, &rec.LastReset); err != nil {
			return nil, fmt.Errorf("failed to scan key record: %w", err)
		}
		rec.LastReset = rec.LastReset.UTC()
		pool.Keys = append(pool.Keys, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key records: %w", err)
	}

	pool.Updated = pool.Updated.UTC()
	return pool, nil
}

// Save upserts every record and the meta row in one transaction
func (s *PostgresStore) Save(ctx context.Context, pool *models.KeyPool) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, rec := range pool.Keys {
		batch.Queue(`
			INSERT INTO key_records (key_value, position, name, active, daily_limit, used_today, last_reset)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (key_value) DO UPDATE SET
				position = EXCLUDED.position,
				name = EXCLUDED.name,
				active = EXCLUDED.active,
				daily_limit = EXCLUDED.daily_limit,
				used_today = EXCLUDED.used_today,
				last_reset = EXCLUDED.last_reset`,
			rec.Key, i, rec.Name, rec.Active, rec.DailyLimit, rec.UsedToday, rec.LastReset.UTC(),
		)
	}
	batch.Queue(`
		INSERT INTO key_pool_meta (id, version, updated) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated = EXCLUDED.updated`,
		models.SchemaVersion, pool.Updated.UTC(),
	)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write key pool: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit key pool: %w", err)
	}
	return nil
}

// Health pings the database
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
