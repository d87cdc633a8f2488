package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khabaroff/apikey-rotator/src/models"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS key_records (
	key_value   TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1,
	daily_limit INTEGER NOT NULL CHECK (daily_limit > 0),
	used_today  INTEGER NOT NULL DEFAULT 0 CHECK (used_today >= 0),
	last_reset  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS key_pool_meta (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	updated TEXT NOT NULL
);
`

// SQLiteStore keeps the pool in a SQLite database, one row per key
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ StateStore    = (*SQLiteStore)(nil)
	_ HealthChecker = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at path and applies the schema
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// single writer; database/sql serializes transactions on the one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all records in pool order
func (s *SQLiteStore) Load(ctx context.Context) (*models.KeyPool, error) {
	pool := models.NewKeyPool()

	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT version, updated FROM key_pool_meta WHERE id = 1`).Scan(&pool.Version, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		pool.Version = models.SchemaVersion
	case err != nil:
		return nil, fmt.Errorf("failed to read pool meta: %w", err)
	default:
		if pool.Version > models.SchemaVersion {
			return nil, fmt.Errorf("%w: %d", models.ErrUnsupportedVersion, pool.Version)
		}
		if pool.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("invalid pool updated timestamp: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key_value, name, active, daily_limit, used_today, last_reset
		FROM key_records
		ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query key records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       models.KeyRecord
			lastReset string
		)
		if err := rows.Scan(&rec.Key, &rec.Name, &rec.Active, &rec.DailyLimit, &rec.UsedToday, &lastReset); err != nil {
			return nil, fmt.Errorf("failed to scan key record: %w", err)
		}
		if rec.LastReset, err = time.Parse(time.RFC3339Nano, lastReset); err != nil {
			return nil, fmt.Errorf("invalid last_reset for key %s: %w", rec.MaskedKey(), err)
		}
		pool.Keys = append(pool.Keys, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key records: %w", err)
	}

	return pool, nil
}

// Save upserts every record and the meta row in one transaction.
// Rows missing from pool are left in place; records are never deleted here.
func (s *SQLiteStore) Save(ctx context.Context, pool *models.KeyPool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO key_records (key_value, position, name, active, daily_limit, used_today, last_reset)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key_value) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			active = excluded.active,
			daily_limit = excluded.daily_limit,
			used_today = excluded.used_today,
			last_reset = excluded.last_reset`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range pool.Keys {
		if _, err := stmt.ExecContext(ctx,
			rec.Key, i, rec.Name, rec.Active, rec.DailyLimit, rec.UsedToday,
			rec.LastReset.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to upsert key %s: %w", rec.MaskedKey(), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO key_pool_meta (id, version, updated) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, updated = excluded.updated`,
		models.SchemaVersion, pool.Updated.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to update pool meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pool: %w", err)
	}
	return nil
}

// Health pings the database
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
