package repositories

import (
	"context"
	"fmt"

	"github.com/khabaroff/apikey-rotator/src/database"
	"github.com/khabaroff/apikey-rotator/src/models"
	goredis "github.com/redis/go-redis/v9"
)

// Options selects and configures a state store backend
type Options struct {
	Backend     models.StoreBackend
	Path        string // file and sqlite
	DatabaseURL string // postgres
	RedisURL    string // redis
	RedisKey    string
	Sealer      Sealer // file and redis documents
}

// CloseFunc releases resources held by a store
type CloseFunc func() error

// Open creates the store selected by opts.Backend
func Open(ctx context.Context, opts Options) (StateStore, CloseFunc, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case models.StoreMemory:
		return NewMemoryStore(nil), noop, nil

	case models.StoreFile, "":
		store, err := NewFileStore(opts.Path, opts.Sealer)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case models.StoreSQLite:
		store, err := NewSQLiteStore(ctx, opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case models.StorePostgres:
		db, err := database.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresStore(db)
		return store, store.Close, nil

	case models.StoreRedis:
		redisOpts, err := goredis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client := goredis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := NewRedisStore(client, WithRedisKey(opts.RedisKey), WithRedisSealer(opts.Sealer))
		return store, client.Close, nil
	}

	return nil, nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
}
