package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/khabaroff/apikey-rotator/src/models"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the Redis key holding the pool document
const DefaultRedisKey = "keyrotator:pool"

// RedisStore keeps the pool document under a single Redis key
type RedisStore struct {
	client goredis.Cmdable
	key    string
	sealer Sealer
}

var (
	_ StateStore    = (*RedisStore)(nil)
	_ HealthChecker = (*RedisStore)(nil)
)

// RedisOption configures RedisStore
type RedisOption func(*RedisStore)

// WithRedisKey sets the Redis key (default "keyrotator:pool")
func WithRedisKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithRedisSealer encrypts the document before it is written
func WithRedisSealer(sealer Sealer) RedisOption {
	return func(s *RedisStore) {
		if sealer != nil {
			s.sealer = sealer
		}
	}
}

// NewRedisStore creates a Redis-backed store.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func NewRedisStore(client goredis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    DefaultRedisKey,
		sealer: plainSealer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the document. A missing key is an empty pool.
func (s *RedisStore) Load(ctx context.Context) (*models.KeyPool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return models.NewKeyPool(), nil
		}
		return nil, fmt.Errorf("failed to read pool from redis: %w", err)
	}

	plain, err := s.sealer.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt pool: %w", err)
	}
	return models.DecodePool(plain)
}

// Save writes the document with no expiry
func (s *RedisStore) Save(ctx context.Context, pool *models.KeyPool) error {
	data, err := models.EncodePool(pool)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt pool: %w", err)
	}

	if err := s.client.Set(ctx, s.key, sealed, 0).Err(); err != nil {
		return fmt.Errorf("failed to write pool to redis: %w", err)
	}
	return nil
}

// Health pings Redis
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
