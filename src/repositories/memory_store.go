package repositories

import (
	"context"
	"sync"

	"github.com/khabaroff/apikey-rotator/src/models"
)

// MemoryStore keeps the pool in process memory. State is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	pool *models.KeyPool
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store holding a copy of initial (may be nil)
func NewMemoryStore(initial *models.KeyPool) *MemoryStore {
	pool := models.NewKeyPool()
	if initial != nil {
		pool = initial.Clone()
	}
	return &MemoryStore{pool: pool}
}

// Load returns a deep copy of the stored pool
func (s *MemoryStore) Load(ctx context.Context) (*models.KeyPool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Clone(), nil
}

// Save replaces the stored pool with a deep copy of pool
func (s *MemoryStore) Save(ctx context.Context, pool *models.KeyPool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool.Clone()
	return nil
}
