package mock

import (
	"context"
	"sync"

	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/khabaroff/apikey-rotator/src/repositories"
)

// StateStore is a mock implementation of repositories.StateStore.
// Without stubs it behaves like an in-memory store seeded with Pool.
type StateStore struct {
	// Function stubs that can be overridden in tests
	LoadFunc func(ctx context.Context) (*models.KeyPool, error)
	SaveFunc func(ctx context.Context, pool *models.KeyPool) error

	// Pool is the state served when no stub is set
	Pool *models.KeyPool

	// Call tracking
	mu    sync.Mutex
	Calls map[string][]interface{}
}

// NewStateStore creates a new mock state store holding a copy of pool
func NewStateStore(pool *models.KeyPool) *StateStore {
	if pool == nil {
		pool = models.NewKeyPool()
	}
	return &StateStore{
		Pool:  pool.Clone(),
		Calls: make(map[string][]interface{}),
	}
}

func (m *StateStore) Load(ctx context.Context) (*models.KeyPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls["Load"] = append(m.Calls["Load"], nil)
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return m.Pool.Clone(), nil
}

func (m *StateStore) Save(ctx context.Context, pool *models.KeyPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls["Save"] = append(m.Calls["Save"], pool.Clone())
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, pool)
	}
	m.Pool = pool.Clone()
	return nil
}

// CallCount returns how many times method was called
func (m *StateStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls[method])
}

// Ensure StateStore implements the interface
var _ repositories.StateStore = (*StateStore)(nil)
