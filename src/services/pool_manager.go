package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khabaroff/apikey-rotator/src/logging"
	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/khabaroff/apikey-rotator/src/repositories"
	"github.com/rs/zerolog"
)

// DefaultStoreTimeout bounds every load and save against the state store
const DefaultStoreTimeout = 5 * time.Second

// Selection is the result of SelectKey
type Selection struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Remaining   int       `json:"remaining"`
	TotalActive int       `json:"totalKeys"`
	Timestamp   time.Time `json:"timestamp"`
}

// Usage is the result of ConfirmUsage
type Usage struct {
	UsedToday int `json:"usedToday"`
	Remaining int `json:"remaining"`
}

// FailureAck is the result of ReportFailure
type FailureAck struct {
	Acknowledged bool `json:"acknowledged"`
	WillRotate   bool `json:"willRotate"`
}

// KeyStatus is the admin view of a single record
type KeyStatus struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	DailyLimit int       `json:"dailyLimit"`
	UsedToday  int       `json:"usedToday"`
	Remaining  int       `json:"remaining"`
	LastReset  time.Time `json:"lastReset"`
}

// PoolManager selects keys and accounts for their daily usage.
// Every operation is one load-modify-save cycle serialized by mu.
type PoolManager struct {
	mu           sync.Mutex
	store        repositories.StateStore
	now          func() time.Time
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// ManagerOption configures PoolManager
type ManagerOption func(*PoolManager)

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) ManagerOption {
	return func(m *PoolManager) { m.now = now }
}

// WithStoreTimeout sets the per-call deadline for store access
func WithStoreTimeout(d time.Duration) ManagerOption {
	return func(m *PoolManager) {
		if d > 0 {
			m.storeTimeout = d
		}
	}
}

// NewPoolManager creates a new pool manager backed by store
func NewPoolManager(store repositories.StateStore, opts ...ManagerOption) *PoolManager {
	m := &PoolManager{
		store:        store,
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
		logger:       logging.NewLogger("pool_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SelectKey returns the active key with the lowest usage that is still under quota.
// Usage is not incremented; callers confirm actual use with ConfirmUsage.
func (m *PoolManager) SelectKey(ctx context.Context) (*Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	chosen, dirty := leastUsed(pool, now)

	if dirty {
		if err := m.save(ctx, pool, now); err != nil {
			return nil, err
		}
	}

	if chosen == nil {
		retryAfter := nextMidnightUTC(now)
		m.logger.Warn().
			Int("total_keys", len(pool.Keys)).
			Time("retry_after", retryAfter).
			Msg("all API keys exhausted")
		return nil, &ExhaustedError{RetryAfter: retryAfter}
	}

	m.logger.Info().
		Str("key", chosen.MaskedKey()).
		Str("name", chosen.Name).
		Msgf("provided key: %s (%d/%d)", chosen.Name, chosen.UsedToday, chosen.DailyLimit)

	return &Selection{
		Key:         chosen.Key,
		Name:        chosen.Name,
		Remaining:   chosen.DailyLimit - chosen.UsedToday,
		TotalActive: pool.ActiveCount(),
		Timestamp:   now,
	}, nil
}

// SelectAndConsume selects like SelectKey and records one use of the chosen key
// in the same cycle. It serves clients that have no confirm step.
func (m *PoolManager) SelectAndConsume(ctx context.Context) (*Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	chosen, dirty := leastUsed(pool, now)
	if chosen == nil {
		if dirty {
			if err := m.save(ctx, pool, now); err != nil {
				return nil, err
			}
		}
		retryAfter := nextMidnightUTC(now)
		m.logger.Warn().
			Int("total_keys", len(pool.Keys)).
			Time("retry_after", retryAfter).
			Msg("all API keys exhausted")
		return nil, &ExhaustedError{RetryAfter: retryAfter}
	}

	chosen.UsedToday++
	if err := m.save(ctx, pool, now); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("key", chosen.MaskedKey()).
		Str("name", chosen.Name).
		Msgf("provided and consumed key: %s (%d/%d)", chosen.Name, chosen.UsedToday, chosen.DailyLimit)

	return &Selection{
		Key:         chosen.Key,
		Name:        chosen.Name,
		Remaining:   chosen.Remaining(),
		TotalActive: pool.ActiveCount(),
		Timestamp:   now,
	}, nil
}

// ConfirmUsage records one use of key against its daily quota
func (m *PoolManager) ConfirmUsage(ctx context.Context, key string) (*Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	rec := pool.Find(key)
	if rec == nil {
		return nil, ErrKeyNotFound
	}

	rec.ResetIfNeeded(now)
	if rec.UsedToday >= rec.DailyLimit {
		m.logger.Warn().
			Str("key", rec.MaskedKey()).
			Int("used_today", rec.UsedToday).
			Int("daily_limit", rec.DailyLimit).
			Msg("usage confirmed for exhausted key")
		return nil, ErrQuotaAlreadyExhausted
	}

	rec.UsedToday++
	if err := m.save(ctx, pool, now); err != nil {
		return nil, err
	}

	m.logger.Debug().
		Str("key", rec.MaskedKey()).
		Int("used_today", rec.UsedToday).
		Int("daily_limit", rec.DailyLimit).
		Msg("usage confirmed")

	return &Usage{
		UsedToday: rec.UsedToday,
		Remaining: rec.Remaining(),
	}, nil
}

// ReportFailure marks key as exhausted until the next UTC day.
// Repeated reports for an already exhausted key do not write to the store.
func (m *PoolManager) ReportFailure(ctx context.Context, key string) (*FailureAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	rec := pool.Find(key)
	if rec == nil {
		return nil, ErrKeyNotFound
	}

	dirty := rec.ResetIfNeeded(now)
	if rec.UsedToday != rec.DailyLimit {
		rec.UsedToday = rec.DailyLimit
		dirty = true
	}

	if dirty {
		if err := m.save(ctx, pool, now); err != nil {
			return nil, err
		}
		m.logger.Warn().
			Str("key", rec.MaskedKey()).
			Msgf("key %q marked as exhausted", rec.Name)
	}

	return &FailureAck{Acknowledged: true, WillRotate: true}, nil
}

// ListKeys returns every record with masked keys.
// Usage is shown as of today without persisting pending resets.
func (m *PoolManager) ListKeys(ctx context.Context) ([]KeyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]KeyStatus, 0, len(pool.Keys))
	for i := range pool.Keys {
		rec := pool.Keys[i]
		rec.ResetIfNeeded(now)
		statuses = append(statuses, KeyStatus{
			Key:        rec.MaskedKey(),
			Name:       rec.Name,
			Active:     rec.Active,
			DailyLimit: rec.DailyLimit,
			UsedToday:  rec.UsedToday,
			Remaining:  rec.Remaining(),
			LastReset:  rec.LastReset,
		})
	}
	return statuses, nil
}

// SetKeyActive activates or deactivates key
func (m *PoolManager) SetKeyActive(ctx context.Context, key string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pool, err := m.load(ctx)
	if err != nil {
		return err
	}

	rec := pool.Find(key)
	if rec == nil {
		return ErrKeyNotFound
	}
	if rec.Active == active {
		return nil
	}

	rec.Active = active
	if err := m.save(ctx, pool, now); err != nil {
		return err
	}

	m.logger.Info().
		Str("key", rec.MaskedKey()).
		Bool("active", active).
		Msg("key status changed")
	return nil
}

// Health probes the state store
func (m *PoolManager) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if hc, ok := m.store.(repositories.HealthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	if _, err := m.store.Load(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// leastUsed applies pending daily resets to active records and returns the
// active record with the lowest usage under its limit, or nil. dirty reports
// whether any reset changed the pool.
func leastUsed(pool *models.KeyPool, now time.Time) (chosen *models.KeyRecord, dirty bool) {
	for i := range pool.Keys {
		rec := &pool.Keys[i]
		if !rec.Active {
			continue
		}
		if rec.ResetIfNeeded(now) {
			dirty = true
		}
		if rec.UsedToday >= rec.DailyLimit {
			continue
		}
		// strict comparison keeps the first record on ties
		if chosen == nil || rec.UsedToday < chosen.UsedToday {
			chosen = rec
		}
	}
	return chosen, dirty
}

// load reads the pool under the store deadline
func (m *PoolManager) load(ctx context.Context) (*models.KeyPool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	pool, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to load key pool")
		return nil, fmt.Errorf("%w: load: %v", ErrStoreUnavailable, err)
	}
	if pool == nil {
		pool = models.NewKeyPool()
	}
	return pool, nil
}

// save writes the pool under the store deadline
func (m *PoolManager) save(ctx context.Context, pool *models.KeyPool, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	pool.Version = models.SchemaVersion
	pool.Updated = now
	if err := m.store.Save(ctx, pool); err != nil {
		m.logger.Error().Err(err).Msg("failed to save key pool")
		return fmt.Errorf("%w: save: %v", ErrStoreUnavailable, err)
	}
	return nil
}
