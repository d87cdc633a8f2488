package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/khabaroff/apikey-rotator/src/models"
)

// Bootstrap appends seed records whose key is not yet stored.
// Existing records keep their usage and settings. Returns the number of records added.
func Bootstrap(ctx context.Context, store StateStore, seed []models.KeyRecord, now time.Time) (int, error) {
	pool, err := store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pool for bootstrap: %w", err)
	}

	added := 0
	for _, rec := range seed {
		if pool.Find(rec.Key) != nil {
			continue
		}
		if rec.LastReset.IsZero() {
			rec.LastReset = now.UTC()
		}
		pool.Keys = append(pool.Keys, rec)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	pool.Version = models.SchemaVersion
	pool.Updated = now.UTC()
	if err := store.Save(ctx, pool); err != nil {
		return 0, fmt.Errorf("failed to save bootstrapped pool: %w", err)
	}
	return added, nil
}
