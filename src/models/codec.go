package models

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrUnsupportedVersion is returned when a stored document was written by a newer schema
var ErrUnsupportedVersion = errors.New("unsupported pool schema version")

// EncodePool serializes a pool into its persisted JSON document
func EncodePool(pool *KeyPool) ([]byte, error) {
	if pool == nil {
		pool = NewKeyPool()
	}
	if pool.Version == 0 {
		pool.Version = SchemaVersion
	}
	data, err := sonic.Marshal(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key pool: %w", err)
	}
	return data, nil
}

// DecodePool parses a persisted JSON document.
// Documents without a version tag predate versioning and are read as version 1.
func DecodePool(data []byte) (*KeyPool, error) {
	pool := NewKeyPool()
	if len(data) == 0 {
		return pool, nil
	}

	pool.Version = 0
	if err := sonic.Unmarshal(data, pool); err != nil {
		return nil, fmt.Errorf("failed to decode key pool: %w", err)
	}

	switch {
	case pool.Version == 0:
		pool.Version = SchemaVersion
	case pool.Version > SchemaVersion:
		return nil, fmt.Errorf("%w: %d (max %d)", ErrUnsupportedVersion, pool.Version, SchemaVersion)
	}

	if pool.Keys == nil {
		pool.Keys = []KeyRecord{}
	}
	return pool, nil
}
