package repositories

import (
	"context"

	"github.com/khabaroff/apikey-rotator/src/models"
)

// StateStore loads and saves the full key pool.
// Load must return a copy the caller may mutate freely; Save replaces the stored pool.
type StateStore interface {
	Load(ctx context.Context) (*models.KeyPool, error)
	Save(ctx context.Context, pool *models.KeyPool) error
}

// HealthChecker is implemented by stores that can probe their backend cheaply
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Sealer encrypts and decrypts persisted documents.
// A nil *services.Encryptor satisfies it as a pass-through.
type Sealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// plainSealer is used when no Sealer is configured
type plainSealer struct{}

func (plainSealer) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (plainSealer) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
