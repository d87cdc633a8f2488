package services

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrDecryptFailed indicates a sealed document could not be opened with the configured key
var ErrDecryptFailed = errors.New("failed to decrypt pool document")

// Encryptor provides AES-256-GCM encryption/decryption for persisted pool documents.
// If nil, all operations are no-ops (pass-through).
type Encryptor struct {
	gcm            cipher.AEAD
	allowPlaintext bool
}

// NewEncryptor creates an Encryptor from a hex-encoded 32-byte key.
// Returns nil if hexKey is empty (encryption disabled).
func NewEncryptor(hexKey string) (*Encryptor, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt returns nonce || ciphertext (12-byte nonce prepended).
// If encryptor is nil, returns plaintext unchanged.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e == nil {
		return plaintext, nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// AllowPlaintext makes Decrypt accept an unencrypted JSON document, as written
// before ENCRYPTION_KEY was set. The next save seals it. Off by default.
func (e *Encryptor) AllowPlaintext() {
	if e != nil {
		e.allowPlaintext = true
	}
}

// Decrypt opens nonce || ciphertext.
// Plaintext JSON is only returned when AllowPlaintext was called.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if e == nil || len(ciphertext) == 0 {
		return ciphertext, nil
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) >= nonceSize+e.gcm.Overhead() {
		nonce, encrypted := ciphertext[:nonceSize], ciphertext[nonceSize:]
		if plaintext, err := e.gcm.Open(nil, nonce, encrypted, nil); err == nil {
			return plaintext, nil
		}
	}

	if !e.allowPlaintext {
		return nil, ErrDecryptFailed
	}
	if trimmed := bytes.TrimSpace(ciphertext); len(trimmed) > 0 && trimmed[0] == '{' {
		return ciphertext, nil
	}

	return nil, ErrDecryptFailed
}
