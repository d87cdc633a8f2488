package services

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func validHexKey() string {
	// 32 bytes = 64 hex chars
	return "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
}

func TestNewEncryptor_EmptyKey(t *testing.T) {
	enc, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc != nil {
		t.Fatal("expected nil encryptor for empty key")
	}
}

func TestNewEncryptor_InvalidHex(t *testing.T) {
	if _, err := NewEncryptor("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestNewEncryptor_WrongLength(t *testing.T) {
	// 16 bytes = 32 hex chars (AES-128, not AES-256)
	if _, err := NewEncryptor("0123456789abcdef0123456789abcdef"); err == nil {
		t.Fatal("expected error for wrong key length")
	}
}

func TestEncryptDecrypt_PoolDocument(t *testing.T) {
	enc, err := NewEncryptor(validHexKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plaintext := []byte(`{"version":1,"keys":[{"key":"secret-upstream-key","dailyLimit":100}]}`)

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("secret-upstream-key")) {
		t.Fatal("ciphertext leaks the key value")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted != plaintext: got %q, want %q", decrypted, plaintext)
	}
}

func TestNilEncryptor_Passthrough(t *testing.T) {
	var enc *Encryptor

	plaintext := []byte("hello")

	encrypted, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	if !bytes.Equal(encrypted, plaintext) {
		t.Fatal("nil encryptor should pass through on encrypt")
	}

	decrypted, err := enc.Decrypt(plaintext)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatal("nil encryptor should pass through on decrypt")
	}
}

func TestDecrypt_PlaintextDocument_RejectedByDefault(t *testing.T) {
	enc, err := NewEncryptor(validHexKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = enc.Decrypt([]byte(`{"keys":[{"key":"forged","active":true,"dailyLimit":1000000}]}`))
	if !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecrypt_PlaintextDocument_Migration(t *testing.T) {
	enc, err := NewEncryptor(validHexKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enc.AllowPlaintext()

	// Written before ENCRYPTION_KEY was set
	raw := []byte(`{"keys":[]}`)
	decrypted, err := enc.Decrypt(raw)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if !bytes.Equal(decrypted, raw) {
		t.Fatal("plaintext document should pass through during migration")
	}

	if _, err := enc.Decrypt([]byte("not json")); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for garbage, got %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, _ := NewEncryptor(validHexKey())

	key2 := make([]byte, 32)
	key2[0] = 0xff
	enc2, _ := NewEncryptor(hex.EncodeToString(key2))

	ciphertext, _ := enc1.Encrypt([]byte(`{"keys":[]}`))

	_, err := enc2.Decrypt(ciphertext)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestEncrypt_UniqueNonces(t *testing.T) {
	enc, _ := NewEncryptor(validHexKey())
	plaintext := []byte("same data")

	ct1, _ := enc.Encrypt(plaintext)
	ct2, _ := enc.Encrypt(plaintext)

	if bytes.Equal(ct1, ct2) {
		t.Fatal("two encryptions of same data should produce different ciphertexts (different nonces)")
	}
}
