package repositories

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/khabaroff/apikey-rotator/src/models"
)

// FileStore keeps the pool as a JSON document on disk.
// Writes go to a temporary file that is renamed over the document, so a crash
// never leaves a half-written pool behind. Disk access runs off the caller's
// goroutine so a stalled filesystem cannot outlive the context deadline.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer Sealer

	readFile  func(name string) ([]byte, error)
	writeFile func(path string, data []byte) error
}

var (
	_ StateStore    = (*FileStore)(nil)
	_ HealthChecker = (*FileStore)(nil)
)

// NewFileStore creates a file store at path. The parent directory is created if missing.
func NewFileStore(path string, sealer Sealer) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if sealer == nil {
		sealer = plainSealer{}
	}
	return &FileStore{
		path:      path,
		sealer:    sealer,
		readFile:  os.ReadFile,
		writeFile: writeFileAtomic,
	}, nil
}

// Load reads the document. A missing file is an empty pool.
func (s *FileStore) Load(ctx context.Context) (*models.KeyPool, error) {
	var data []byte
	err := s.withContext(ctx, func() error {
		var err error
		data, err = s.readFile(s.path)
		return err
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewKeyPool(), nil
		}
		return nil, fmt.Errorf("failed to read pool file: %w", err)
	}

	plain, err := s.sealer.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt pool file: %w", err)
	}
	return models.DecodePool(plain)
}

// Save writes the document atomically
func (s *FileStore) Save(ctx context.Context, pool *models.KeyPool) error {
	data, err := models.EncodePool(pool)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt pool: %w", err)
	}

	return s.withContext(ctx, func() error {
		return s.writeFile(s.path, sealed)
	})
}

// withContext runs fn under s.mu in its own goroutine and returns early when
// ctx is done. An abandoned fn finishes in the background and the next call
// waits for it on s.mu. Values fn assigns are only valid when fn's own result
// was returned.
func (s *FileStore) withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ctx.Err() != nil {
			done <- ctx.Err()
			return
		}
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeFileAtomic replaces path with data via a synced temp file and a rename
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pool-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write pool file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync pool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close pool file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace pool file: %w", err)
	}
	return nil
}

// Health checks that the data directory is reachable
func (s *FileStore) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}
