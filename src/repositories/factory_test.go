package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		want    interface{}
		wantErr bool
	}{
		{"memory", Options{Backend: models.StoreMemory}, &MemoryStore{}, false},
		{"file", Options{Backend: models.StoreFile, Path: filepath.Join(dir, "keys.json")}, &FileStore{}, false},
		{"default is file", Options{Path: filepath.Join(dir, "default.json")}, &FileStore{}, false},
		{"sqlite", Options{Backend: models.StoreSQLite, Path: filepath.Join(dir, "keys.db")}, &SQLiteStore{}, false},
		{"file without path", Options{Backend: models.StoreFile}, nil, true},
		{"bad redis url", Options{Backend: models.StoreRedis, RedisURL: "not a url"}, nil, true},
		{"unknown backend", Options{Backend: "etcd"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := Open(context.Background(), tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = closeFn() })
			assert.IsType(t, tt.want, store)

			_, err = store.Load(context.Background())
			require.NoError(t, err)
		})
	}
}
