package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/quotawatch/internal/db"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	setFn  func(ctx context.Context, key string, value []byte) error
	pingFn func(ctx context.Context) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockKVStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// memKV is a map-backed mockKVStore.
func memKV() (*mockKVStore, map[string][]byte) {
	data := map[string][]byte{}
	return &mockKVStore{
		getFn: func(_ context.Context, key string) ([]byte, error) {
			v, ok := data[key]
			if !ok {
				return nil, db.ErrKeyNotFound
			}
			return v, nil
		},
		setFn: func(_ context.Context, key string, value []byte) error {
			data[key] = value
			return nil
		},
	}, data
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func tempSettingsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.yaml")
}
