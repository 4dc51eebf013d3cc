package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

type change struct {
	settings quota.Settings
	err      error
}

func startWatcher(t *testing.T, store *FileStore) <-chan change {
	t.Helper()
	ch := make(chan change, 8)
	w, err := NewWatcher(store, 20*time.Millisecond, func(s quota.Settings, err error) {
		ch <- change{s, err}
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return ch
}

func TestWatcher_ExternalEdit(t *testing.T) {
	path := tempSettingsPath(t)
	store := NewFileStore(path)
	ch := startWatcher(t, store)

	writeFile(t, path, "refresh_interval: 30s\n")

	select {
	case c := <-ch:
		if c.err != nil {
			t.Fatalf("unexpected error: %v", c.err)
		}
		if c.settings.RefreshInterval != 30*time.Second {
			t.Errorf("refresh = %s", c.settings.RefreshInterval)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change not reported")
	}
}

func TestWatcher_InvalidEdit(t *testing.T) {
	path := tempSettingsPath(t)
	store := NewFileStore(path)
	ch := startWatcher(t, store)

	writeFile(t, path, "critical_threshold: 95\n")

	select {
	case c := <-ch:
		if !errors.Is(c.err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration, got %v", c.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("invalid change not reported")
	}
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	path := tempSettingsPath(t)
	store := NewFileStore(path)
	ch := startWatcher(t, store)

	if _, err := store.Update(context.Background(), func(s *quota.Settings) { s.WarningThreshold = 45 }); err != nil {
		t.Fatalf("update: %v", err)
	}

	select {
	case c := <-ch:
		t.Fatalf("own write reported: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}
