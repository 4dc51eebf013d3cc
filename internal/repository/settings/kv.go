package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/db"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// kvStore is the consumer interface for KV-backed settings (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// KVStore keeps settings as one YAML document under a key, so several
// machines can share one configuration.
type KVStore struct {
	store kvStore
	key   string

	mu   sync.Mutex
	last []byte
}

// NewKVStore creates a KV-backed store.
func NewKVStore(s kvStore, key string) *KVStore {
	return &KVStore{store: s, key: key}
}

// Load reads the settings document. A missing key reads as defaults.
func (s *KVStore) Load(ctx context.Context) (quota.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _, err := s.loadLocked(ctx)
	return st, err
}

func (s *KVStore) loadLocked(ctx context.Context) (quota.Settings, []byte, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, db.ErrKeyNotFound) {
		s.last = nil
		return quota.DefaultSettings(), nil, nil
	}
	if err != nil {
		return quota.Settings{}, nil, fmt.Errorf("settings GET %s: %w", s.key, err)
	}
	s.last = data
	st, err := Decode(data)
	if err != nil {
		return quota.Settings{}, data, err
	}
	return st, data, nil
}

// Update applies fn to the stored settings and writes the result. Concurrent
// writers on other machines are last-write-wins.
func (s *KVStore) Update(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _, err := s.loadLocked(ctx)
	if err != nil {
		return quota.Settings{}, err
	}
	fn(&st)
	if err := st.Validate(); err != nil {
		return quota.Settings{}, err
	}
	data, err := Encode(&st)
	if err != nil {
		return quota.Settings{}, err
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return quota.Settings{}, fmt.Errorf("settings SET %s: %w", s.key, err)
	}
	s.last = data
	return st, nil
}

// Ping checks store connectivity.
func (s *KVStore) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	return nil
}

// Watch polls the key every interval and calls fn when the document changes,
// until ctx is done. Invalid documents are passed to fn as errors.
func (s *KVStore) Watch(ctx context.Context, interval time.Duration, fn func(quota.Settings, error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		s.mu.Lock()
		prev := s.last
		st, data, err := s.loadLocked(ctx)
		s.mu.Unlock()

		if err != nil && data == nil {
			// transport failure: retry next tick
			continue
		}
		if bytes.Equal(prev, data) {
			continue
		}
		fn(st, err)
	}
}
