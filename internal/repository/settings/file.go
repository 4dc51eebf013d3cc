package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// FileStore keeps settings in a YAML file. A missing file reads as defaults.
type FileStore struct {
	path string

	mu   sync.Mutex
	last []byte // content last read or written, for change detection
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file path.
func (s *FileStore) Path() string { return s.path }

// Load reads and validates the settings file.
func (s *FileStore) Load(_ context.Context) (quota.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _, err := s.loadLocked()
	return st, err
}

// Reload reads the file and reports whether its content differs from what
// this store last read or wrote.
func (s *FileStore) Reload(_ context.Context) (quota.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.last
	st, data, err := s.loadLocked()
	changed := !bytes.Equal(prev, data)
	if err != nil {
		return quota.Settings{}, changed, err
	}
	return st, changed, nil
}

func (s *FileStore) loadLocked() (quota.Settings, []byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.last = nil
		return quota.DefaultSettings(), nil, nil
	}
	if err != nil {
		return quota.Settings{}, nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}
	s.last = data
	st, err := Decode(data)
	if err != nil {
		return quota.Settings{}, data, err
	}
	return st, data, nil
}

// Update applies fn to the stored settings and writes the result.
func (s *FileStore) Update(_ context.Context, fn func(*quota.Settings)) (quota.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _, err := s.loadLocked()
	if err != nil {
		return quota.Settings{}, err
	}
	fn(&st)
	if err := st.Validate(); err != nil {
		return quota.Settings{}, err
	}
	if err := s.writeLocked(&st); err != nil {
		return quota.Settings{}, err
	}
	return st, nil
}

// Save validates and writes settings.
func (s *FileStore) Save(_ context.Context, st quota.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(&st)
}

// writeLocked replaces the file atomically via a temp file in the same directory.
func (s *FileStore) writeLocked(st *quota.Settings) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	s.last = data
	return nil
}

// Ping checks that the settings directory is reachable.
func (s *FileStore) Ping(_ context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("settings dir: %w", err)
	}
	return nil
}
