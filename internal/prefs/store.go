// Package prefs stores client preferences that survive across runs, the
// terminal counterpart of browser local storage.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TalkBackKey is the storage key of the talk-back preference.
const TalkBackKey = "talkBackEnabled"

// Store is a string key/value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// FileStore persists values as a flat JSON object. Every Set rewrites the file.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// OpenFile loads path if it exists. A missing file yields an empty store; a
// corrupt one is an error.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read prefs %s: %w", path, err)
	}

	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", path, err)
	}
	return s, nil
}

// Get returns the stored value for key.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and writes the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

// MemoryStore keeps values in memory only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}
