// Package kv is the small JSON key-value layer behind the activity cache and
// goal persistence. The production backend is an embedded Badger database;
// tests use the in-memory implementation.
package kv

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get unmarshals the value stored under key into v, or returns
	// ErrNotFound.
	Get(key string, v interface{}) error
	Set(key string, v interface{}) error
	Delete(key string) error
	Close() error
}

// MemoryStore is a map-backed Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Get(key string, v interface{}) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func (s *MemoryStore) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
