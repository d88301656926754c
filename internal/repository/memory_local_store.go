package repository

import (
	"sync"

	"mikasa-gate/internal/domain"
)

// MemoryKeyValueStore keeps values in process memory. Nothing survives a restart.
type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: make(map[string]string)}
}

func (m *MemoryKeyValueStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKeyValueStore) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// ScopedKeyValueStore namespaces keys by a device scope so one process can
// host the local storage of many browsers.
type ScopedKeyValueStore struct {
	inner domain.KeyValueStore
	scope string
}

func NewScopedKeyValueStore(inner domain.KeyValueStore, scope string) *ScopedKeyValueStore {
	return &ScopedKeyValueStore{inner: inner, scope: scope}
}

func (s *ScopedKeyValueStore) key(k string) string {
	return s.scope + ":" + k
}

func (s *ScopedKeyValueStore) Get(key string) (string, bool, error) {
	return s.inner.Get(s.key(key))
}

func (s *ScopedKeyValueStore) Set(key, value string) error {
	return s.inner.Set(s.key(key), value)
}
