package clientstore

import (
	"sync"
)

// Storage is a persistent string key-value store, the process-local
// equivalent of browser localStorage.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is a Storage that lives only as long as the process.
type MemoryStorage struct {
	items map[string]string
	lock  sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.items, key)
	return nil
}
