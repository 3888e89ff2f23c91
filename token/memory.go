package token

import (
	"sync"

	"github.com/jrsteele09/osonify-auth/authmodel"
)

var (
	_ Store        = (*MemoryStore)(nil)
	_ ProfileStore = (*MemoryStore)(nil)
)

// MemoryStore keeps the pair in process memory.
type MemoryStore struct {
	pair *authmodel.TokenPair
	user *authmodel.UserProfile
	lock sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (*authmodel.TokenPair, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.pair == nil {
		return nil, nil
	}
	pair := *m.pair
	return &pair, nil
}

func (m *MemoryStore) Set(pair authmodel.TokenPair) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.pair = &pair
	return nil
}

func (m *MemoryStore) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.pair = nil
	m.user = nil
	return nil
}

func (m *MemoryStore) GetUser() (*authmodel.UserProfile, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.user == nil {
		return nil, nil
	}
	user := *m.user
	return &user, nil
}

func (m *MemoryStore) SetUser(user authmodel.UserProfile) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.user = &user
	return nil
}
