package keystore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory KeyStore for tests
type MemoryStore struct {
	mu      sync.Mutex
	salt    []byte
	keys    map[string][]byte
	saltErr error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

// FailSalt makes every later GetOrGenerateSalt return err, to simulate a
// broken secure store. Pass nil to recover.
func (m *MemoryStore) FailSalt(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saltErr = err
}

func (m *MemoryStore) GetOrGenerateSalt(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saltErr != nil {
		return nil, persistenceErr("read "+SaltEntry, m.saltErr)
	}
	if m.salt == nil {
		salt, err := newSalt()
		if err != nil {
			return nil, err
		}
		m.salt = salt
	}
	return append([]byte(nil), m.salt...), nil
}

func (m *MemoryStore) StoreKey(ctx context.Context, id string, key []byte) error {
	if err := checkKeyID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[id] = append([]byte(nil), key...)
	return nil
}

func (m *MemoryStore) RetrieveKey(ctx context.Context, id string) ([]byte, error) {
	if err := checkKeyID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), key...), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
