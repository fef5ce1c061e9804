package storage

import (
	"context"
	"errors"
	"sync"
)

var errClosed = errors.New("store is closed")

// MemoryStore is an in-memory RecordStore. Records are copied on the way in
// and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]EncryptedRecord
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]EncryptedRecord)}
}

func (m *MemoryStore) Put(ctx context.Context, collection, id string, rec EncryptedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return persistenceErr("put", errClosed)
	}
	m.records[RecordKey(collection, id)] = rec.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, persistenceErr("get", errClosed)
	}
	rec, ok := m.records[RecordKey(collection, id)]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return persistenceErr("delete", errClosed)
	}
	delete(m.records, RecordKey(collection, id))
	return nil
}

func (m *MemoryStore) All(ctx context.Context) (map[string]EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, persistenceErr("all", errClosed)
	}
	out := make(map[string]EncryptedRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v.Clone()
	}
	return out, nil
}

// Tamper applies fn to the stored record in place. It exists so tests can
// simulate on-disk corruption.
func (m *MemoryStore) Tamper(collection, id string, fn func(*EncryptedRecord)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := RecordKey(collection, id)
	rec, ok := m.records[key]
	if !ok {
		return false
	}
	fn(&rec)
	m.records[key] = rec
	return true
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
