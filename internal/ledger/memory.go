package ledger

import (
	"context"
	"strings"
	"sync"
)

// MemStore keeps the ledger in process memory. Used for local runs and tests.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(key)
}

func (m *MemStore) Prefix(_ context.Context, prefix string) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefixLocked(prefix), nil
}

// Update holds the write lock for the whole callback, so transactions never interleave.
func (m *MemStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newStaged(lockedMem{m})
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k := range tx.dels {
		delete(m.data, k)
	}
	for k, v := range tx.writes {
		m.data[k] = v
	}
	return nil
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) getLocked(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemStore) prefixLocked(prefix string) []KV {
	hits := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			hits[k] = v
		}
	}
	return sortedKVs(hits)
}

// lockedMem reads without taking the lock Update already holds.
type lockedMem struct{ m *MemStore }

func (l lockedMem) Get(_ context.Context, key string) ([]byte, bool, error) {
	return l.m.getLocked(key)
}

func (l lockedMem) Prefix(_ context.Context, prefix string) ([]KV, error) {
	return l.m.prefixLocked(prefix), nil
}
