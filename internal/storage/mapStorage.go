package storage

import (
	"sync"
	"sync/atomic"
	"time"
)

// MapStorage is a thread-safe key-value storage guarded by a single lock
type MapStorage struct {
	data  map[string]StoredValue
	mu    sync.RWMutex
	seq   *atomic.Uint64 // shared with sibling shards
	clock func() time.Time
}

// NewMapStorage creates a new instance of MapStorage
func NewMapStorage() *MapStorage {
	return newMapStorage(new(atomic.Uint64), time.Now)
}

func newMapStorage(seq *atomic.Uint64, clock func() time.Time) *MapStorage {
	return &MapStorage{
		data:  make(map[string]StoredValue),
		seq:   seq,
		clock: clock,
	}
}

// stamp builds the entry for a write. Must be called with the write lock held
func (m *MapStorage) stamp(value string, ttl time.Duration) StoredValue {
	return StoredValue{
		Value:      value,
		InsertedAt: m.clock(),
		TTL:        ttl,
		Version:    m.seq.Add(1),
	}
}

// Put unconditionally writes the value, replacing any previous entry and its TTL
func (m *MapStorage) Put(key, value string, ttl time.Duration) {
	m.mu.Lock()
	m.data[key] = m.stamp(value, ttl)
	m.mu.Unlock()
}

// PutIf writes the value only if cond approves the current entry
func (m *MapStorage) PutIf(key, value string, ttl time.Duration, cond Condition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[key]
	if !cond(cur, ok) {
		return false
	}

	m.data[key] = m.stamp(value, ttl)
	return true
}

// GetIfPresent returns the current entry without checking its TTL
func (m *MapStorage) GetIfPresent(key string) (StoredValue, bool) {
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()

	return v, ok
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (m *MapStorage) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		return true
	}
	return false
}

// DeleteVersion deletes the key only if it was not rewritten since version was observed
func (m *MapStorage) DeleteVersion(key string, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// checking again, the key can be changed between read and eviction
	if v, ok := m.data[key]; ok && v.Version == version {
		delete(m.data, key)
		return true
	}
	return false
}

// Len returns the number of stored entries
func (m *MapStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}
