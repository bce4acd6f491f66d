package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value V
	at    time.Time
}

// ExpiringMap is a TTL-bounded map guarded by one coarse mutex. Expired
// entries are dropped lazily on access and in bulk by Sweep; when the
// capacity bound is exceeded the oldest entry is evicted first.
type ExpiringMap[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[K]entry[V]
}

// NewExpiringMap creates a map whose entries expire ttl after their last
// Put. capacity <= 0 means unbounded.
func NewExpiringMap[K comparable, V any](ttl time.Duration, capacity int) *ExpiringMap[K, V] {
	return &ExpiringMap[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]entry[V]),
	}
}

// Get returns the live value for k. An expired entry is removed and
// reported as absent.
func (m *ExpiringMap[K, V]) Get(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Since(e.at) > m.ttl {
		delete(m.entries, k)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put inserts or refreshes an entry, evicting the oldest one if the
// capacity bound would be exceeded.
func (m *ExpiringMap[K, V]) Put(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(k, v)
}

// PutIfAbsent inserts only when no live entry exists for k. Returns true if
// the entry was inserted, false if a live entry was already present. The
// check and the insert happen under one lock acquisition.
func (m *ExpiringMap[K, V]) PutIfAbsent(k K, v V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		if time.Since(e.at) <= m.ttl {
			return false
		}
		delete(m.entries, k)
	}
	m.put(k, v)
	return true
}

// Delete removes the entry for k if present.
func (m *ExpiringMap[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

// Len returns the number of stored entries, expired ones included.
func (m *ExpiringMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes all expired entries and returns how many were dropped.
func (m *ExpiringMap[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if time.Since(e.at) > m.ttl {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Range calls fn for every live entry until fn returns false.
func (m *ExpiringMap[K, V]) Range(fn func(k K, v V) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if time.Since(e.at) > m.ttl {
			continue
		}
		if !fn(k, e.value) {
			return
		}
	}
}

// put assumes the lock is held.
func (m *ExpiringMap[K, V]) put(k K, v V) {
	if m.capacity > 0 && len(m.entries) >= m.capacity {
		if _, exists := m.entries[k]; !exists {
			m.evictOldest()
		}
	}
	m.entries[k] = entry[V]{value: v, at: time.Now()}
}

// evictOldest assumes the lock is held.
func (m *ExpiringMap[K, V]) evictOldest() {
	var oldestKey K
	var oldestAt time.Time
	first := true
	for k, e := range m.entries {
		if first || e.at.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.at
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}
