package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the in-process L1. Values are stored JSON-encoded so callers
// never share mutable state with the cache. Every Delete bumps the key's
// version, which SetIfVersion checks before storing a fill.
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]memoryEntry
	versions   map[string]int64
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		items:      make(map[string]memoryEntry),
		versions:   make(map[string]int64),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.storeLocked(key, data, ttl)
	return nil
}

func (m *MemoryCache) Version(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[key], nil
}

func (m *MemoryCache) SetIfVersion(_ context.Context, key string, value interface{}, ttl time.Duration, version int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.versions[key] != version {
		return false, nil
	}
	m.storeLocked(key, data, ttl)
	return true, nil
}

func (m *MemoryCache) storeLocked(key string, data []byte, ttl time.Duration) {
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.evictLocked()
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = entry
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || m.expired(entry) {
		return ErrCacheMiss
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
		m.versions[k]++
	}

	return nil
}

func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.items {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.items, k)
			m.versions[k]++
		}
	}

	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (m *MemoryCache) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, entry := range m.items {
		if m.expired(entry) {
			delete(m.items, k)
			removed++
		}
	}

	return removed
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Health(context.Context) error {
	return nil
}

func (m *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"entries":     m.Len(),
		"max_entries": m.maxEntries,
	}
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)
}

// evictLocked removes expired entries first and, if the cache is still full,
// the entry closest to expiry.
func (m *MemoryCache) evictLocked() {
	var (
		victim    string
		victimExp time.Time
	)
	for k, entry := range m.items {
		if m.expired(entry) {
			delete(m.items, k)
			continue
		}
		if victim == "" || (!entry.expiresAt.IsZero() && (victimExp.IsZero() || entry.expiresAt.Before(victimExp))) {
			victim, victimExp = k, entry.expiresAt
		}
	}

	if len(m.items) >= m.maxEntries && victim != "" {
		delete(m.items, victim)
	}
}
