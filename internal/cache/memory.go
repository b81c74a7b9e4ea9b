package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSweepInterval is used when no positive interval is given
const DefaultSweepInterval = 30 * time.Second

// cacheEntry represents a cached item with expiration
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory LRU store with per-entry TTL
type MemoryStore struct {
	cache    *lru.Cache[string, *cacheEntry]
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a new in-memory store holding at most size entries.
// Expired entries are swept every sweepInterval.
func NewMemoryStore(size int, sweepInterval time.Duration) (*MemoryStore, error) {
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	ms := &MemoryStore{
		cache:  cache,
		stopCh: make(chan struct{}),
	}

	go ms.cleanupLoop(sweepInterval)

	return ms, nil
}

// Get retrieves a value from the store
func (ms *MemoryStore) Get(key string) ([]byte, bool) {
	ms.mu.RLock()
	entry, ok := ms.cache.Get(key)
	ms.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		ms.mu.Lock()
		ms.cache.Remove(key)
		ms.mu.Unlock()
		return nil, false
	}

	return entry.data, true
}

// Set stores a value in the store. Non-positive ttl values are ignored.
func (ms *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	entry := &cacheEntry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}

	ms.mu.Lock()
	ms.cache.Add(key, entry)
	ms.mu.Unlock()
}

// Len returns the number of entries, including expired ones not yet swept
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.cache.Len()
}

// Close stops the sweeper goroutine
func (ms *MemoryStore) Close() {
	ms.stopOnce.Do(func() {
		close(ms.stopCh)
	})
}

// cleanupLoop periodically removes expired entries
func (ms *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stopCh:
			return
		case <-ticker.C:
			ms.removeExpired()
		}
	}
}

// removeExpired removes all expired entries from the store
func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, key := range ms.cache.Keys() {
		entry, ok := ms.cache.Peek(key)
		if ok && now.After(entry.expiresAt) {
			ms.cache.Remove(key)
		}
	}
}

// NoopStore is a store that does nothing
type NoopStore struct{}

// NewNoopStore creates a new no-op store
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// Get always returns not found
func (ns *NoopStore) Get(key string) ([]byte, bool) {
	return nil, false
}

// Set does nothing
func (ns *NoopStore) Set(key string, value []byte, ttl time.Duration) {}

// Close does nothing
func (ns *NoopStore) Close() {}
