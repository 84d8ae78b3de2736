package cache

import (
	"sync"
)

// MemoryBackend is an in-process backend used by tests and by deployments
// that run without memcached. TTLs are ignored; entries live until deleted
// or the process exits.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items: map[string][]byte{},
	}
}

// Set stores a copy of the value
func (b *MemoryBackend) Set(key string, value []byte, ttl int32) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	b.mu.Lock()
	b.items[key] = cp
	b.mu.Unlock()

	return nil
}

// Get fetches the value
func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	value, ok := b.items[key]
	b.mu.RUnlock()

	return value, ok, nil
}

// Delete removes the value
func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	delete(b.items, key)
	b.mu.Unlock()

	return nil
}
