package cache

import (
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheBackend talks to a memcached instance. This is the production
// backend.
type MemcacheBackend struct {
	mc *memcache.Client
}

// NewMemcacheBackend creates the memcached client
func NewMemcacheBackend(host string, port int64) *MemcacheBackend {
	return &MemcacheBackend{
		mc: memcache.New(fmt.Sprintf("%s:%d", host, port)),
	}
}

// Set stores the value in memcached
func (b *MemcacheBackend) Set(key string, value []byte, ttl int32) error {
	return b.mc.Set(
		&memcache.Item{
			Key:        key,
			Value:      value,
			Expiration: ttl, // time in seconds
		},
	)
}

// Get fetches the value from memcached, a miss is not an error
func (b *MemcacheBackend) Get(key string) ([]byte, bool, error) {
	item, err := b.mc.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return item.Value, true, nil
}

// Delete removes the value from memcached, a miss is not an error
func (b *MemcacheBackend) Delete(key string) error {
	err := b.mc.Delete(key)
	if err != nil && err != memcache.ErrCacheMiss {
		return err
	}

	return nil
}
