package models

import (
	"fmt"
	"sync"
	"time"

	c "github.com/microcosm-cc/appstore/cache"
	e "github.com/microcosm-cc/appstore/errors"
)

// versionCacheKey is where the current cache generation lives in the cache
// backend, shared by every store
const versionCacheKey = "version"

// VersionCounter issues the process-wide monotonic stamp that marks the
// current cache generation. Stamps are microseconds since epoch, clamped so
// that concurrent advances always yield strictly increasing, distinct
// values; only their ordering matters, never the absolute value.
type VersionCounter struct {
	mu   sync.Mutex
	last int64
}

// NewVersionCounter returns a counter that picks up whatever stamp is
// already in the cache backend
func NewVersionCounter() *VersionCounter {
	return &VersionCounter{}
}

// Current returns the current stamp, and false if no stamp has ever been
// issued. An unreachable cache backend is an error, not an absent stamp.
func (vc *VersionCounter) Current() (int64, bool, error) {
	version, ok, err := c.GetInt64(versionCacheKey)
	if err != nil {
		return 0, false, e.New(
			"version.Current",
			e.StorageUnavailable,
			fmt.Sprintf("cache backend unavailable: %v", err),
		)
	}
	if ok {
		return version, true, nil
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()

	if vc.last > 0 {
		return vc.last, true, nil
	}

	return 0, false, nil
}

// Advance issues a new stamp strictly greater than any previously issued or
// observed stamp, stores it as current, and returns it. An unreachable cache
// backend is an infrastructure error and is not swallowed.
func (vc *VersionCounter) Advance() (int64, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	// Another process may have advanced the shared stamp since we last did
	shared, ok, err := c.GetInt64(versionCacheKey)
	if err != nil {
		return 0, e.New(
			"version.Advance",
			e.StorageUnavailable,
			fmt.Sprintf("cache backend unavailable: %v", err),
		)
	}
	if ok && shared > vc.last {
		vc.last = shared
	}

	version := time.Now().UnixMicro()
	if version <= vc.last {
		version = vc.last + 1
	}
	vc.last = version

	err = c.SetInt64(versionCacheKey, version, 0)
	if err != nil {
		return 0, err
	}

	return version, nil
}
