package models

import (
	"sync"
	"testing"

	"github.com/microcosm-cc/appstore/cache"
)

func TestVersionCounterStartsAbsent(t *testing.T) {
	cache.InitCacheBackend(cache.NewMemoryBackend())

	vc := NewVersionCounter()

	version, ok, err := vc.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if ok {
		t.Errorf("Current() = %d before any advance, should be absent", version)
	}
}

func TestVersionCounterAdvance(t *testing.T) {
	cache.InitCacheBackend(cache.NewMemoryBackend())

	vc := NewVersionCounter()

	first, err := vc.Advance()
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if first <= 0 {
		t.Errorf("Advance() = %d, should be positive", first)
	}

	current, ok, err := vc.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if !ok {
		t.Fatal("Current() absent after advance")
	}
	if current != first {
		t.Errorf("Current() = %d, should be %d", current, first)
	}

	second, err := vc.Advance()
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if second <= first {
		t.Errorf("Advance() = %d, should be greater than %d", second, first)
	}
}

func TestVersionCounterConcurrentAdvance(t *testing.T) {
	cache.InitCacheBackend(cache.NewMemoryBackend())

	vc := NewVersionCounter()

	const (
		goroutines = 20
		advances   = 50
	)

	results := make(chan int64, goroutines*advances)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()

			var last int64
			for j := 0; j < advances; j++ {
				version, err := vc.Advance()
				if err != nil {
					t.Errorf("Advance() error: %v", err)
					return
				}
				if version <= last {
					t.Errorf(
						"Advance() = %d, should be greater than %d",
						version,
						last,
					)
					return
				}
				last = version
				results <- version
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	var max int64
	for version := range results {
		if seen[version] {
			t.Errorf("Advance() issued %d twice", version)
		}
		seen[version] = true
		if version > max {
			max = version
		}
	}

	current, ok, err := vc.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if !ok {
		t.Fatal("Current() absent after advances")
	}
	if current != max {
		t.Errorf("Current() = %d, should hold the largest stamp %d", current, max)
	}
}

func TestVersionCounterBackendUnreachable(t *testing.T) {
	cache.InitCacheBackend(failingBackend{})

	vc := NewVersionCounter()

	// An unreachable backend must surface as an error, not as an absent
	// stamp
	_, _, err := vc.Current()
	if err == nil {
		t.Error("Current() should fail when the cache backend is unreachable")
	}

	_, err = vc.Advance()
	if err == nil {
		t.Error("Advance() should fail when the cache backend is unreachable")
	}
}
