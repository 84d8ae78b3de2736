package queue

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryQueueDeliversJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []Job
	)

	q := NewMemoryQueue(func(store string, itemID int64) error {
		mu.Lock()
		seen = append(seen, Job{Store: store, ItemID: itemID})
		mu.Unlock()
		return nil
	}, 2, 16)

	q.Schedule("widgets", 1)
	q.Schedule("widgets", 2)
	q.Schedule("gadgets", 0)

	q.Close()

	if len(seen) != 3 {
		t.Fatalf("handler saw %d jobs, should be 3", len(seen))
	}

	counts := map[Job]int{}
	for _, job := range seen {
		counts[job]++
	}
	for _, job := range []Job{
		{Store: "widgets", ItemID: 1},
		{Store: "widgets", ItemID: 2},
		{Store: "gadgets", ItemID: 0},
	} {
		if counts[job] != 1 {
			t.Errorf("job %+v delivered %d times, should be 1", job, counts[job])
		}
	}
}

func TestMemoryQueueRedeliversOnce(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)

	q := NewMemoryQueue(func(store string, itemID int64) error {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	}, 1, 16)

	q.Schedule("widgets", 1)
	q.Close()

	if attempts != 2 {
		t.Errorf("handler attempts = %d, should be 2", attempts)
	}
}

func TestMemoryQueueCloseIsIdempotent(t *testing.T) {
	q := NewMemoryQueue(func(store string, itemID int64) error {
		return nil
	}, 1, 1)

	q.Close()
	q.Close()
}
