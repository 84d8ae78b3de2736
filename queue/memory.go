package queue

import (
	"sync"

	"github.com/golang/glog"
)

// MemoryQueue runs rebuild jobs on a pool of in-process workers fed by a
// buffered channel. There is no durable retry: a job that fails twice is
// logged and dropped.
type MemoryQueue struct {
	fn   Handler
	q    chan Job
	wg   sync.WaitGroup
	once sync.Once
}

var _ Scheduler = (*MemoryQueue)(nil)

// NewMemoryQueue starts the worker pool
func NewMemoryQueue(fn Handler, workers, qlen int) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	m := &MemoryQueue{fn: fn, q: make(chan Job, qlen)}
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer m.wg.Done()
			for job := range m.q {
				err := m.fn(job.Store, job.ItemID)
				if err == nil {
					continue
				}

				// One redelivery, then drop
				err = m.fn(job.Store, job.ItemID)
				if err != nil {
					glog.Errorf(
						"dropping rebuild job %s/%d: %+v",
						job.Store,
						job.ItemID,
						err,
					)
				}
			}
		}()
	}

	return m
}

// Schedule enqueues a job, blocking if the buffer is full
func (m *MemoryQueue) Schedule(store string, itemID int64) {
	m.q <- Job{Store: store, ItemID: itemID}
}

// Close stops accepting jobs and waits for in-flight jobs to finish
func (m *MemoryQueue) Close() {
	m.once.Do(func() {
		close(m.q)
		m.wg.Wait()
	})
}
