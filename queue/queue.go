/*
Package queue carries deferred cache rebuild jobs from the mutation path to
the rebuild workers. Jobs are delivered at least once and may be delivered
out of order; the rebuild contract is idempotent so redelivery is safe,
merely redundant.

The redis queue is the production transport. The memory queue runs the
workers in-process and exists for tests and single-node deployments.
*/
package queue

// Job identifies one rebuild: a store name and, for incremental rebuilds,
// the item that changed. ItemID 0 means rebuild the whole store.
type Job struct {
	Store  string `json:"store"`
	ItemID int64  `json:"itemId,omitempty"`
}

// Handler processes one job. A nil return acknowledges the job. An error
// asks the queue to redeliver under its own retry policy; permanent
// failures (an unknown store name is a configuration bug, not a transient
// fault) must be swallowed and logged by the handler itself so they are not
// retried forever.
type Handler func(store string, itemID int64) error

// Scheduler is the write side of the queue, injected into whatever needs to
// enqueue rebuild work after a transaction commits.
type Scheduler interface {
	Schedule(store string, itemID int64)
}
