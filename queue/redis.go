package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis list rebuild jobs are pushed onto
const DefaultKey = "store_rebuild"

// popTimeout bounds each BRPOP so workers notice shutdown
const popTimeout = 5 * time.Second

// retryDelay throttles redelivery of a failed job
const retryDelay = time.Second

// RedisQueue carries jobs over a redis list so that rebuild work survives a
// process restart and can be consumed by any number of worker processes,
// provided those processes serialize per-store snapshot writes through a
// shared Locker. A failed job is pushed back onto the list, which gives
// at-least-once delivery with no ordering guarantee.
type RedisQueue struct {
	rdb    *redis.Client
	key    string
	fn     Handler
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Scheduler = (*RedisQueue)(nil)

// NewRedisQueue starts the worker pool against the given redis list
func NewRedisQueue(rdb *redis.Client, key string, fn Handler, workers int) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &RedisQueue{rdb: rdb, key: key, fn: fn, cancel: cancel}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.run(ctx)
	}

	return q
}

// Schedule enqueues a job. The caller's transaction has already committed,
// so a push failure loses the job; it is logged at error severity and the
// next full reload will repair the snapshot.
func (q *RedisQueue) Schedule(store string, itemID int64) {
	payload, err := json.Marshal(Job{Store: store, ItemID: itemID})
	if err != nil {
		glog.Errorf("json.Marshal(job) %+v", err)
		return
	}

	err = q.rdb.LPush(context.Background(), q.key, payload).Err()
	if err != nil {
		glog.Errorf("failed to schedule rebuild %s/%d: %+v", store, itemID, err)
	}
}

func (q *RedisQueue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := q.rdb.BRPop(ctx, popTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			glog.Warningf("rdb.BRPop() %+v", err)
			time.Sleep(retryDelay)
			continue
		}

		// BRPOP returns [key, value]
		var job Job
		err = json.Unmarshal([]byte(res[1]), &job)
		if err != nil {
			glog.Errorf("malformed rebuild job %s: %+v", res[1], err)
			continue
		}

		err = q.fn(job.Store, job.ItemID)
		if err != nil {
			glog.Warningf("rebuild %s/%d failed, requeueing: %+v", job.Store, job.ItemID, err)

			err = q.rdb.LPush(context.Background(), q.key, res[1]).Err()
			if err != nil {
				glog.Errorf("failed to requeue rebuild %s/%d: %+v", job.Store, job.ItemID, err)
			}
			time.Sleep(retryDelay)
		}
	}
}

// Close stops the workers and waits for in-flight jobs to finish
func (q *RedisQueue) Close() {
	q.once.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}
