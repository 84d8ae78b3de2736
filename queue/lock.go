package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// lockTTL bounds how long a crashed holder can keep a rebuild lock
const lockTTL = 30 * time.Second

// lockRetryDelay throttles polling of a held lock
const lockRetryDelay = 50 * time.Millisecond

// Locker serializes snapshot rebuilds of one store across every process
// consuming the shared queue. The in-process mutex on a store only covers
// workers inside one binary; when several binaries consume the same job
// list they must coordinate through a Locker or concurrent incremental
// rebuilds can interleave the snapshot read-modify-write and lose entries.
type Locker interface {
	// Lock blocks until the named lock is held and returns the function
	// that releases it
	Lock(name string) (release func(), err error)
}

// RedisLocker implements Locker with one redis SET NX key per store. The
// value identifies the holder, so a lock that expired and was taken over by
// another process is never released from under it.
type RedisLocker struct {
	rdb *redis.Client
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker returns a Locker backed by the given redis client
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Lock blocks until the named lock is acquired
func (l *RedisLocker) Lock(name string) (func(), error) {
	key := "store_lock_" + name
	token := fmt.Sprintf("%d.%d", os.Getpid(), time.Now().UnixNano())

	for {
		ok, err := l.rdb.SetNX(context.Background(), key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("could not acquire lock %s: %v", key, err)
		}
		if ok {
			break
		}

		time.Sleep(lockRetryDelay)
	}

	release := func() {
		val, err := l.rdb.Get(context.Background(), key).Result()
		if err == nil && val == token {
			err = l.rdb.Del(context.Background(), key).Err()
		}
		if err != nil && err != redis.Nil {
			glog.Warningf("could not release lock %s: %+v", key, err)
		}
	}

	return release, nil
}
