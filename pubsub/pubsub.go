/*
Package pubsub broadcasts cache version changes to interested subscribers
over a redis channel. Delivery is best-effort and fire-and-forget;
subscribers that miss a message are expected to reconcile by polling the
store history endpoint.
*/
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Channel is the redis channel version announcements are published to
const Channel = "store_binding"

// EventType tags every announcement so that subscribers multiplexing one
// connection can route it
const EventType = "store.binding"

var rdb *redis.Client

// InitPubSub creates the redis client and enables Broadcast. It is the
// responsibility of main.go to call this after reading the config file.
func InitPubSub(host string, port int64) {
	rdb = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
}

type message struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// Broadcast publishes the given cache version to the shared channel. Errors
// are logged and swallowed: there is no delivery guarantee to uphold.
func Broadcast(version int64) {
	if rdb == nil {
		return
	}

	payload, err := json.Marshal(message{Type: EventType, Version: version})
	if err != nil {
		glog.Errorf("json.Marshal(message) %+v", err)
		return
	}

	err = rdb.Publish(context.Background(), Channel, payload).Err()
	if err != nil {
		glog.Warningf("rdb.Publish() %+v", err)
	}
}
