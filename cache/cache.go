package cache

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
)

// Backend is the storage a cache client talks to. Implementations must be
// safe for concurrent use.
type Backend interface {
	// Set stores value under key. ttl is in seconds, 0 means no expiry.
	Set(key string, value []byte, ttl int32) error
	// Get returns the stored value and whether it existed.
	Get(key string) ([]byte, bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

var backend Backend

// InitCacheBackend installs the given backend and enables the cache
// functions within this package. It is the responsibility of whatever has
// the values for this function (usually main.go shortly after reading the
// config file) to call this.
func InitCacheBackend(b Backend) {
	backend = b
}

// Set puts the given interface into the cache. The error is returned so that
// callers which must not proceed on a failed write (snapshot rebuilds) can
// surface it; fire-and-forget callers are free to ignore it.
func Set(key string, data interface{}, timeToLive int32) error {
	if backend == nil {
		return nil
	}

	// Encode the data for serialisation in the backend
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(&data)
	if err != nil {
		glog.Errorf("enc.Encode(&data) %+v", err)
		return err
	}

	err = backend.Set(key, buf.Bytes(), timeToLive)
	if err != nil {
		glog.Errorf("backend.Set() %+v", err)
		return err
	}

	return nil
}

// Get gets the data for the given key. A miss returns false with no error;
// an unreachable backend or a decode failure is returned as an error so that
// readers can refuse to serve rather than mistake an outage for an empty
// cache.
func Get(key string, dst interface{}) (interface{}, bool, error) {
	if backend == nil {
		return nil, false, nil
	}

	value, ok, err := backend.Get(key)
	if err != nil {
		glog.Errorf("backend.Get(key) %+v", err)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var buf bytes.Buffer
	buf.Write(value)
	dec := gob.NewDecoder(&buf)
	err = dec.Decode(&dst)
	if err != nil {
		glog.Errorf("dec.Decode(&dst) %+v", err)
		return nil, false, err
	}

	return dst, true, nil
}

// Delete removes items matching the given key from the cache, if it is in
// the cache
func Delete(key string) {
	if backend == nil {
		return
	}

	err := backend.Delete(key)
	if err != nil {
		glog.Warningf("backend.Delete(key) %+v", err)
	}
}
