package cache

import (
	"encoding/gob"
)

type i struct {
	V int64
}

func init() {
	// Values pass through an interface on their way into gob
	gob.Register(i{})
}

// SetInt64 is a utility function to put an int64 into cache
func SetInt64(key string, data int64, timeToLive int32) error {
	return Set(key, i{V: data}, timeToLive)
}

// GetInt64 is a utility function to get an int64 from cache
func GetInt64(key string) (int64, bool, error) {
	val, ok, err := Get(key, i{})
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	return val.(i).V, true, nil
}
