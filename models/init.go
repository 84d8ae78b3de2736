package models

import (
	"encoding/gob"
	"encoding/json"
)

func init() {
	// Required by the cache stuff
	gob.Register(json.RawMessage{})
	gob.Register(map[int64]json.RawMessage{})
}
