package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	c "github.com/microcosm-cc/appstore/cache"
	e "github.com/microcosm-cc/appstore/errors"
	h "github.com/microcosm-cc/appstore/helpers"
)

// Capabilities declares which mutations a store accepts. A disabled
// operation responds with 405 before any storage is touched; this is how
// stores mirroring read-only or externally managed tables are expressed.
type Capabilities struct {
	Create bool
	Update bool
	Delete bool
}

// AllCapabilities is the default: full CRUD
func AllCapabilities() Capabilities {
	return Capabilities{Create: true, Update: true, Delete: true}
}

// ReadOnlyCapabilities disables every mutation
func ReadOnlyCapabilities() Capabilities {
	return Capabilities{}
}

// Store is one named, independently cached collection mirroring one entity
// type. The snapshot (id -> serialized representation) lives in the cache
// backend as a single value and is always replaced whole, so readers never
// observe a partially updated snapshot.
//
// The Fetch* functions derive representations from the database; Insert,
// Amend and Remove persist mutations within the caller's transaction. A
// store never updates its own snapshot synchronously on mutation: a rebuild
// job is scheduled once the transaction has committed and a worker applies
// the change.
type Store struct {
	Name string
	Caps Capabilities

	// FetchAll returns every live row serialized, keyed by id
	FetchAll func(db *sql.DB) (map[int64]json.RawMessage, error)
	// FetchOne returns one row serialized, http.StatusNotFound when absent
	FetchOne func(db *sql.DB, id int64) (json.RawMessage, int, error)
	// Insert validates and persists a new row, returning its id
	Insert func(tx *sql.Tx, payload []byte) (int64, int, error)
	// Amend validates and persists changes to an existing row
	Amend func(tx *sql.Tx, id int64, payload []byte) (int, error)
	// Remove deletes an existing row
	Remove func(tx *sql.Tx, id int64) (int, error)

	// Set when the store is registered
	registry *Registry

	// Serializes rebuilds for this store; rebuilds on different stores are
	// free to interleave
	mu sync.Mutex
}

func (s *Store) cacheKey() string {
	return "store_" + s.Name
}

// snapshot returns the current cached mapping. A cache miss is an empty
// snapshot, which mirrors a cold cache before the first reload; an
// unreachable backend is an error and must never be served as an empty
// store.
func (s *Store) snapshot() (map[int64]json.RawMessage, error) {
	val, ok, err := c.Get(s.cacheKey(), map[int64]json.RawMessage{})
	if err != nil {
		return nil, e.New(
			"store.snapshot",
			e.StorageUnavailable,
			fmt.Sprintf("cache backend unavailable: %v", err),
		)
	}
	if ok {
		if data, ok := val.(map[int64]json.RawMessage); ok {
			return data, nil
		}
	}

	return map[int64]json.RawMessage{}, nil
}

// GetAll returns the full current snapshot. In nocache mode it recomputes
// directly from the database on every call, trading the consistency
// guarantees for freshness.
func (s *Store) GetAll() (map[int64]json.RawMessage, int, error) {
	if s.registry.NoCache {
		db, err := h.GetConnection()
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}

		data, err := s.FetchAll(db)
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}

		return data, http.StatusOK, nil
	}

	data, err := s.snapshot()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	return data, http.StatusOK, nil
}

// Data returns the snapshot as a list ordered by id, which is the shape the
// REST surface serves
func (s *Store) Data() ([]json.RawMessage, int, error) {
	data, status, err := s.GetAll()
	if err != nil {
		return nil, status, err
	}

	ids := make([]int64, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		list = append(list, data[id])
	}

	return list, http.StatusOK, nil
}

// GetOne returns a single entry from the snapshot, or recomputes it from
// the database in nocache mode
func (s *Store) GetOne(id int64) (json.RawMessage, int, error) {
	if s.registry.NoCache {
		db, err := h.GetConnection()
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}

		return s.FetchOne(db, id)
	}

	data, err := s.snapshot()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	rep, ok := data[id]
	if !ok {
		return nil, http.StatusNotFound, e.New(
			"store.GetOne",
			e.ItemNotFound,
			fmt.Sprintf("%s %d not found", s.Name, id),
		)
	}

	return rep, http.StatusOK, nil
}

// Rebuild recomputes one entry (id > 0) or the whole snapshot (id == 0)
// from the database, advances the version counter, replaces the snapshot
// and appends a history record. It is idempotent under redelivery: running
// it again for a change already reflected is safe, merely redundant.
//
// The returned version is the stamp issued by this rebuild.
func (s *Store) Rebuild(id int64) (int64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Locks != nil {
		release, err := s.registry.Locks.Lock(s.Name)
		if err != nil {
			return 0, http.StatusInternalServerError, err
		}
		defer release()
	}

	version, err := s.registry.Versions.Advance()
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	db, err := h.GetConnection()
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	if id > 0 {
		data, err := s.snapshot()
		if err != nil {
			return 0, http.StatusInternalServerError, err
		}

		var state string
		rep, status, err := s.FetchOne(db, id)
		switch {
		case status == http.StatusNotFound:
			// The row is gone. The entry may already be absent from the
			// snapshot (redelivered job, or it was never materialized);
			// deleting it again is a no-op, not an error.
			delete(data, id)
			state = StateDeleted
		case err != nil:
			return 0, status, err
		default:
			if _, exists := data[id]; exists {
				state = StateUpdated
			} else {
				state = StateCreated
			}
			data[id] = rep
		}

		err = c.Set(s.cacheKey(), data, 0)
		if err != nil {
			return 0, http.StatusInternalServerError, err
		}

		err = s.registry.History.Append(HistoryRecordType{
			Version:   version,
			StoreName: s.Name,
			ItemID:    id,
			State:     state,
		})
		if err != nil {
			return 0, http.StatusInternalServerError, err
		}

		return version, http.StatusOK, nil
	}

	// Whole-store rebuild: replace, never merge
	data, err := s.FetchAll(db)
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	err = c.Set(s.cacheKey(), data, 0)
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	err = s.registry.History.Append(HistoryRecordType{
		Version:   version,
		StoreName: s.Name,
		State:     StateUpdated,
	})
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	return version, http.StatusOK, nil
}

// reload replaces the snapshot from the database without touching the
// version counter or history; the registry-wide reload stamps one version
// and one history record for all stores together.
func (s *Store) reload(db *sql.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Locks != nil {
		release, err := s.registry.Locks.Lock(s.Name)
		if err != nil {
			return err
		}
		defer release()
	}

	data, err := s.FetchAll(db)
	if err != nil {
		return err
	}

	return c.Set(s.cacheKey(), data, 0)
}

// Create validates and persists a new entity, schedules a rebuild once the
// transaction has committed, and returns the representation of the fresh
// row. The cache snapshot is not updated synchronously.
func (s *Store) Create(payload []byte) (json.RawMessage, int, error) {
	if !s.Caps.Create {
		return nil, http.StatusMethodNotAllowed, e.New(
			"store.Create",
			e.OperationNotAllowed,
			fmt.Sprintf("%s does not allow create", s.Name),
		)
	}

	tx, err := h.GetTransaction()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	defer tx.Rollback()

	id, status, err := s.Insert(tx, payload)
	if err != nil {
		return nil, status, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("transaction failed: %v", err)
	}

	s.scheduleRebuild(id)

	db, err := h.GetConnection()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	return s.FetchOne(db, id)
}

// Update validates and persists changes to an existing entity, schedules a
// rebuild once the transaction has committed, and returns the refreshed
// representation
func (s *Store) Update(id int64, payload []byte) (json.RawMessage, int, error) {
	if !s.Caps.Update {
		return nil, http.StatusMethodNotAllowed, e.New(
			"store.Update",
			e.OperationNotAllowed,
			fmt.Sprintf("%s does not allow update", s.Name),
		)
	}

	tx, err := h.GetTransaction()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	defer tx.Rollback()

	status, err := s.Amend(tx, id, payload)
	if err != nil {
		return nil, status, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("transaction failed: %v", err)
	}

	s.scheduleRebuild(id)

	db, err := h.GetConnection()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	return s.FetchOne(db, id)
}

// Delete removes an existing entity and schedules a rebuild once the
// transaction has committed
func (s *Store) Delete(id int64) (int, error) {
	if !s.Caps.Delete {
		return http.StatusMethodNotAllowed, e.New(
			"store.Delete",
			e.OperationNotAllowed,
			fmt.Sprintf("%s does not allow delete", s.Name),
		)
	}

	tx, err := h.GetTransaction()
	if err != nil {
		return http.StatusInternalServerError, err
	}
	defer tx.Rollback()

	status, err := s.Remove(tx, id)
	if err != nil {
		return status, err
	}

	err = tx.Commit()
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("transaction failed: %v", err)
	}

	s.scheduleRebuild(id)

	return http.StatusOK, nil
}

// scheduleRebuild enqueues the deferred rebuild for one item. Only ever
// called after the mutating transaction has committed, never inside it, so
// workers cannot rebuild from not-yet-durable state. In nocache mode no
// scheduler is wired and reads recompute on every call instead.
func (s *Store) scheduleRebuild(id int64) {
	if s.registry.Scheduler == nil {
		return
	}

	s.registry.Scheduler.Schedule(s.Name, id)
}
