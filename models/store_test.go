package models

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/microcosm-cc/appstore/cache"
	e "github.com/microcosm-cc/appstore/errors"
)

// testRows stands in for an entity table; the fetch functions close over it
// and ignore the *sql.DB they are handed
type testRows struct {
	mu   sync.Mutex
	rows map[int64]string
}

func newTestRows(rows map[int64]string) *testRows {
	return &testRows{rows: rows}
}

func (tr *testRows) set(id int64, title string) {
	tr.mu.Lock()
	tr.rows[id] = title
	tr.mu.Unlock()
}

func (tr *testRows) remove(id int64) {
	tr.mu.Lock()
	delete(tr.rows, id)
	tr.mu.Unlock()
}

func testRep(id int64, title string) json.RawMessage {
	rep, _ := json.Marshal(struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}{ID: id, Title: title})

	return rep
}

func newTestStore(name string, tr *testRows) *Store {
	return &Store{
		Name: name,
		Caps: AllCapabilities(),

		FetchAll: func(db *sql.DB) (map[int64]json.RawMessage, error) {
			tr.mu.Lock()
			defer tr.mu.Unlock()

			data := map[int64]json.RawMessage{}
			for id, title := range tr.rows {
				data[id] = testRep(id, title)
			}

			return data, nil
		},

		FetchOne: func(db *sql.DB, id int64) (json.RawMessage, int, error) {
			tr.mu.Lock()
			defer tr.mu.Unlock()

			title, ok := tr.rows[id]
			if !ok {
				return nil, http.StatusNotFound, e.New(
					"test.FetchOne",
					e.ItemNotFound,
					fmt.Sprintf("%d not found", id),
				)
			}

			return testRep(id, title), http.StatusOK, nil
		},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *MemHistoryStore) {
	cache.InitCacheBackend(cache.NewMemoryBackend())

	history := NewMemHistoryStore()
	reg := NewRegistry(NewVersionCounter(), history, nil, false)

	return reg, history
}

func TestRebuildCreatesEntry(t *testing.T) {
	reg, history := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	version, status, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) status %d error: %v", status, err)
	}

	rep, status, err := s.GetOne(1)
	if err != nil {
		t.Fatalf("GetOne(1) status %d error: %v", status, err)
	}
	if !bytes.Equal(rep, testRep(1, "one")) {
		t.Errorf("GetOne(1) = %s, should be %s", rep, testRep(1, "one"))
	}

	records, _, err := history.Query(HistoryQueryType{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("history has %d records, should be 1", len(records))
	}
	rec := records[0]
	if rec.State != StateCreated {
		t.Errorf("history state = %s, should be %s", rec.State, StateCreated)
	}
	if rec.StoreName != "widgets" {
		t.Errorf("history store = %s, should be widgets", rec.StoreName)
	}
	if rec.ItemID != 1 {
		t.Errorf("history itemID = %d, should be 1", rec.ItemID)
	}
	if rec.Version != version {
		t.Errorf("history version = %d, should be %d", rec.Version, version)
	}
}

func TestRebuildIdempotentUnderRedelivery(t *testing.T) {
	reg, history := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, _, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) error: %v", err)
	}

	after, _, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}

	// Simulate at-least-once redelivery of the same job
	_, _, err = s.Rebuild(1)
	if err != nil {
		t.Fatalf("redelivered Rebuild(1) error: %v", err)
	}

	again, _, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}

	if len(again) != len(after) {
		t.Fatalf("snapshot has %d entries, should be %d", len(again), len(after))
	}
	for id, rep := range after {
		if !bytes.Equal(again[id], rep) {
			t.Errorf("snapshot entry %d = %s, should be %s", id, again[id], rep)
		}
	}

	records, _, err := history.Query(HistoryQueryType{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("history has %d records, should be 2", len(records))
	}
}

func TestRebuildDeleteTombstones(t *testing.T) {
	reg, history := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, _, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) error: %v", err)
	}

	tr.remove(1)

	_, _, err = s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) after delete error: %v", err)
	}

	_, status, err := s.GetOne(1)
	if err == nil {
		t.Fatal("GetOne(1) should fail after deletion rebuild")
	}
	if status != http.StatusNotFound {
		t.Errorf("GetOne(1) status = %d, should be %d", status, http.StatusNotFound)
	}

	records, _, err := history.Query(HistoryQueryType{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	last := records[len(records)-1]
	if last.State != StateDeleted {
		t.Errorf("last history state = %s, should be %s", last.State, StateDeleted)
	}

	// A redelivered deletion for an id already absent from the snapshot
	// must not error
	_, _, err = s.Rebuild(1)
	if err != nil {
		t.Errorf("redelivered deletion Rebuild(1) error: %v", err)
	}
}

func TestFullRebuildReplacesNotMerges(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one", 2: "two", 3: "three"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, _, err := s.Rebuild(0)
	if err != nil {
		t.Fatalf("Rebuild(0) error: %v", err)
	}

	tr.remove(1)
	tr.set(4, "four")

	_, _, err = s.Rebuild(0)
	if err != nil {
		t.Fatalf("Rebuild(0) error: %v", err)
	}

	data, _, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}

	if len(data) != 3 {
		t.Errorf("snapshot has %d entries, should be 3", len(data))
	}
	if _, lingers := data[1]; lingers {
		t.Error("snapshot entry 1 should not linger after full rebuild")
	}
	for _, id := range []int64{2, 3, 4} {
		if _, ok := data[id]; !ok {
			t.Errorf("snapshot entry %d missing after full rebuild", id)
		}
	}
}

func TestRebuildAdvancesVersion(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	first, _, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) error: %v", err)
	}

	second, _, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) error: %v", err)
	}

	if second <= first {
		t.Errorf("rebuild version = %d, should be greater than %d", second, first)
	}

	current, ok, err := reg.Versions.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if !ok || current != second {
		t.Errorf("Current() = %d, should be %d", current, second)
	}
}

func TestDataOrderedByID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{3: "three", 1: "one", 2: "two"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, _, err := s.Rebuild(0)
	if err != nil {
		t.Fatalf("Rebuild(0) error: %v", err)
	}

	list, _, err := s.Data()
	if err != nil {
		t.Fatalf("Data() error: %v", err)
	}

	expected := []json.RawMessage{
		testRep(1, "one"),
		testRep(2, "two"),
		testRep(3, "three"),
	}
	if len(list) != len(expected) {
		t.Fatalf("Data() has %d entries, should be %d", len(list), len(expected))
	}
	for i := range expected {
		if !bytes.Equal(list[i], expected[i]) {
			t.Errorf("Data()[%d] = %s, should be %s", i, list[i], expected[i])
		}
	}
}

func TestReadOnlyStoreRejectsMutations(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("mirrors", tr)
	// The mutation functions are deliberately nil: if the capability check
	// ever let a call through, the test would panic
	s.Caps = ReadOnlyCapabilities()
	reg.Register(s)

	_, status, err := s.Create([]byte(`{}`))
	if err == nil {
		t.Error("Create() should fail on a read-only store")
	}
	if status != http.StatusMethodNotAllowed {
		t.Errorf("Create() status = %d, should be %d", status, http.StatusMethodNotAllowed)
	}

	_, status, err = s.Update(1, []byte(`{}`))
	if err == nil {
		t.Error("Update() should fail on a read-only store")
	}
	if status != http.StatusMethodNotAllowed {
		t.Errorf("Update() status = %d, should be %d", status, http.StatusMethodNotAllowed)
	}

	status, err = s.Delete(1)
	if err == nil {
		t.Error("Delete() should fail on a read-only store")
	}
	if status != http.StatusMethodNotAllowed {
		t.Errorf("Delete() status = %d, should be %d", status, http.StatusMethodNotAllowed)
	}
}

// failingBackend stands in for an unreachable memcached instance
type failingBackend struct{}

func (failingBackend) Set(key string, value []byte, ttl int32) error {
	return fmt.Errorf("memcached unreachable")
}

func (failingBackend) Get(key string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("memcached unreachable")
}

func (failingBackend) Delete(key string) error {
	return fmt.Errorf("memcached unreachable")
}

func TestReadsFailWhenBackendUnreachable(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	cache.InitCacheBackend(failingBackend{})

	// An unreachable backend must never look like an empty store
	_, status, err := s.GetAll()
	if err == nil {
		t.Fatal("GetAll() should fail when the cache backend is unreachable")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("GetAll() status = %d, should be %d", status, http.StatusInternalServerError)
	}

	serr, ok := err.(*e.StoreError)
	if !ok || serr.ErrorCode != e.StorageUnavailable {
		t.Errorf("GetAll() error = %+v, should carry code %d", err, e.StorageUnavailable)
	}

	// Nor like a deleted item
	_, status, err = s.GetOne(1)
	if err == nil {
		t.Fatal("GetOne(1) should fail when the cache backend is unreachable")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("GetOne(1) status = %d, should be %d", status, http.StatusInternalServerError)
	}

	// Rebuilds must not replace the snapshot from a backend they cannot read
	_, status, err = s.Rebuild(1)
	if err == nil {
		t.Fatal("Rebuild(1) should fail when the cache backend is unreachable")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("Rebuild(1) status = %d, should be %d", status, http.StatusInternalServerError)
	}
}

// testLocker records lock traffic in place of the redis implementation
type testLocker struct {
	mu       sync.Mutex
	locked   []string
	released int
}

func (l *testLocker) Lock(name string) (func(), error) {
	l.mu.Lock()
	l.locked = append(l.locked, name)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestRebuildHoldsSharedLock(t *testing.T) {
	reg, _ := newTestRegistry(t)
	locks := &testLocker{}
	reg.Locks = locks

	tr := newTestRows(map[int64]string{1: "one"})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, _, err := s.Rebuild(1)
	if err != nil {
		t.Fatalf("Rebuild(1) error: %v", err)
	}

	if len(locks.locked) != 1 || locks.locked[0] != "widgets" {
		t.Errorf("Rebuild(1) locks = %v, should be [widgets]", locks.locked)
	}
	if locks.released != 1 {
		t.Errorf("Rebuild(1) released %d locks, should be 1", locks.released)
	}

	_, _, err = s.Rebuild(0)
	if err != nil {
		t.Fatalf("Rebuild(0) error: %v", err)
	}

	if len(locks.locked) != 2 {
		t.Errorf("Rebuild(0) locks = %v, should hold the shared lock too", locks.locked)
	}
	if locks.released != 2 {
		t.Errorf("locks released = %d, should be 2", locks.released)
	}
}

func TestGetOneMissingEntry(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tr := newTestRows(map[int64]string{})
	s := newTestStore("widgets", tr)
	reg.Register(s)

	_, status, err := s.GetOne(99)
	if err == nil {
		t.Error("GetOne(99) should fail on an empty snapshot")
	}
	if status != http.StatusNotFound {
		t.Errorf("GetOne(99) status = %d, should be %d", status, http.StatusNotFound)
	}
}
