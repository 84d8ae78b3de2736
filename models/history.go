package models

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	h "github.com/microcosm-cc/appstore/helpers"
)

// Single-char state codes recorded against every history record
const (
	StateCreated    = `C`
	StateUpdated    = `U`
	StateDeleted    = `D`
	StateFullReload = `F`
)

// HistoryRecordType is one append-only entry in the store history: which
// store (absent for global events) and which item (absent for whole-store
// events) changed, how, and at which cache version. Records are never
// mutated or deleted once written.
type HistoryRecordType struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	StoreName string    `json:"storeName,omitempty"`
	ItemID    int64     `json:"itemId,omitempty"`
	State     string    `json:"state"`
	AddedOn   time.Time `json:"addedOn"`
}

// HistoryQueryType filters history reads. After and Since are mutually
// exclusive; After wins when both are set, matching the REST surface.
type HistoryQueryType struct {
	// After selects records with a version strictly greater than this
	After int64
	// Since selects records with a version greater than or equal to this
	Since int64
	// StoreName optionally restricts records to one store
	StoreName string
}

// HistoryStore is the append-only ledger of cache-affecting events. The
// postgres implementation is the production one; the in-memory
// implementation backs tests and the nocache development mode.
type HistoryStore interface {
	// Append inserts one record; never fails except on infrastructure error
	Append(rec HistoryRecordType) error
	// Query returns matching records in insertion order
	Query(q HistoryQueryType) ([]HistoryRecordType, int, error)
	// LatestVersionFor returns the most recent version recorded for a
	// store, and false when the store has no record yet
	LatestVersionFor(storeName string) (int64, bool, error)
}

// PgHistoryStore keeps history in the store_history table
type PgHistoryStore struct{}

// NewPgHistoryStore returns the postgres-backed ledger
func NewPgHistoryStore() *PgHistoryStore {
	return &PgHistoryStore{}
}

// Append inserts one record
func (hs *PgHistoryStore) Append(rec HistoryRecordType) error {
	db, err := h.GetConnection()
	if err != nil {
		return err
	}

	storeName := sql.NullString{String: rec.StoreName, Valid: rec.StoreName != ""}
	itemID := sql.NullInt64{Int64: rec.ItemID, Valid: rec.ItemID != 0}

	_, err = db.Exec(`
INSERT INTO store_history (
    version, store_name, item_id, state
) VALUES (
    $1, $2, $3, $4
)`,
		rec.Version,
		storeName,
		itemID,
		rec.State,
	)
	if err != nil {
		return fmt.Errorf("error inserting data: %v", err)
	}

	return nil
}

// Query returns matching records in insertion order
func (hs *PgHistoryStore) Query(q HistoryQueryType) ([]HistoryRecordType, int, error) {
	db, err := h.GetConnection()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	sqlStr := `
SELECT history_id, version, store_name, item_id, state, added_on
  FROM store_history`

	var (
		wheres []string
		args   []interface{}
	)

	if q.After > 0 {
		args = append(args, q.After)
		wheres = append(wheres, fmt.Sprintf(`version > $%d`, len(args)))
	} else if q.Since > 0 {
		args = append(args, q.Since)
		wheres = append(wheres, fmt.Sprintf(`version >= $%d`, len(args)))
	}

	if q.StoreName != "" {
		args = append(args, q.StoreName)
		wheres = append(wheres, fmt.Sprintf(`store_name = $%d`, len(args)))
	}

	for i, where := range wheres {
		if i == 0 {
			sqlStr += `
 WHERE ` + where
		} else {
			sqlStr += `
   AND ` + where
		}
	}

	sqlStr += `
 ORDER BY added_on, history_id`

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("database query failed: %v", err)
	}
	defer rows.Close()

	records := []HistoryRecordType{}
	for rows.Next() {
		var (
			rec       HistoryRecordType
			storeName sql.NullString
			itemID    sql.NullInt64
		)
		err = rows.Scan(
			&rec.ID,
			&rec.Version,
			&storeName,
			&itemID,
			&rec.State,
			&rec.AddedOn,
		)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("row parsing error: %v", err)
		}

		rec.StoreName = storeName.String
		rec.ItemID = itemID.Int64

		records = append(records, rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("error fetching rows: %v", err)
	}

	return records, http.StatusOK, nil
}

// LatestVersionFor returns the most recent version recorded for a store
func (hs *PgHistoryStore) LatestVersionFor(storeName string) (int64, bool, error) {
	db, err := h.GetConnection()
	if err != nil {
		return 0, false, err
	}

	var version int64
	err = db.QueryRow(`
SELECT version
  FROM store_history
 WHERE store_name = $1
 ORDER BY version DESC
 LIMIT 1`,
		storeName,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("database query failed: %v", err)
	}

	return version, true, nil
}

// MemHistoryStore keeps history in process memory. Used by tests and when
// running without postgres; the contract is identical to the postgres
// implementation.
type MemHistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []HistoryRecordType
}

// NewMemHistoryStore returns an empty in-memory ledger
func NewMemHistoryStore() *MemHistoryStore {
	return &MemHistoryStore{}
}

// Append inserts one record
func (hs *MemHistoryStore) Append(rec HistoryRecordType) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	hs.nextID++
	rec.ID = hs.nextID
	if rec.AddedOn.IsZero() {
		rec.AddedOn = time.Now()
	}
	hs.records = append(hs.records, rec)

	return nil
}

// Query returns matching records in insertion order
func (hs *MemHistoryStore) Query(q HistoryQueryType) ([]HistoryRecordType, int, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	records := []HistoryRecordType{}
	for _, rec := range hs.records {
		if q.After > 0 && rec.Version <= q.After {
			continue
		}
		if q.After == 0 && q.Since > 0 && rec.Version < q.Since {
			continue
		}
		if q.StoreName != "" && rec.StoreName != q.StoreName {
			continue
		}
		records = append(records, rec)
	}

	return records, http.StatusOK, nil
}

// LatestVersionFor returns the most recent version recorded for a store
func (hs *MemHistoryStore) LatestVersionFor(storeName string) (int64, bool, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	var (
		version int64
		found   bool
	)
	for _, rec := range hs.records {
		if rec.StoreName == storeName && rec.Version > version {
			version = rec.Version
			found = true
		}
	}

	return version, found, nil
}
