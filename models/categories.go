package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	e "github.com/microcosm-cc/appstore/errors"
)

// CategoryType encapsulates a category. The categories table is managed by
// migrations, not by this API, so the store mirroring it is read-only.
type CategoryType struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

const categoryColumns = `category_id, title, slug`

// NewCategoryStore describes the categories collection: a read-only mirror
// of an externally managed reference table. Every mutation responds 405.
func NewCategoryStore() *Store {
	return &Store{
		Name: "categories",
		Caps: ReadOnlyCapabilities(),

		FetchAll: func(db *sql.DB) (map[int64]json.RawMessage, error) {
			rows, err := db.Query(`
SELECT ` + categoryColumns + `
  FROM categories`)
			if err != nil {
				return nil, fmt.Errorf("database query failed: %v", err)
			}
			defer rows.Close()

			data := map[int64]json.RawMessage{}
			for rows.Next() {
				var m CategoryType
				err = rows.Scan(&m.ID, &m.Title, &m.Slug)
				if err != nil {
					return nil, fmt.Errorf("row parsing error: %v", err)
				}

				rep, err := json.Marshal(m)
				if err != nil {
					return nil, err
				}

				data[m.ID] = rep
			}
			err = rows.Err()
			if err != nil {
				return nil, fmt.Errorf("error fetching rows: %v", err)
			}

			return data, nil
		},

		FetchOne: func(db *sql.DB, id int64) (json.RawMessage, int, error) {
			var m CategoryType
			err := db.QueryRow(`
SELECT `+categoryColumns+`
  FROM categories
 WHERE category_id = $1`,
				id,
			).Scan(&m.ID, &m.Title, &m.Slug)
			if err == sql.ErrNoRows {
				return nil, http.StatusNotFound, e.New(
					"categories.FetchOne",
					e.ItemNotFound,
					fmt.Sprintf("category %d not found", id),
				)
			}
			if err != nil {
				return nil, http.StatusInternalServerError,
					fmt.Errorf("database query failed: %v", err)
			}

			rep, err := json.Marshal(m)
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}

			return rep, http.StatusOK, nil
		},
	}
}
