package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	e "github.com/microcosm-cc/appstore/errors"
)

// ItemType encapsulates an item, the canonical representation served and
// cached by the items store
type ItemType struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"categoryId"`
	Price       float64 `json:"price"`
	InStock     bool    `json:"inStock"`

	Created time.Time `json:"created"`
	Edited  time.Time `json:"edited"`
}

// Validate returns true if an item is valid
func (m *ItemType) Validate() (int, error) {
	if m.Title == "" {
		return http.StatusBadRequest, e.New(
			"item.Validate", e.ValidationFailed, "title is required",
		)
	}

	if len(m.Title) > 150 {
		return http.StatusBadRequest, e.New(
			"item.Validate", e.ValidationFailed, "title may not exceed 150 characters",
		)
	}

	if m.Price < 0 {
		return http.StatusBadRequest, e.New(
			"item.Validate", e.ValidationFailed, "price may not be negative",
		)
	}

	if m.CategoryID <= 0 {
		return http.StatusBadRequest, e.New(
			"item.Validate", e.ValidationFailed, "categoryId is required",
		)
	}

	return http.StatusOK, nil
}

func scanItem(scanner interface {
	Scan(dest ...interface{}) error
}) (ItemType, error) {

	var m ItemType
	err := scanner.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.CategoryID,
		&m.Price,
		&m.InStock,
		&m.Created,
		&m.Edited,
	)

	return m, err
}

const itemColumns = `item_id, title, description, category_id, price, in_stock, created, edited`

// NewItemStore describes the items collection: full CRUD, cached
func NewItemStore() *Store {
	return &Store{
		Name: "items",
		Caps: AllCapabilities(),

		FetchAll: func(db *sql.DB) (map[int64]json.RawMessage, error) {
			rows, err := db.Query(`
SELECT ` + itemColumns + `
  FROM items`)
			if err != nil {
				return nil, fmt.Errorf("database query failed: %v", err)
			}
			defer rows.Close()

			data := map[int64]json.RawMessage{}
			for rows.Next() {
				m, err := scanItem(rows)
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
			m, err := scanItem(db.QueryRow(`
SELECT `+itemColumns+`
  FROM items
 WHERE item_id = $1`,
				id,
			))
			if err == sql.ErrNoRows {
				return nil, http.StatusNotFound, e.New(
					"items.FetchOne",
					e.ItemNotFound,
					fmt.Sprintf("item %d not found", id),
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

		Insert: func(tx *sql.Tx, payload []byte) (int64, int, error) {
			var m ItemType
			err := json.Unmarshal(payload, &m)
			if err != nil {
				return 0, http.StatusBadRequest, e.New(
					"items.Insert",
					e.InvalidContent,
					fmt.Sprintf("the post data is invalid: %v", err),
				)
			}

			status, err := m.Validate()
			if err != nil {
				return 0, status, err
			}

			status, err = categoryMustExist(tx, m.CategoryID)
			if err != nil {
				return 0, status, err
			}

			var insertID int64
			err = tx.QueryRow(`
INSERT INTO items (
    title, description, category_id, price, in_stock, created, edited
) VALUES (
    $1, $2, $3, $4, $5, NOW(), NOW()
) RETURNING item_id`,
				m.Title,
				m.Description,
				m.CategoryID,
				m.Price,
				m.InStock,
			).Scan(&insertID)
			if err != nil {
				return 0, http.StatusInternalServerError,
					fmt.Errorf("error inserting data: %v", err)
			}

			return insertID, http.StatusOK, nil
		},

		Amend: func(tx *sql.Tx, id int64, payload []byte) (int, error) {
			var m ItemType
			err := json.Unmarshal(payload, &m)
			if err != nil {
				return http.StatusBadRequest, e.New(
					"items.Amend",
					e.InvalidContent,
					fmt.Sprintf("the post data is invalid: %v", err),
				)
			}

			status, err := m.Validate()
			if err != nil {
				return status, err
			}

			status, err = categoryMustExist(tx, m.CategoryID)
			if err != nil {
				return status, err
			}

			res, err := tx.Exec(`
UPDATE items
   SET title = $2,
       description = $3,
       category_id = $4,
       price = $5,
       in_stock = $6,
       edited = NOW()
 WHERE item_id = $1`,
				id,
				m.Title,
				m.Description,
				m.CategoryID,
				m.Price,
				m.InStock,
			)
			if err != nil {
				return http.StatusInternalServerError,
					fmt.Errorf("error updating data: %v", err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return http.StatusInternalServerError, err
			}
			if affected == 0 {
				return http.StatusNotFound, e.New(
					"items.Amend",
					e.ItemNotFound,
					fmt.Sprintf("item %d not found", id),
				)
			}

			return http.StatusOK, nil
		},

		Remove: func(tx *sql.Tx, id int64) (int, error) {
			res, err := tx.Exec(`
DELETE
  FROM items
 WHERE item_id = $1`,
				id,
			)
			if err != nil {
				return http.StatusInternalServerError,
					fmt.Errorf("error deleting data: %v", err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return http.StatusInternalServerError, err
			}
			if affected == 0 {
				return http.StatusNotFound, e.New(
					"items.Remove",
					e.ItemNotFound,
					fmt.Sprintf("item %d not found", id),
				)
			}

			return http.StatusOK, nil
		},
	}
}

// categoryMustExist rejects items pointing at a category that is not in the
// reference table
func categoryMustExist(tx *sql.Tx, categoryID int64) (int, error) {
	var exists bool
	err := tx.QueryRow(`
SELECT EXISTS(
SELECT 1
  FROM categories
 WHERE category_id = $1
)`,
		categoryID,
	).Scan(&exists)
	if err != nil {
		return http.StatusInternalServerError,
			fmt.Errorf("database query failed: %v", err)
	}

	if !exists {
		return http.StatusBadRequest, e.New(
			"items.categoryMustExist",
			e.ValidationFailed,
			fmt.Sprintf("category %d does not exist", categoryID),
		)
	}

	return http.StatusOK, nil
}
