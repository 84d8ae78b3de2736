package helpers

import (
	"database/sql"
	"fmt"

	"github.com/golang/glog"
	// Registers the postgres driver with database/sql
	_ "github.com/lib/pq"
)

var db *sql.DB

// DBConfig stores the connection information used by InitDBConnection to
// establish a connection to the database
type DBConfig struct {
	Host     string
	Port     int64
	Database string
	Username string
	Password string
}

// InitDBConnection will establish the connection to the database or die trying
func InitDBConnection(c DBConfig) {
	var err error
	db, err = sql.Open(
		"postgres",
		fmt.Sprintf(
			"user=%s dbname=%s host=%s port=%d password=%s sslmode=%s",
			c.Username,
			c.Database,
			c.Host,
			c.Port,
			c.Password,
			"disable",
		),
	)
	if err != nil {
		glog.Fatal(fmt.Sprintf("Database connection failed: %v", err.Error()))
	}

	err = db.Ping()
	if err != nil {
		glog.Fatal(err)
	}

	// PostgreSQL max is 100, we need to be below that limit as there may be
	// connections from monitoring apps, migrations in process or active
	// debugging by staff
	db.SetMaxOpenConns(90)
}

// GetConnection returns a connection from the connection pool of the already
// instantiated db object
func GetConnection() (*sql.DB, error) {
	return db, nil
}

// GetTransaction will begin and then return a transaction on the already
// instantiated db object
func GetTransaction() (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("could not start a transaction: %v", err.Error())
	}

	return tx, err
}
