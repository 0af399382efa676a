// Package store provides keyed reads and writes for the recap schema.
// Every write commits independently; the pipeline resumes by re-reading
// current rows rather than relying on cross-table transactions.
package store

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

type Service struct {
	db     *sql.DB
	driver string
}

// New wires a store service over an opened database.
func New(db *sql.DB, driver string) (*Service, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Service{db: db, driver: strings.ToLower(driver)}, nil
}

// insertIgnore renders the driver-specific prefix for write-once inserts.
func (s *Service) insertIgnore() string {
	if s.driver == "mysql" {
		return "INSERT IGNORE"
	}
	return "INSERT OR IGNORE"
}
