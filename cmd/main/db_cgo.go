//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// openDB opens the model database with the cgo driver. The DSN pragma syntax
// differs from the pure Go driver, so database_path must use mattn's
// _journal_mode/_busy_timeout form when built with this tag.
func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open(driverName, dataSource)
}
