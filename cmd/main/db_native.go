//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// openDB opens the model database with the pure Go driver.
func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open(driverName, dataSource)
}
