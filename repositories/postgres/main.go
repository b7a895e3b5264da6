// Package postgres owns the durable job store: jobs, staged files,
// download attempts and the append-only audit trail.
package postgres

import (
	"database/sql"
	_ "embed"
)

//go:embed schema.sql
var schema string

// EnsureSchema applies the DDL. Statements are idempotent, so this
// runs unconditionally at every boot.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
