package sqlite

import (
	"context"
	"database/sql"
)

// execer is the subset of *sql.DB / *sql.Tx that the per-entity query
// helpers need. Sharing it lets the same SQL live in one place whether it
// runs standalone (Store read paths) or inside a transaction
// (sqliteTx write and read paths).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ execer = (*sql.DB)(nil)
	_ execer = (*sql.Tx)(nil)
)
