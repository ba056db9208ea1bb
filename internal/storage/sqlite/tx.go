package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// sqliteTx implements storage.Transaction over a single *sql.Tx.
type sqliteTx struct {
	tx             *sql.Tx
	blobVerifyMode types.BlobVerifyMode
}

var _ storage.Transaction = (*sqliteTx)(nil)

// RunInTransaction runs fn inside one database transaction. The DSN's
// _txlock=immediate setting makes every Begin() acquire the write lock
// immediately (BEGIN IMMEDIATE), so of two concurrent writers the second
// waits (up to the busy timeout, then fails with SQLITE_BUSY) instead of
// both proceeding through the diff/compare stage before one of them commits. Commits iff fn returns nil; rolls back (and
// re-raises) on panic; rolls back and propagates the error otherwise.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stx := &sqliteTx{tx: tx, blobVerifyMode: s.blobVerifyMode}
	if err := fn(stx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return nil
}
