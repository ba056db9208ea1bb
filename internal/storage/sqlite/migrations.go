// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"
)

// Migration represents a single forward-only schema change applied after
// the base schema in schema.go. New migrations are appended to the end of
// migrationsList; each must be idempotent (CREATE TABLE IF NOT EXISTS /
// ALTER TABLE ADD COLUMN guarded by a column-existence check) so that
// running it twice against an already-migrated database is a no-op.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run at open
// time, after the base schema has been created.
var migrationsList = []Migration{
	{"watch_fallback_metadata", migrateWatchFallbackMetadata},
}

// migrateWatchFallbackMetadata seeds the watch_fallback_active metadata row
// with 'false' if it is absent. No other code in this module reads or
// updates that row; the checkout registry's watch mode does not consult it.
func migrateWatchFallbackMetadata(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO metadata (key, value) VALUES ('watch_fallback_active', 'false')`)
	return err
}

// RunMigrations executes the base schema and all registered migrations in
// order, followed by an invariant check. Uses an EXCLUSIVE transaction
// to prevent races when multiple processes open the same database file for
// the first time.
func RunMigrations(db *sql.DB) error {
	// PRAGMA foreign_keys must be toggled outside any transaction.
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply base schema: %w", err)
	}

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	if err := verifyInvariants(db); err != nil {
		return fmt.Errorf("post-migration validation failed: %w", err)
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true

	return nil
}

// verifyInvariants runs the cheap schema-level sanity checks that must hold
// immediately after (re-)applying the schema and migrations: every blob's
// stored reference_count matches a live scan of file_contents, and no file
// has more than one current content row. A full reconciliation scan is
// only affordable at migration time, not on every write, which is why the
// triggers in schema.go carry the steady-state bookkeeping.
func verifyInvariants(db *sql.DB) error {
	row := db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT cb.content_hash
			FROM content_blobs cb
			LEFT JOIN file_contents fc ON fc.content_hash = cb.content_hash
			GROUP BY cb.content_hash, cb.reference_count
			HAVING cb.reference_count <> COUNT(fc.id)
		)
	`)
	var mismatches int
	if err := row.Scan(&mismatches); err != nil {
		return fmt.Errorf("failed to verify blob reference counts: %w", err)
	}
	if mismatches > 0 {
		return fmt.Errorf("%d content blob(s) have a reference_count inconsistent with file_contents", mismatches)
	}

	row = db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT file_id FROM file_contents WHERE is_current = 1
			GROUP BY file_id HAVING COUNT(*) > 1
		)
	`)
	var duplicates int
	if err := row.Scan(&duplicates); err != nil {
		return fmt.Errorf("failed to verify current-content uniqueness: %w", err)
	}
	if duplicates > 0 {
		return fmt.Errorf("%d file(s) have more than one current content row", duplicates)
	}

	return nil
}
