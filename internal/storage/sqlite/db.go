// Package sqlite implements the storage.Store interface on top of a single
// embedded SQLite database file, using the pure-Go driver so the module
// never requires cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// Store is the sqlite-backed implementation of storage.Store.
type Store struct {
	db             *sql.DB
	path           string
	blobVerifyMode types.BlobVerifyMode
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at cfg.Path, applies the
// base schema and any pending migrations under a cross-process exclusive
// file lock, and returns a ready-to-use Store.
//
// The file lock (via gofrs/flock) guards the window between process start
// and schema bootstrap: two processes racing to create the same database
// file for the first time will serialize here instead of one observing a
// half-created schema.
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: config.Path must not be empty")
	}
	busyTimeout := cfg.BusyTimeoutMs
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	if cfg.Path != ":memory:" && !isInMemoryDSN(cfg.Path) {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, types.NewIOError(dir, err)
			}
		}

		lockPath := cfg.Path + ".boot.lock"
		lock := flock.New(lockPath)
		locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("sqlite: acquiring bootstrap lock: %w", err)
		}
		if !locked {
			if err := lock.Lock(); err != nil {
				return nil, fmt.Errorf("sqlite: acquiring bootstrap lock: %w", err)
			}
		}
		defer lock.Unlock()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_txlock=immediate", cfg.Path, busyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	mode := cfg.BlobVerifyMode
	if mode == "" {
		mode = types.BlobVerifyOff
	}

	return &Store{db: db, path: cfg.Path, blobVerifyMode: mode}, nil
}

func isInMemoryDSN(path string) bool {
	return path == ":memory:" || (len(path) >= 5 && path[:5] == "file:")
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path this Store was opened with.
func (s *Store) Path() string {
	return s.path
}

// UnderlyingDB exposes the raw *sql.DB for diagnostics; callers must not
// use it to bypass the transaction gateway for mutations.
func (s *Store) UnderlyingDB() *sql.DB {
	return s.db
}

// UnderlyingConn checks out a single dedicated connection, for callers
// that need session-local PRAGMAs like query_only.
func (s *Store) UnderlyingConn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}
