package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stratadb/strata/internal/storage"
)

// newTestStore opens a file-backed Store rooted in t.TempDir(). File-based
// databases exercise the same locking and WAL behavior production sees;
// a shared ":memory:" DSN would let unrelated tests interfere with each
// other's schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(context.Background(), storage.Config{Path: path, BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store
}
