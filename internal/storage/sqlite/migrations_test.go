package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrationsCreatesSchema(t *testing.T) {
	db := openRawTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	tables := []string{
		"projects", "content_blobs", "project_files", "file_contents",
		"branches", "commits", "commit_files", "checkouts",
		"checkout_snapshots", "config", "metadata",
	}
	for _, tbl := range tables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, tbl).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", tbl, err)
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openRawTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first RunMigrations: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations should be a no-op, got: %v", err)
	}

	var value string
	if err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'watch_fallback_active'`).Scan(&value); err != nil {
		t.Fatalf("expected seeded metadata row: %v", err)
	}
	if value != "false" {
		t.Errorf("expected 'false', got %q", value)
	}
}

func TestVerifyInvariantsDetectsReferenceCountMismatch(t *testing.T) {
	db := openRawTestDB(t)
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	hash := "00000000000000000000000000000000000000000000000000000000000000aa"
	if _, err := db.Exec(
		`INSERT INTO content_blobs (content_hash, payload, kind, size, reference_count) VALUES (?, ?, 'text', 1, 5)`,
		hash, []byte("x"),
	); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	if err := verifyInvariants(db); err == nil {
		t.Fatal("expected verifyInvariants to detect the mismatched reference_count")
	}
}
