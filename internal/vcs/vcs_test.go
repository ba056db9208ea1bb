package vcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stratadb/strata/internal/checkout"
	"github.com/stratadb/strata/internal/commitengine"
	"github.com/stratadb/strata/internal/scanner"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/storage/sqlite"
	"github.com/stratadb/strata/internal/types"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.Open(context.Background(), storage.Config{Path: path, BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedAndCommit(t *testing.T, store storage.Store) (dir string, commitHash string) {
	t.Helper()
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := tx.UpsertProject(context.Background(), "p", "p", "")
		return err
	})
	if err != nil {
		t.Fatalf("seeding project: %v", err)
	}

	dir = filepath.Join(t.TempDir(), "work")
	if _, err := checkout.Checkout(context.Background(), store, "p", dir, "", false); err != nil {
		t.Fatalf("initial checkout: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rs := scanner.DefaultRuleSet(8 * 1024 * 1024)
	result, err := commitengine.Commit(context.Background(), store, "p", dir, "alice", "add a.txt", types.StrategyAbort, types.EmptyCommitAcceptNoOp, rs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, result.CommitHash
}

func TestLogAndShow(t *testing.T) {
	store := newTestStore(t)
	dir, hash := seedAndCommit(t, store)
	_ = dir

	entries, err := Log(context.Background(), store, "p", "", 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 1 || entries[0].CommitHash != hash {
		t.Fatalf("Log = %+v, want one entry with hash %s", entries, hash)
	}

	show, err := ShowCommit(context.Background(), store, hash)
	if err != nil {
		t.Fatalf("ShowCommit: %v", err)
	}
	if len(show.Files) != 1 || show.Files[0].NewPath != "a.txt" {
		t.Fatalf("Show.Files = %+v, want one entry for a.txt", show.Files)
	}
}

func TestDiffCommitRendersUnifiedDiff(t *testing.T) {
	store := newTestStore(t)
	_, hash := seedAndCommit(t, store)

	out, err := DiffCommit(context.Background(), store, hash)
	if err != nil {
		t.Fatalf("DiffCommit: %v", err)
	}
	if !strings.Contains(out, "+line one") || !strings.Contains(out, "+line two") {
		t.Errorf("diff output missing expected added lines:\n%s", out)
	}
	if !strings.Contains(out, "a/a.txt") || !strings.Contains(out, "b/a.txt") {
		t.Errorf("diff output missing file headers:\n%s", out)
	}
}

func TestDiffBinaryFilesReportsDiffer(t *testing.T) {
	store := newTestStore(t)

	var oldHash, newHash string
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		var err error
		oldHash, err = tx.PutBlob(context.Background(), []byte{0x00, 0x01, 0xff}, types.ContentBinary, "")
		if err != nil {
			return err
		}
		newHash, err = tx.PutBlob(context.Background(), []byte{0x00, 0x02, 0xff}, types.ContentBinary, "")
		return err
	})
	if err != nil {
		t.Fatalf("seeding blobs: %v", err)
	}

	out, err := Diff(context.Background(), store, "asset.bin", oldHash, newHash)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(out, "Binary files asset.bin differ") {
		t.Errorf("got %q, want a binary-files-differ message", out)
	}
}
