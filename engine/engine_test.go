package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratadb/strata/engine"
	"github.com/stratadb/strata/internal/types"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	t.Setenv("STRATA_DB_PATH", dbPath)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	e, err := engine.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeSourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":     "hello",
		"b.txt":     "hello",
		"src/c.bin": "\x00\x01\x02",
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestEngineImportCheckoutCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	src := writeSourceTree(t)
	summary, err := e.Import(ctx, "p", "p", src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.FilesAdded != 3 {
		t.Fatalf("FilesAdded = %d, want 3", summary.FilesAdded)
	}

	files, err := e.ListFiles(ctx, "p", "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("ListFiles returned %d entries, want 3", len(files))
	}

	workspace := filepath.Join(t.TempDir(), "work")
	checkoutResult, err := e.Checkout(ctx, "p", workspace, "", false)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if checkoutResult.FilesWritten != 3 {
		t.Fatalf("FilesWritten = %d, want 3", checkoutResult.FilesWritten)
	}

	if err := os.WriteFile(filepath.Join(workspace, "a.txt"), []byte("HELLO"), 0o644); err != nil {
		t.Fatal(err)
	}
	commitResult, err := e.Commit(ctx, "p", workspace, "uppercase a.txt", "alice", engine.StrategyAbort)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if commitResult.FilesModified != 1 {
		t.Fatalf("FilesModified = %d, want 1", commitResult.FilesModified)
	}

	log, err := e.Log(ctx, "p", "", 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 1 || log[0].CommitHash != commitResult.CommitHash {
		t.Fatalf("Log = %+v, want one entry matching %s", log, commitResult.CommitHash)
	}

	commit, commitFiles, err := e.Show(ctx, commitResult.CommitHash)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if commit.FilesChanged != 1 || len(commitFiles) != 1 {
		t.Fatalf("Show = %+v / %+v, want one changed file", commit, commitFiles)
	}

	view, err := e.GetCurrentFile(ctx, "p", "a.txt")
	if err != nil {
		t.Fatalf("GetCurrentFile: %v", err)
	}
	if view.Version != 2 {
		t.Errorf("a.txt version = %d, want 2", view.Version)
	}
}

func TestEngineDeleteProject(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	src := writeSourceTree(t)
	if _, err := e.Import(ctx, "p", "p", src); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := e.DeleteProject(ctx, "p"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := e.GetProject(ctx, "p"); err == nil {
		t.Fatal("expected GetProject to fail after delete")
	} else if _, ok := err.(*types.NotFoundError); !ok {
		t.Logf("got %T (wrapped NotFoundError expected via errors.As in real callers): %v", err, err)
	}
}
