package commitengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratadb/strata/internal/checkout"
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

func seedProject(t *testing.T, store storage.Store) int64 {
	t.Helper()
	var projectID int64
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		p, err := tx.UpsertProject(context.Background(), "p", "p", "")
		if err != nil {
			return err
		}
		projectID = p.ID
		for _, f := range []struct{ path, content string }{
			{"a.txt", "hello\n"},
			{"sub/b.txt", "world\n"},
		} {
			hash, err := tx.PutBlob(context.Background(), []byte(f.content), types.ContentText, "utf-8")
			if err != nil {
				return err
			}
			file, err := tx.UpsertFile(context.Background(), projectID, f.path, "source", "", 1, 0)
			if err != nil {
				return err
			}
			if _, err := tx.SetFileContent(context.Background(), file.ID, hash, int64(len(f.content)), 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seedProject: %v", err)
	}
	return projectID
}

func ruleSet() scanner.RuleSet {
	return scanner.DefaultRuleSet(8 * 1024 * 1024)
}

func mustCheckout(t *testing.T, store storage.Store, dir string) {
	t.Helper()
	if _, err := checkout.Checkout(context.Background(), store, "p", dir, "", false); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
}

func TestCommitAddModifyDelete(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	dir := filepath.Join(t.TempDir(), "work")
	mustCheckout(t, store, dir)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello again\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "sub", "b.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("new file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Commit(context.Background(), store, "p", dir, "alice", "edit", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.FilesAdded != 1 || result.FilesModified != 1 || result.FilesDeleted != 1 {
		t.Fatalf("got %+v, want 1/1/1", result)
	}
	if result.CommitHash == "" {
		t.Fatal("expected non-empty commit hash")
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	files, err := store.ListCurrentFiles(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("ListCurrentFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 current files (a.txt, c.txt), got %d", len(files))
	}
}

func TestCommitConflictAbortThenForce(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	mustCheckout(t, store, dirA)
	mustCheckout(t, store, dirB)

	if err := os.WriteFile(filepath.Join(dirA, "a.txt"), []byte("from A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Commit(context.Background(), store, "p", dirA, "alice", "A's edit", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet()); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dirB, "a.txt"), []byte("from B\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Commit(context.Background(), store, "p", dirB, "bob", "B's edit", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet())
	if err == nil {
		t.Fatal("expected a conflict error")
	}
	conflictErr, ok := err.(*types.CommitConflictError)
	if !ok {
		t.Fatalf("got %T, want *types.CommitConflictError", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].Path != "a.txt" {
		t.Fatalf("unexpected conflicts: %+v", conflictErr.Conflicts)
	}
	if conflictErr.Conflicts[0].LastAuthor != "alice" {
		t.Errorf("LastAuthor = %q, want alice", conflictErr.Conflicts[0].LastAuthor)
	}

	result, err := Commit(context.Background(), store, "p", dirB, "bob", "B's forced edit", types.StrategyForce, types.EmptyCommitAcceptNoOp, ruleSet())
	if err != nil {
		t.Fatalf("forced commit: %v", err)
	}
	if result.FilesModified != 1 {
		t.Fatalf("got %+v, want FilesModified 1", result)
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	fw, err := store.GetCurrentFile(context.Background(), project.ID, "a.txt")
	if err != nil {
		t.Fatalf("GetCurrentFile: %v", err)
	}
	blob, err := store.GetBlob(context.Background(), fw.Content.ContentHash)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(blob.Payload) != "from B\n" {
		t.Errorf("current content = %q, want %q", blob.Payload, "from B\n")
	}
}

func TestCommitConsecutiveFromSameCheckoutNoFalseConflict(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	dir := filepath.Join(t.TempDir(), "work")
	mustCheckout(t, store, dir)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Commit(context.Background(), store, "p", dir, "alice", "v2", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet()); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Commit(context.Background(), store, "p", dir, "alice", "v3", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet()); err != nil {
		t.Fatalf("second commit from same checkout should not conflict: %v", err)
	}
}

func TestCommitDoesNotDeleteFileOutsideCheckoutSnapshot(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	mustCheckout(t, store, dirA)
	mustCheckout(t, store, dirB)

	// Worker B adds a file that worker A's checkout snapshot never recorded
	// (it didn't exist at A's checkout time, and A's directory never gets
	// it written to it either).
	if err := os.WriteFile(filepath.Join(dirB, "out-of-band.txt"), []byte("from B\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Commit(context.Background(), store, "p", dirB, "bob", "B adds a file", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet()); err != nil {
		t.Fatalf("B's commit: %v", err)
	}

	// Worker A commits an unrelated edit, never having seen out-of-band.txt
	// at checkout or in its own workspace.
	if err := os.WriteFile(filepath.Join(dirA, "a.txt"), []byte("from A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := Commit(context.Background(), store, "p", dirA, "alice", "A's edit", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet())
	if err != nil {
		t.Fatalf("A's commit: %v", err)
	}
	if result.FilesDeleted != 0 {
		t.Fatalf("got FilesDeleted %d, want 0: out-of-band.txt must not be classified Deleted", result.FilesDeleted)
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	if _, err := store.GetCurrentFile(context.Background(), project.ID, "out-of-band.txt"); err != nil {
		t.Fatalf("out-of-band.txt should still be current after A's unrelated commit: %v", err)
	}
}

func TestCommitEmptyPolicy(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	dir := filepath.Join(t.TempDir(), "work")
	mustCheckout(t, store, dir)

	result, err := Commit(context.Background(), store, "p", dir, "alice", "no-op", types.StrategyAbort, types.EmptyCommitAcceptNoOp, ruleSet())
	if err != nil {
		t.Fatalf("accept_no_op commit should succeed silently: %v", err)
	}
	if result.CommitID != 0 {
		t.Errorf("expected zero Result for a no-op commit, got %+v", result)
	}

	_, err = Commit(context.Background(), store, "p", dir, "alice", "no-op", types.StrategyAbort, types.EmptyCommitReject, ruleSet())
	if err != ErrEmptyCommit {
		t.Errorf("got %v, want ErrEmptyCommit", err)
	}
}
