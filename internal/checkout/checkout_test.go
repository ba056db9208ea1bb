package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

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
			{"a.txt", "hello"},
			{"sub/b.txt", "world"},
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

func TestCheckoutWritesFilesAndSnapshot(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	target := filepath.Join(t.TempDir(), "work")

	result, err := Checkout(context.Background(), store, "p", target, "", false)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.FilesWritten != 2 {
		t.Errorf("FilesWritten = %d, want 2", result.FilesWritten)
	}

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("reading a.txt: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("a.txt content = %q, want hello", data)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) == "" {
		t.Fatal("unreachable")
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	co, err := store.GetCheckoutByPath(context.Background(), project.ID, absPath(t, target))
	if err != nil {
		t.Fatalf("GetCheckoutByPath: %v", err)
	}
	if co.Branch != "main" {
		t.Errorf("branch = %q, want main (project default)", co.Branch)
	}

	err = store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		snapshot, err := tx.GetCheckoutSnapshot(context.Background(), co.ID)
		if err != nil {
			return err
		}
		if len(snapshot) != 2 {
			t.Errorf("snapshot has %d entries, want 2", len(snapshot))
		}
		for fileID, s := range snapshot {
			if s.Version != 1 {
				t.Errorf("snapshot version for file %d = %d, want 1", fileID, s.Version)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
}

func absPath(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func TestCheckoutRefusesNonEmptyWithoutForce(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "preexisting"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Checkout(context.Background(), store, "p", target, "", false)
	if err == nil {
		t.Fatal("expected error checking out into a non-empty directory without force")
	}
	if _, ok := err.(*types.AlreadyExistsError); !ok {
		t.Errorf("got %T, want *types.AlreadyExistsError", err)
	}

	if _, err := Checkout(context.Background(), store, "p", target, "", true); err != nil {
		t.Errorf("force checkout should succeed: %v", err)
	}
}

func TestRegistryListAndPrune(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	target := filepath.Join(t.TempDir(), "work")
	if _, err := Checkout(context.Background(), store, "p", target, "", false); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	rows, err := List(context.Background(), store, project.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || !rows[0].PathExists {
		t.Fatalf("expected one existing checkout row, got %+v", rows)
	}

	if err := os.RemoveAll(target); err != nil {
		t.Fatal(err)
	}

	rows, err = List(context.Background(), store, project.ID)
	if err != nil {
		t.Fatalf("List after removal: %v", err)
	}
	if rows[0].PathExists {
		t.Fatal("expected PathExists = false after directory removal")
	}

	count, err := Prune(context.Background(), store, project.ID, false)
	if err != nil {
		t.Fatalf("dry-run Prune: %v", err)
	}
	if count != 1 {
		t.Errorf("dry-run Prune count = %d, want 1", count)
	}
	rows, _ = List(context.Background(), store, project.ID)
	if len(rows) != 1 {
		t.Fatal("dry-run Prune should not have deleted anything")
	}

	count, err = Prune(context.Background(), store, project.ID, true)
	if err != nil {
		t.Fatalf("forced Prune: %v", err)
	}
	if count != 1 {
		t.Errorf("forced Prune count = %d, want 1", count)
	}
	rows, _ = List(context.Background(), store, project.ID)
	if len(rows) != 0 {
		t.Errorf("expected no checkout rows after forced prune, got %d", len(rows))
	}
}

func TestWatchPollingFallbackReportsStaleCheckout(t *testing.T) {
	store := newTestStore(t)
	seedProject(t, store)
	target := filepath.Join(t.TempDir(), "work")
	if _, err := Checkout(context.Background(), store, "p", target, "", false); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	project, _ := store.GetProjectBySlug(context.Background(), "p")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := make(chan StaleEvent, 1)
	go pollLoop(ctx, store, project.ID, 20*time.Millisecond, events)

	if err := os.RemoveAll(target); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.CheckoutID == 0 {
			t.Error("expected a non-zero checkout id in StaleEvent")
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for stale event")
	}
}
