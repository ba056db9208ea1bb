// Package storage tests for interface compliance and contract verification.
package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stratadb/strata/internal/types"
)

// Compile-time interface conformance checks.
// These verify that mock implementations can satisfy the interfaces.
// Real conformance tests for sqlite are in internal/storage/sqlite.
var (
	_ Store       = (*mockStore)(nil)
	_ Transaction = (*mockTransaction)(nil)
)

// mockStore is a minimal mock for interface testing.
type mockStore struct{}

func (m *mockStore) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	return nil, nil
}
func (m *mockStore) ListProjects(ctx context.Context) ([]types.Project, error) { return nil, nil }
func (m *mockStore) ListProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	return nil, nil
}
func (m *mockStore) GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error) {
	return nil, nil
}
func (m *mockStore) GetCurrentFile(ctx context.Context, projectID int64, path string) (*FileWithContent, error) {
	return nil, nil
}
func (m *mockStore) ListCurrentFiles(ctx context.Context, projectID int64) ([]FileWithContent, error) {
	return nil, nil
}
func (m *mockStore) GetCheckoutByPath(ctx context.Context, projectID int64, path string) (*types.Checkout, error) {
	return nil, nil
}
func (m *mockStore) ListCheckouts(ctx context.Context, projectID int64) ([]types.Checkout, error) {
	return nil, nil
}
func (m *mockStore) DeleteCheckout(ctx context.Context, checkoutID int64) error { return nil }
func (m *mockStore) ListCommits(ctx context.Context, projectID, branchID int64, limit int) ([]types.Commit, error) {
	return nil, nil
}
func (m *mockStore) GetCommitByHash(ctx context.Context, hash string) (*types.Commit, error) {
	return nil, nil
}
func (m *mockStore) ListCommitFiles(ctx context.Context, commitID int64) ([]types.CommitFile, error) {
	return nil, nil
}
func (m *mockStore) GetBranchByName(ctx context.Context, projectID int64, name string) (*types.Branch, error) {
	return nil, nil
}
func (m *mockStore) GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error) {
	return nil, nil
}
func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	return nil
}
func (m *mockStore) Close() error                  { return nil }
func (m *mockStore) Path() string                  { return "" }
func (m *mockStore) UnderlyingDB() *sql.DB         { return nil }
func (m *mockStore) UnderlyingConn(ctx context.Context) (*sql.Conn, error) { return nil, nil }

// mockTransaction is a minimal mock for Transaction interface testing.
type mockTransaction struct{}

func (m *mockTransaction) UpsertProject(ctx context.Context, slug, name, sourceURL string) (*types.Project, error) {
	return nil, nil
}
func (m *mockTransaction) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	return nil, nil
}
func (m *mockTransaction) DeleteProject(ctx context.Context, slug string) error { return nil }
func (m *mockTransaction) PutBlob(ctx context.Context, payload []byte, kind types.ContentKind, encoding string) (string, error) {
	return "", nil
}
func (m *mockTransaction) GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error) {
	return nil, nil
}
func (m *mockTransaction) UpsertFile(ctx context.Context, projectID int64, path, typeTag, component string, lineCount int, modifiedAt int64) (*types.ProjectFile, error) {
	return nil, nil
}
func (m *mockTransaction) GetCurrentFileContent(ctx context.Context, fileID int64) (*types.FileContent, error) {
	return nil, nil
}
func (m *mockTransaction) ListCurrentFiles(ctx context.Context, projectID int64) ([]FileWithContent, error) {
	return nil, nil
}
func (m *mockTransaction) SetFileContent(ctx context.Context, fileID int64, contentHash string, size int64, lineCount int) (*types.FileContent, error) {
	return nil, nil
}
func (m *mockTransaction) MarkFileDeleted(ctx context.Context, fileID int64) error { return nil }
func (m *mockTransaction) GetOrCreateBranch(ctx context.Context, projectID int64, name string, isDefault bool) (*types.Branch, error) {
	return nil, nil
}
func (m *mockTransaction) AdvanceBranchHead(ctx context.Context, branchID, commitID int64) error {
	return nil
}
func (m *mockTransaction) InsertCommit(ctx context.Context, c *types.Commit) (int64, error) {
	return 0, nil
}
func (m *mockTransaction) InsertCommitFiles(ctx context.Context, files []types.CommitFile) error {
	return nil
}
func (m *mockTransaction) UpsertCheckout(ctx context.Context, projectID int64, path, branch string) (*types.Checkout, error) {
	return nil, nil
}
func (m *mockTransaction) ReplaceCheckoutSnapshot(ctx context.Context, checkoutID int64, snapshots []types.CheckoutSnapshot) error {
	return nil
}
func (m *mockTransaction) TouchCheckout(ctx context.Context, checkoutID int64) error { return nil }
func (m *mockTransaction) GetCheckoutSnapshot(ctx context.Context, checkoutID int64) (map[int64]types.CheckoutSnapshot, error) {
	return nil, nil
}
func (m *mockTransaction) UpdateCheckoutSnapshotEntries(ctx context.Context, checkoutID int64, upserts []types.CheckoutSnapshot, deletes []int64) error {
	return nil
}
func (m *mockTransaction) GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error) {
	return nil, nil
}

// TestConfig verifies the Config struct has expected fields.
func TestConfig(t *testing.T) {
	cfg := Config{
		Path:          "/tmp/test.db",
		BusyTimeoutMs: 5000,
	}
	if cfg.Path != "/tmp/test.db" {
		t.Errorf("expected path '/tmp/test.db', got %q", cfg.Path)
	}
	if cfg.BusyTimeoutMs != 5000 {
		t.Errorf("expected busy timeout 5000, got %d", cfg.BusyTimeoutMs)
	}
}

// TestInterfaceDocumentation verifies interface methods exist with expected
// signatures. This serves as documentation and catches accidental
// signature changes.
func TestInterfaceDocumentation(t *testing.T) {
	t.Run("Store interface has expected method groups", func(t *testing.T) {
		var s Store = &mockStore{}

		_ = s.GetProjectBySlug
		_ = s.ListProjects
		_ = s.ListProjectSummaries
		_ = s.GetBlob
		_ = s.GetCurrentFile
		_ = s.ListCurrentFiles
		_ = s.GetCheckoutByPath
		_ = s.ListCheckouts
		_ = s.DeleteCheckout
		_ = s.ListCommits
		_ = s.GetCommitByHash
		_ = s.ListCommitFiles
		_ = s.GetBranchByName
		_ = s.RunInTransaction
		_ = s.Close
		_ = s.Path
		_ = s.UnderlyingDB
		_ = s.UnderlyingConn
	})

	t.Run("Transaction interface has expected methods", func(t *testing.T) {
		var tx Transaction = &mockTransaction{}

		_ = tx.UpsertProject
		_ = tx.GetProjectBySlug
		_ = tx.DeleteProject
		_ = tx.PutBlob
		_ = tx.GetBlob
		_ = tx.UpsertFile
		_ = tx.GetCurrentFileContent
		_ = tx.ListCurrentFiles
		_ = tx.SetFileContent
		_ = tx.MarkFileDeleted
		_ = tx.GetOrCreateBranch
		_ = tx.AdvanceBranchHead
		_ = tx.InsertCommit
		_ = tx.InsertCommitFiles
		_ = tx.UpsertCheckout
		_ = tx.ReplaceCheckoutSnapshot
		_ = tx.TouchCheckout
		_ = tx.GetCheckoutSnapshot
		_ = tx.UpdateCheckoutSnapshotEntries
	})
}
