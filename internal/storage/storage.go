// Package storage defines the interface for the engine's storage backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/stratadb/strata/internal/types"
)

// ErrDBNotInitialized is returned when a storage feature is used before the
// database has been opened and migrated.
var ErrDBNotInitialized = errors.New("database not initialized")

// Transaction exposes the subset of Store operations that are safe to call
// inside a single atomic scope. Every multi-row mutation the engine
// performs (import, checkout, commit) runs entirely through one
// Transaction so that either all of its writes land or none do.
//
// # Transaction semantics
//
//   - All operations within the transaction share one connection.
//   - Changes are invisible to other connections until commit.
//   - A non-nil return from the RunInTransaction callback rolls back.
//   - A panic inside the callback rolls back and re-raises.
//
// # SQLite specifics
//
//   - Uses BEGIN IMMEDIATE to acquire the write lock early, so two writers
//     can't both pass the diff stage before one commits.
type Transaction interface {
	// Projects
	UpsertProject(ctx context.Context, slug, name, sourceURL string) (*types.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error)
	DeleteProject(ctx context.Context, slug string) error

	// Blobs
	PutBlob(ctx context.Context, payload []byte, kind types.ContentKind, encoding string) (string, error)
	GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error)

	// Files
	UpsertFile(ctx context.Context, projectID int64, path, typeTag, component string, lineCount int, modifiedAt int64) (*types.ProjectFile, error)
	GetCurrentFileContent(ctx context.Context, fileID int64) (*types.FileContent, error)
	ListCurrentFiles(ctx context.Context, projectID int64) ([]FileWithContent, error)
	SetFileContent(ctx context.Context, fileID int64, contentHash string, size int64, lineCount int) (*types.FileContent, error)
	MarkFileDeleted(ctx context.Context, fileID int64) error

	// Branches
	GetOrCreateBranch(ctx context.Context, projectID int64, name string, isDefault bool) (*types.Branch, error)
	AdvanceBranchHead(ctx context.Context, branchID, commitID int64) error

	// Commits
	InsertCommit(ctx context.Context, c *types.Commit) (int64, error)
	InsertCommitFiles(ctx context.Context, files []types.CommitFile) error

	// Checkouts
	UpsertCheckout(ctx context.Context, projectID int64, path, branch string) (*types.Checkout, error)
	ReplaceCheckoutSnapshot(ctx context.Context, checkoutID int64, snapshots []types.CheckoutSnapshot) error
	TouchCheckout(ctx context.Context, checkoutID int64) error
	GetCheckoutSnapshot(ctx context.Context, checkoutID int64) (map[int64]types.CheckoutSnapshot, error)
	UpdateCheckoutSnapshotEntries(ctx context.Context, checkoutID int64, upserts []types.CheckoutSnapshot, deletes []int64) error

	// GetLastCommitForFile is the in-transaction counterpart to the
	// identically-named Store method: the commit engine's conflict check
	// needs it inside the same BEGIN IMMEDIATE scope as its version
	// comparison so a conflict's reported last_author/last_commit_hash are
	// consistent with the current_version it was computed against.
	GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error)
}

// FileWithContent pairs a ProjectFile with its current FileContent row; it
// is the shape every "current state of the project" read returns.
type FileWithContent struct {
	File    types.ProjectFile
	Content types.FileContent
}

// ProjectSummary is a Project annotated with the aggregate figures a
// project listing reports: how many files it currently tracks, how many
// bytes their current content occupies, and when its most recent commit
// (on any branch) landed.
type ProjectSummary struct {
	Project      types.Project
	FileCount    int
	TotalBytes   int64
	LastCommitAt *time.Time
}

// String renders a one-line human-readable summary, using the same
// byte-formatting convention (go-humanize) the importer's Summary type uses
// for user-facing output.
func (p ProjectSummary) String() string {
	last := "no commits yet"
	if p.LastCommitAt != nil {
		last = p.LastCommitAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s: %d file(s), %s, last commit %s",
		p.Project.Slug, p.FileCount, humanize.Bytes(uint64(p.TotalBytes)), last)
}

// Store is the full storage backend surface: everything Transaction
// exposes for writes, plus read-only queries that don't need to
// participate in a caller-driven transaction, lifecycle management, and
// the transaction gateway itself.
type Store interface {
	// Projects (read paths; writes go through Transaction)
	GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	ListProjectSummaries(ctx context.Context) ([]ProjectSummary, error)

	// Content
	GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error)
	GetCurrentFile(ctx context.Context, projectID int64, path string) (*FileWithContent, error)
	ListCurrentFiles(ctx context.Context, projectID int64) ([]FileWithContent, error)

	// Checkouts
	GetCheckoutByPath(ctx context.Context, projectID int64, path string) (*types.Checkout, error)
	ListCheckouts(ctx context.Context, projectID int64) ([]types.Checkout, error)
	DeleteCheckout(ctx context.Context, checkoutID int64) error

	// VCS reads
	ListCommits(ctx context.Context, projectID, branchID int64, limit int) ([]types.Commit, error)
	GetCommitByHash(ctx context.Context, hash string) (*types.Commit, error)
	ListCommitFiles(ctx context.Context, commitID int64) ([]types.CommitFile, error)
	GetBranchByName(ctx context.Context, projectID int64, name string) (*types.Branch, error)

	// GetLastCommitForFile finds the most recent commit whose CommitFile
	// entry for fileID recorded contentHash as the new hash, i.e. the
	// commit that produced the version currently live for that file. Used
	// to attribute conflict payloads (last_author, last_commit_hash) to the
	// worker who committed the version a conflicting writer is bumping
	// into; the commit's timestamp is not copied onto the conflict.
	// Returns *types.NotFoundError if the content was never
	// committed (e.g. it only exists because of an import).
	GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error)

	// RunInTransaction runs fn inside one BEGIN IMMEDIATE transaction.
	// Commits iff fn returns nil; rolls back (and re-raises) on panic;
	// rolls back and propagates the error otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
	Path() string
	UnderlyingDB() *sql.DB
	UnderlyingConn(ctx context.Context) (*sql.Conn, error)
}

// Config holds database configuration.
type Config struct {
	Path           string
	BusyTimeoutMs  int
	BlobVerifyMode types.BlobVerifyMode
}
