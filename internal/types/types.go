// Package types holds the row structs shared by the storage layer and every
// engine component built on top of it. None of these types know how to talk
// to the database themselves; they are the typed shape that database/sql
// Scan targets fill in, and the shape every higher-level operation returns.
package types

import "time"

// ContentKind distinguishes how a blob's payload should be interpreted and
// written back out during checkout.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentBinary ContentKind = "binary"
)

// ChangeType enumerates the kinds of per-file mutation a commit can record.
// Renamed is retained for schema completeness (see design notes on rename
// detection) even though the commit engine never emits it today.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// ConflictStrategy controls what the commit engine does when it finds a
// version mismatch between a workspace's snapshot and the database's
// current state for a file being touched.
type ConflictStrategy string

const (
	StrategyAbort ConflictStrategy = "abort"
	StrategyForce ConflictStrategy = "force"
)

// EmptyCommitPolicy controls whether a commit with no file-level changes is
// accepted (and silently writes nothing) or rejected outright.
type EmptyCommitPolicy string

const (
	EmptyCommitAcceptNoOp EmptyCommitPolicy = "accept_no_op"
	EmptyCommitReject     EmptyCommitPolicy = "reject"
)

// BlobVerifyMode controls how aggressively the blob store re-verifies that
// a stored payload's SHA-256 still matches its content_hash on read.
type BlobVerifyMode string

const (
	BlobVerifyOff    BlobVerifyMode = "off"
	BlobVerifySample BlobVerifyMode = "sample"
	BlobVerifyAlways BlobVerifyMode = "always"
)

// Project is a named container for a set of tracked files.
type Project struct {
	ID            int64
	Slug          string
	Name          string
	SourceURL     string
	DefaultBranch string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProjectFile is a logical file within a project, identified by its
// project-relative path. It owns zero or more FileContent rows, at most one
// of which is current at any time.
type ProjectFile struct {
	ID           int64
	ProjectID    int64
	Path         string
	TypeTag      string
	Component    string
	LineCount    int
	ModifiedAt   time.Time
}

// ContentBlob is deduplicated, content-addressed storage for file payloads.
type ContentBlob struct {
	ContentHash    string
	Payload        []byte
	Kind           ContentKind
	Encoding       string
	Size           int64
	FirstSeenAt    time.Time
	ReferenceCount int
}

// FileContent is the current (or historical) content pointer for a
// ProjectFile at a particular version.
type FileContent struct {
	ID          int64
	FileID      int64
	ContentHash string
	Size        int64
	LineCount   int
	Version     int64
	IsCurrent   bool
	UpdatedAt   time.Time
}

// Branch is a named lineage of commits within a project.
type Branch struct {
	ID            int64
	ProjectID     int64
	Name          string
	ParentBranch  string
	IsDefault     bool
	HeadCommitID  *int64
}

// Commit is a point-in-time, immutable record of a set of file changes.
type Commit struct {
	ID            int64
	ProjectID     int64
	BranchID      int64
	CommitHash    string
	ParentCommit  *int64
	Author        string
	Message       string
	CreatedAt     time.Time
	FilesChanged  int
	LinesAdded    int
	LinesRemoved  int
}

// CommitFile is the per-file change record inside a commit.
type CommitFile struct {
	ID           int64
	CommitID     int64
	FileID       int64
	ChangeType   ChangeType
	OldHash      string // empty when ChangeType == ChangeAdded
	NewHash      string // empty when ChangeType == ChangeDeleted
	OldPath      string
	NewPath      string
	LinesAdded   int
	LinesRemoved int
}

// Checkout is an active materialization of a project's current content onto
// a filesystem directory.
type Checkout struct {
	ID         int64
	ProjectID  int64
	Path       string
	Branch     string
	CreatedAt  time.Time
	LastSynced time.Time
	Active     bool
}

// CheckoutSnapshot is the per-file (hash, version) pair recorded at
// checkout time and refreshed on every successful commit from that
// checkout; it is the basis of optimistic-concurrency conflict detection.
type CheckoutSnapshot struct {
	ID          int64
	CheckoutID  int64
	FileID      int64
	ContentHash string
	Version     int64
	RecordedAt  time.Time
}
