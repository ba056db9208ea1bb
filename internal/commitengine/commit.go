// Package commitengine implements the commit operation: diffing a checked
// out workspace against the database's current state and the workspace's
// own checkout snapshot, detecting concurrent modification, and atomically
// recording the result as a new Commit.
package commitengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stratadb/strata/internal/scanner"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// ErrEmptyCommit is returned when a commit would touch no files and the
// caller's EmptyCommitPolicy is EmptyCommitReject.
var ErrEmptyCommit = errors.New("commitengine: commit touches no files")

// Result reports what a successful Commit call wrote. A no-op commit
// (accept_no_op policy, nothing changed) returns a zero Result and a nil
// error with CommitID == 0.
type Result struct {
	CommitID      int64
	CommitHash    string
	FilesAdded    int
	FilesModified int
	FilesDeleted  int
	LinesAdded    int
	LinesRemoved  int
}

// change is one file's classification ahead of the write transaction.
type change struct {
	path       string
	changeType types.ChangeType
	fileID     int64 // 0 for Added, until UpsertFile assigns one
	oldHash    string
	newHash    string
	payload    []byte
	kind       types.ContentKind
	encoding   string
	size       int64
	lineCount  int
	modTime    int64
	typeTag    string
	component  string
}

// Commit diffs workspaceDir (which must already be registered via a prior
// Checkout) against project slug's current state, detects conflicts against
// the workspace's checkout snapshot, and — absent an abort-worthy conflict —
// writes one new Commit row plus its CommitFile entries in a single
// transaction, refreshing the checkout's snapshot so a subsequent commit
// from the same directory diffs against what this commit just wrote.
func Commit(ctx context.Context, store storage.Store, slug, workspaceDir, author, message string, strategy types.ConflictStrategy, emptyPolicy types.EmptyCommitPolicy, rs scanner.RuleSet) (Result, error) {
	project, err := store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("commitengine: resolving project %s: %w", slug, err)
	}

	absDir, err := filepath.Abs(workspaceDir)
	if err != nil {
		return Result{}, types.NewIOError(workspaceDir, err)
	}
	co, err := store.GetCheckoutByPath(ctx, project.ID, absDir)
	if err != nil {
		if _, ok := err.(*types.NotFoundError); ok {
			return Result{}, &types.NoSuchCheckoutError{Project: slug, Path: absDir}
		}
		return Result{}, fmt.Errorf("commitengine: resolving checkout %s: %w", absDir, err)
	}

	workspace, err := readWorkspace(ctx, absDir, rs)
	if err != nil {
		return Result{}, err
	}

	// Everything that decides whether this commit is a conflict — the
	// current state of the project, the checkout's snapshot, and the diff
	// against both — must be read inside the same BEGIN IMMEDIATE scope as
	// the writes it authorizes. Reading them beforehand (even a moment
	// before) would let two concurrent commits both observe stale state,
	// both pass the conflict check, and both succeed: a lost update despite
	// the abort strategy. Running it all in one RunInTransaction closes
	// that window, since SQLite's write lock serializes the two callers.
	var result Result
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.ListCurrentFiles(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("commitengine: listing current files for %s: %w", slug, err)
		}
		currentByPath := make(map[string]storage.FileWithContent, len(current))
		for _, fw := range current {
			currentByPath[fw.File.Path] = fw
		}

		snapshot, err := tx.GetCheckoutSnapshot(ctx, co.ID)
		if err != nil {
			return fmt.Errorf("commitengine: reading checkout snapshot: %w", err)
		}

		changes := classify(workspace, currentByPath, snapshot)

		conflicts := detectConflicts(ctx, tx, changes, currentByPath, snapshot)
		if len(conflicts) > 0 && strategy == types.StrategyAbort {
			return &types.CommitConflictError{Conflicts: conflicts}
		}

		if len(changes) == 0 {
			if emptyPolicy == types.EmptyCommitReject {
				return ErrEmptyCommit
			}
			return nil
		}

		branch, err := tx.GetOrCreateBranch(ctx, project.ID, co.Branch, co.Branch == project.DefaultBranch)
		if err != nil {
			return fmt.Errorf("commitengine: resolving branch %s: %w", co.Branch, err)
		}

		var parent *int64
		if branch.HeadCommitID != nil {
			id := *branch.HeadCommitID
			parent = &id
		}

		commitFiles := make([]types.CommitFile, 0, len(changes))
		upserts := make([]types.CheckoutSnapshot, 0, len(changes))
		var deletes []int64
		var linesAdded, linesRemoved int

		for _, c := range changes {
			switch c.changeType {
			case types.ChangeAdded:
				hash, err := tx.PutBlob(ctx, c.payload, c.kind, c.encoding)
				if err != nil {
					return fmt.Errorf("commitengine: storing blob for %s: %w", c.path, err)
				}
				file, err := tx.UpsertFile(ctx, project.ID, c.path, c.typeTag, c.component, c.lineCount, c.modTime)
				if err != nil {
					return fmt.Errorf("commitengine: creating file %s: %w", c.path, err)
				}
				fc, err := tx.SetFileContent(ctx, file.ID, hash, c.size, c.lineCount)
				if err != nil {
					return fmt.Errorf("commitengine: setting initial content for %s: %w", c.path, err)
				}
				added, removed := diffLineStats("", string(c.payload))
				linesAdded += added
				linesRemoved += removed
				commitFiles = append(commitFiles, types.CommitFile{
					FileID: file.ID, ChangeType: types.ChangeAdded, NewHash: hash, NewPath: c.path,
					LinesAdded: added, LinesRemoved: removed,
				})
				upserts = append(upserts, types.CheckoutSnapshot{FileID: file.ID, ContentHash: fc.ContentHash, Version: fc.Version})

			case types.ChangeModified:
				hash, err := tx.PutBlob(ctx, c.payload, c.kind, c.encoding)
				if err != nil {
					return fmt.Errorf("commitengine: storing blob for %s: %w", c.path, err)
				}
				fc, err := tx.SetFileContent(ctx, c.fileID, hash, c.size, c.lineCount)
				if err != nil {
					return fmt.Errorf("commitengine: updating content for %s: %w", c.path, err)
				}
				oldPayload, err := blobPayload(ctx, tx, c.oldHash)
				if err != nil {
					return err
				}
				added, removed := diffLineStats(oldPayload, string(c.payload))
				linesAdded += added
				linesRemoved += removed
				commitFiles = append(commitFiles, types.CommitFile{
					FileID: c.fileID, ChangeType: types.ChangeModified, OldHash: c.oldHash, NewHash: hash,
					OldPath: c.path, NewPath: c.path, LinesAdded: added, LinesRemoved: removed,
				})
				upserts = append(upserts, types.CheckoutSnapshot{FileID: c.fileID, ContentHash: fc.ContentHash, Version: fc.Version})

			case types.ChangeDeleted:
				if err := tx.MarkFileDeleted(ctx, c.fileID); err != nil {
					return fmt.Errorf("commitengine: deleting file %s: %w", c.path, err)
				}
				oldPayload, err := blobPayload(ctx, tx, c.oldHash)
				if err != nil {
					return err
				}
				removed := scanner.CountLines([]byte(oldPayload))
				linesRemoved += removed
				commitFiles = append(commitFiles, types.CommitFile{
					FileID: c.fileID, ChangeType: types.ChangeDeleted, OldHash: c.oldHash, OldPath: c.path,
					LinesRemoved: removed,
				})
				deletes = append(deletes, c.fileID)
			}
		}

		now := time.Now().UTC()
		hash := commitHash(project.Slug, branch.Name, parent, author, message, now, commitFiles)

		commit := &types.Commit{
			ProjectID:    project.ID,
			BranchID:     branch.ID,
			CommitHash:   hash,
			ParentCommit: parent,
			Author:       author,
			Message:      message,
			FilesChanged: len(commitFiles),
			LinesAdded:   linesAdded,
			LinesRemoved: linesRemoved,
		}
		commitID, err := tx.InsertCommit(ctx, commit)
		if err != nil {
			return fmt.Errorf("commitengine: inserting commit: %w", err)
		}
		for i := range commitFiles {
			commitFiles[i].CommitID = commitID
		}
		if err := tx.InsertCommitFiles(ctx, commitFiles); err != nil {
			return fmt.Errorf("commitengine: inserting commit files: %w", err)
		}
		if err := tx.AdvanceBranchHead(ctx, branch.ID, commitID); err != nil {
			return fmt.Errorf("commitengine: advancing branch head: %w", err)
		}
		if err := tx.UpdateCheckoutSnapshotEntries(ctx, co.ID, upserts, deletes); err != nil {
			return fmt.Errorf("commitengine: refreshing checkout snapshot: %w", err)
		}
		if err := tx.TouchCheckout(ctx, co.ID); err != nil {
			return fmt.Errorf("commitengine: touching checkout: %w", err)
		}

		result = Result{
			CommitID:   commitID,
			CommitHash: hash,
			LinesAdded: linesAdded, LinesRemoved: linesRemoved,
		}
		for _, cf := range commitFiles {
			switch cf.ChangeType {
			case types.ChangeAdded:
				result.FilesAdded++
			case types.ChangeModified:
				result.FilesModified++
			case types.ChangeDeleted:
				result.FilesDeleted++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// readWorkspace scans and reads every eligible file under dir, keyed by its
// project-relative path, the same shape the importer builds ahead of its
// own write transaction.
func readWorkspace(ctx context.Context, dir string, rs scanner.RuleSet) (map[string]change, error) {
	files, err := scanner.ReadAll(ctx, dir, rs)
	if err != nil {
		return nil, fmt.Errorf("commitengine: scanning %s: %w", dir, err)
	}
	out := make(map[string]change, len(files))
	for _, f := range files {
		payload, kind, encoding, err := scanner.ReadFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		out[f.RelPath] = change{
			path:      f.RelPath,
			payload:   payload,
			kind:      kind,
			encoding:  encoding,
			size:      int64(len(payload)),
			lineCount: scanner.CountLines(payload),
			modTime:   f.ModTime,
			typeTag:   f.TypeTag,
			component: topLevelComponent(f.RelPath),
		}
	}
	return out, nil
}

// classify compares the workspace against the project's current state and
// returns the set of files that actually changed; unchanged files are
// dropped entirely so the write transaction and the commit hash only ever
// see real work. A path missing from the workspace is only ever classified
// Deleted when the checkout's own snapshot saw it at checkout time — a file
// that landed in Current via a concurrent commit this worker never checked
// out is left untouched rather than deleted out from under it.
func classify(workspace map[string]change, current map[string]storage.FileWithContent, snapshot map[int64]types.CheckoutSnapshot) []change {
	var out []change
	for path, w := range workspace {
		fw, existed := current[path]
		switch {
		case !existed:
			w.changeType = types.ChangeAdded
			out = append(out, w)
		case fw.Content.ContentHash != sha256hex(w.payload):
			w.changeType = types.ChangeModified
			w.fileID = fw.File.ID
			w.oldHash = fw.Content.ContentHash
			out = append(out, w)
		}
	}
	for path, fw := range current {
		if _, stillPresent := workspace[path]; stillPresent {
			continue
		}
		if _, sawAtCheckout := snapshot[fw.File.ID]; !sawAtCheckout {
			continue
		}
		out = append(out, change{
			path:       path,
			changeType: types.ChangeDeleted,
			fileID:     fw.File.ID,
			oldHash:    fw.Content.ContentHash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// detectConflicts finds, among the files this commit touches, any whose
// current database version no longer matches what the workspace's checkout
// snapshot recorded — meaning some other commit landed on top of it since
// this workspace was checked out or last committed from.
func detectConflicts(ctx context.Context, tx storage.Transaction, changes []change, current map[string]storage.FileWithContent, snapshot map[int64]types.CheckoutSnapshot) []types.Conflict {
	var conflicts []types.Conflict
	for _, c := range changes {
		if c.changeType == types.ChangeAdded {
			continue
		}
		fw, ok := current[c.path]
		if !ok {
			continue
		}
		snap, known := snapshot[fw.File.ID]
		if !known || snap.Version == fw.Content.Version {
			continue
		}

		conflict := types.Conflict{
			Path:            c.path,
			SnapshotVersion: snap.Version,
			CurrentVersion:  fw.Content.Version,
		}
		if commit, err := tx.GetLastCommitForFile(ctx, fw.File.ID, fw.Content.ContentHash); err == nil {
			conflict.LastAuthor = commit.Author
			conflict.LastCommitHash = commit.CommitHash
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}

func blobPayload(ctx context.Context, tx storage.Transaction, hash string) (string, error) {
	if hash == "" {
		return "", nil
	}
	blob, err := tx.GetBlob(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("commitengine: fetching blob %s: %w", hash, err)
	}
	return string(blob.Payload), nil
}

func topLevelComponent(relPath string) string {
	if i := strings.Index(relPath, "/"); i >= 0 {
		return relPath[:i]
	}
	return ""
}

func sha256hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// commitHash derives a SHA-256 hash for a commit from its project, branch,
// parent, author, message, timestamp and file changes. The timestamp is the
// wall-clock time of the commit, so two commits made at different instants
// get different hashes even when every other input is identical; a retried
// commit is not detected as a duplicate.
func commitHash(project, branch string, parent *int64, author, message string, at time.Time, files []types.CommitFile) string {
	h := sha256.New()
	fmt.Fprintf(h, "project:%s\nbranch:%s\n", project, branch)
	if parent != nil {
		fmt.Fprintf(h, "parent:%d\n", *parent)
	} else {
		h.Write([]byte("parent:none\n"))
	}
	fmt.Fprintf(h, "author:%s\nmessage:%s\ntime:%s\n", author, message, at.Format(time.RFC3339Nano))
	for _, cf := range files {
		fmt.Fprintf(h, "file:%s:%s:%s:%s\n", cf.NewPath+cf.OldPath, cf.ChangeType, cf.OldHash, cf.NewHash)
	}
	return hex.EncodeToString(h.Sum(nil))
}
