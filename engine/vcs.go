package engine

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/internal/types"
	"github.com/stratadb/strata/internal/vcs"
)

// CommitRecord is one commit as the log and show operations present it.
type CommitRecord = types.Commit

// CommitFileRecord is one file's change within a commit.
type CommitFileRecord = types.CommitFile

// Log returns project's most recent commits on branch (its default branch
// if empty), newest first.
func (e *Engine) Log(ctx context.Context, project, branch string, limit int) ([]CommitRecord, error) {
	entries, err := vcs.Log(ctx, e.store, project, branch, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CommitRecord, len(entries))
	for i, entry := range entries {
		out[i] = entry.Commit
	}
	return out, nil
}

// Show resolves commitHash to its full record and the per-file changes it made.
func (e *Engine) Show(ctx context.Context, commitHash string) (CommitRecord, []CommitFileRecord, error) {
	show, err := vcs.ShowCommit(ctx, e.store, commitHash)
	if err != nil {
		return CommitRecord{}, nil, err
	}
	return show.Commit, show.Files, nil
}

// UnifiedDiff is the rendered text of a unified diff between two content
// blobs.
type UnifiedDiff string

// Diff renders the unified diff between the blobs identified by content
// hashes fromRef and toRef for path (either may be "" to represent the file
// not existing on that side). project is accepted for symmetry with the
// rest of the surface but is not needed to resolve a content-addressed
// blob.
func (e *Engine) Diff(ctx context.Context, project, path, fromRef, toRef string) (UnifiedDiff, error) {
	out, err := vcs.Diff(ctx, e.store, path, fromRef, toRef)
	if err != nil {
		return "", fmt.Errorf("engine: diffing %s in %s: %w", path, project, err)
	}
	return UnifiedDiff(out), nil
}
