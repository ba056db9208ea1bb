// Package vcs provides the read-only history operations — log, show, and
// diff — over a project's committed state. None of it mutates the
// database; it only projects Commit/CommitFile/ContentBlob rows into the
// shapes a caller wants to render.
package vcs

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// LogEntry is one commit as the log operation presents it.
type LogEntry struct {
	types.Commit
	BranchName string
}

// Log returns the most recent commits on branch (project's default branch
// if empty), newest first, bounded to limit (0 meaning the store's default
// page size).
func Log(ctx context.Context, store storage.Store, slug, branch string, limit int) ([]LogEntry, error) {
	project, err := store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolving project %s: %w", slug, err)
	}
	if branch == "" {
		branch = project.DefaultBranch
	}
	b, err := store.GetBranchByName(ctx, project.ID, branch)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolving branch %s: %w", branch, err)
	}

	commits, err := store.ListCommits(ctx, project.ID, b.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("vcs: listing commits: %w", err)
	}
	out := make([]LogEntry, len(commits))
	for i, c := range commits {
		out[i] = LogEntry{Commit: c, BranchName: branch}
	}
	return out, nil
}

// Show is one commit and the per-file changes it recorded.
type Show struct {
	Commit types.Commit
	Files  []types.CommitFile
}

// ShowCommit resolves commitHash to its full record, including its
// CommitFile entries.
func ShowCommit(ctx context.Context, store storage.Store, commitHash string) (Show, error) {
	commit, err := store.GetCommitByHash(ctx, commitHash)
	if err != nil {
		return Show{}, fmt.Errorf("vcs: resolving commit %s: %w", commitHash, err)
	}
	files, err := store.ListCommitFiles(ctx, commit.ID)
	if err != nil {
		return Show{}, fmt.Errorf("vcs: listing commit files for %s: %w", commitHash, err)
	}
	return Show{Commit: *commit, Files: files}, nil
}
