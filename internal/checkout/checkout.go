// Package checkout materializes a project's current content onto a
// filesystem directory and records the per-file versions it exposed, so a
// later commit from that directory can detect concurrent modification.
package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// Result reports what a Checkout call wrote.
type Result struct {
	FilesWritten int
	BytesWritten int64
	Branch       string
}

// Checkout materializes project slug's current content into targetDir on
// branch (project's default branch if empty). If targetDir already exists
// and is non-empty, force must be set or the call fails with
// AlreadyExistsError, matching the spec's mandated refusal of
// accidental overwrite.
func Checkout(ctx context.Context, store storage.Store, slug, targetDir, branch string, force bool) (Result, error) {
	project, err := store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("checkout: resolving project %s: %w", slug, err)
	}
	if branch == "" {
		branch = project.DefaultBranch
	}

	if err := checkTargetDir(targetDir, force); err != nil {
		return Result{}, err
	}

	files, err := store.ListCurrentFiles(ctx, project.ID)
	if err != nil {
		return Result{}, fmt.Errorf("checkout: listing current files for %s: %w", slug, err)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return Result{}, types.NewIOError(targetDir, err)
	}
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return Result{}, types.NewIOError(targetDir, err)
	}

	var result Result
	for _, fw := range files {
		if ctx.Err() != nil {
			return Result{}, types.ErrCancelled
		}

		blob, err := store.GetBlob(ctx, fw.Content.ContentHash)
		if err != nil {
			return Result{}, fmt.Errorf("checkout: fetching blob for %s: %w", fw.File.Path, err)
		}

		dest, err := safeJoin(absTarget, fw.File.Path)
		if err != nil {
			return Result{}, err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Result{}, types.NewIOError(filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, blob.Payload, 0o644); err != nil {
			return Result{}, types.NewIOError(dest, err)
		}

		result.FilesWritten++
		result.BytesWritten += int64(len(blob.Payload))
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		co, err := tx.UpsertCheckout(ctx, project.ID, absTarget, branch)
		if err != nil {
			return fmt.Errorf("checkout: recording checkout row: %w", err)
		}

		snapshots := make([]types.CheckoutSnapshot, 0, len(files))
		for _, fw := range files {
			snapshots = append(snapshots, types.CheckoutSnapshot{
				CheckoutID:  co.ID,
				FileID:      fw.File.ID,
				ContentHash: fw.Content.ContentHash,
				Version:     fw.Content.Version,
			})
		}
		if err := tx.ReplaceCheckoutSnapshot(ctx, co.ID, snapshots); err != nil {
			return fmt.Errorf("checkout: writing snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	result.Branch = branch
	return result, nil
}

// checkTargetDir enforces the "non-empty target requires force" precondition.
func checkTargetDir(targetDir string, force bool) error {
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewIOError(targetDir, err)
	}
	if len(entries) > 0 && !force {
		return types.NewAlreadyExists("checkout target", targetDir)
	}
	return nil
}

// safeJoin joins root and relPath and verifies the result cannot have
// escaped root, guarding against a relative path that contains ".." or a
// symlinked intermediate directory planted by a previous (force)
// checkout. filepath.EvalSymlinks resolves through any symlinks so the
// containment check runs against the real path, not a spoofed one.
func safeJoin(root, relPath string) (string, error) {
	if strings.Contains(relPath, "..") {
		return "", types.NewIntegrityViolation("refusing to write outside checkout root: %s", relPath)
	}
	dest := filepath.Join(root, filepath.FromSlash(relPath))

	resolvedRoot := root
	if r, err := filepath.EvalSymlinks(root); err == nil {
		resolvedRoot = r
	}
	parent := filepath.Dir(dest)
	resolvedParent := parent
	for p := parent; ; p = filepath.Dir(p) {
		if r, err := filepath.EvalSymlinks(p); err == nil {
			rest, _ := filepath.Rel(p, parent)
			resolvedParent = filepath.Join(r, rest)
			break
		}
		if filepath.Dir(p) == p {
			break
		}
	}
	if resolvedParent != resolvedRoot && !strings.HasPrefix(resolvedParent, resolvedRoot+string(filepath.Separator)) {
		return "", types.NewIntegrityViolation("refusing to write outside checkout root: %s", relPath)
	}
	return dest, nil
}
