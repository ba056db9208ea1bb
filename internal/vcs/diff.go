package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// Diff renders a unified diff between two blobs identified by content hash,
// either of which may be empty to represent "file did not exist" (an add or
// a delete). Binary blobs are reported without a line-level diff, matching
// standard diff tooling's "Binary files differ" convention.
func Diff(ctx context.Context, store storage.Store, path, oldHash, newHash string) (string, error) {
	var oldBlob, newBlob *types.ContentBlob
	var err error
	if oldHash != "" {
		oldBlob, err = store.GetBlob(ctx, oldHash)
		if err != nil {
			return "", fmt.Errorf("vcs: fetching old blob for %s: %w", path, err)
		}
	}
	if newHash != "" {
		newBlob, err = store.GetBlob(ctx, newHash)
		if err != nil {
			return "", fmt.Errorf("vcs: fetching new blob for %s: %w", path, err)
		}
	}

	if (oldBlob != nil && oldBlob.Kind == types.ContentBinary) || (newBlob != nil && newBlob.Kind == types.ContentBinary) {
		return fmt.Sprintf("Binary files %s differ\n", path), nil
	}

	var oldText, newText string
	if oldBlob != nil {
		oldText = string(oldBlob.Payload)
	}
	if newBlob != nil {
		newText = string(newBlob.Payload)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("vcs: rendering diff for %s: %w", path, err)
	}
	if !strings.HasSuffix(out, "\n") && out != "" {
		out += "\n"
	}
	return out, nil
}

// DiffCommit renders the unified diff for every file a commit touched.
func DiffCommit(ctx context.Context, store storage.Store, commitHash string) (string, error) {
	show, err := ShowCommit(ctx, store, commitHash)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range show.Files {
		d, err := Diff(ctx, store, displayPath(f), f.OldHash, f.NewHash)
		if err != nil {
			return "", err
		}
		b.WriteString(d)
	}
	return b.String(), nil
}

// displayPath picks whichever of a CommitFile's two path fields is set; for
// ChangeModified they are equal, for ChangeAdded only NewPath is set, and
// for ChangeDeleted only OldPath is set.
func displayPath(f types.CommitFile) string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}
