package engine

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/internal/scanner"
	"github.com/stratadb/strata/internal/types"
)

// FileView is a file's current path plus its live content pointer.
type FileView struct {
	Path        string
	TypeTag     string
	Component   string
	LineCount   int
	ContentHash string
	Size        int64
	Version     int64
}

// GetCurrentFile resolves project/path to its current content pointer. The
// lookup runs through the project-scoped facade rather than the store
// directly, so a caller can never accidentally resolve a path belonging to
// a different project.
func (e *Engine) GetCurrentFile(ctx context.Context, project, path string) (FileView, error) {
	p, err := e.store.GetProjectBySlug(ctx, project)
	if err != nil {
		return FileView{}, fmt.Errorf("engine: resolving project %s: %w", project, err)
	}
	fw, err := e.facade.FileByPath(ctx, p.ID, path)
	if err != nil {
		return FileView{}, fmt.Errorf("engine: resolving file %s in %s: %w", path, project, err)
	}
	return FileView{
		Path:        fw.File.Path,
		TypeTag:     fw.File.TypeTag,
		Component:   fw.File.Component,
		LineCount:   fw.Content.LineCount,
		ContentHash: fw.Content.ContentHash,
		Size:        fw.Content.Size,
		Version:     fw.Content.Version,
	}, nil
}

// FileSummary is one entry in a ListFiles result.
type FileSummary = FileView

// ListFiles enumerates project's current files, optionally filtered to
// those whose path matches glob ("" matches everything). Runs through the
// project-scoped facade, same as GetCurrentFile.
func (e *Engine) ListFiles(ctx context.Context, project, glob string) ([]FileSummary, error) {
	p, err := e.store.GetProjectBySlug(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("engine: resolving project %s: %w", project, err)
	}
	files, err := e.facade.Files(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("engine: listing files for %s: %w", project, err)
	}
	out := make([]FileSummary, 0, len(files))
	for _, fw := range files {
		if glob != "" && !scanner.MatchPath(glob, fw.File.Path) {
			continue
		}
		out = append(out, FileSummary{
			Path:        fw.File.Path,
			TypeTag:     fw.File.TypeTag,
			Component:   fw.File.Component,
			LineCount:   fw.Content.LineCount,
			ContentHash: fw.Content.ContentHash,
			Size:        fw.Content.Size,
			Version:     fw.Content.Version,
		})
	}
	return out, nil
}

// Blob is a content blob's payload plus its storage metadata.
type Blob = types.ContentBlob

// GetBlob fetches a blob by content hash.
func (e *Engine) GetBlob(ctx context.Context, hash string) (Blob, error) {
	blob, err := e.store.GetBlob(ctx, hash)
	if err != nil {
		return Blob{}, fmt.Errorf("engine: resolving blob %s: %w", hash, err)
	}
	return *blob, nil
}
