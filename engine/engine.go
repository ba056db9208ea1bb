// Package engine is the top-level entry point for embedding strata: a
// single Open call wires the storage backend, scanner, importer, checkout
// engine, commit engine, and VCS reads behind one handle, the same way the
// teacher lineage's root-level facade package wraps its internal storage
// for external callers.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/importer"
	"github.com/stratadb/strata/internal/scanner"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/storage/sqlite"
	"github.com/stratadb/strata/internal/types"
)

// Engine is the handle every caller outside internal/ drives strata
// through. It owns one storage.Store and the configuration that produced
// it.
type Engine struct {
	store      storage.Store
	facade     *sqlite.Facade
	cfg        config.Config
	provenance config.Provenance
	rules      scanner.RuleSet
}

// Open resolves configuration (defaults, config file, environment, in that
// order of increasing precedence), opens (and migrates, if needed) the
// SQLite-backed store, and returns a ready-to-use Engine. startDir anchors
// the project-local config-file search; pass "" to use the current working
// directory.
func Open(ctx context.Context, startDir string) (*Engine, error) {
	dataDir, err := config.DefaultDataDir("strata")
	if err != nil {
		return nil, fmt.Errorf("engine: resolving default data directory: %w", err)
	}
	defaultDBPath := filepath.Join(dataDir, "store.db")

	cfg, provenance, err := config.Load(startDir, defaultDBPath)
	if err != nil {
		return nil, fmt.Errorf("engine: loading configuration: %w", err)
	}

	store, err := sqlite.Open(ctx, storage.Config{
		Path:           cfg.DBPath,
		BusyTimeoutMs:  cfg.BusyTimeoutMs,
		BlobVerifyMode: cfg.BlobVerifyOnRead,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: opening store at %s: %w", cfg.DBPath, err)
	}

	return &Engine{
		store:      store,
		facade:     sqlite.NewFacade(store),
		cfg:        cfg,
		provenance: provenance,
		rules:      scanner.DefaultRuleSet(cfg.ScanMaxFileBytes),
	}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Config returns the resolved configuration this engine was opened with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// ConfigProvenance reports which layer (default/config-file/env) set each
// resolved configuration key.
func (e *Engine) ConfigProvenance() config.Provenance {
	return e.provenance
}

// --- Project operations ---

// ImportSummary is what Import reports.
type ImportSummary = importer.Summary

// Import ingests dir into project slug, creating it (with name as its
// display name) if it does not already exist.
func (e *Engine) Import(ctx context.Context, slug, name, dir string) (ImportSummary, error) {
	return importer.Import(ctx, e.store, slug, name, "", dir, e.rules)
}

// ProjectSummary is one project as ListProjects presents it: the project
// row plus the aggregate figures §6's project.list() contract specifies
// (file count, total bytes, last commit time).
type ProjectSummary = storage.ProjectSummary

// ListProjects enumerates every known project, each annotated with its
// current file count, total current-content byte size, and most recent
// commit timestamp.
func (e *Engine) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	return e.store.ListProjectSummaries(ctx)
}

// ProjectDetail is a project plus its current file count, returned by
// GetProject.
type ProjectDetail struct {
	types.Project
	FileCount int
}

// GetProject resolves slug to its full record.
func (e *Engine) GetProject(ctx context.Context, slug string) (ProjectDetail, error) {
	project, err := e.store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("engine: resolving project %s: %w", slug, err)
	}
	files, err := e.store.ListCurrentFiles(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("engine: listing files for %s: %w", slug, err)
	}
	return ProjectDetail{Project: *project, FileCount: len(files)}, nil
}

// DeleteProject removes a project and everything it owns (files, content
// pointers, commits, checkouts). Blobs stay in the store; the reference
// count of each blob the project's content rows pointed at drops
// accordingly, and no blob is deleted, even at zero.
func (e *Engine) DeleteProject(ctx context.Context, slug string) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteProject(ctx, slug)
	})
}
