package checkout

import (
	"context"
	"fmt"
	"os"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// Row pairs a Checkout row with whether its workspace path still exists on
// disk, the annotation the registry's list operation promises.
type Row struct {
	types.Checkout
	PathExists bool
}

// List enumerates projectID's checkouts, annotating each with its current
// on-disk existence.
func List(ctx context.Context, store storage.Store, projectID int64) ([]Row, error) {
	checkouts, err := store.ListCheckouts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("checkout: listing checkouts: %w", err)
	}
	return AnnotateExistence(checkouts), nil
}

// ListAll enumerates checkouts across every project, for callers that did
// not scope the request to one project slug.
func ListAll(ctx context.Context, store storage.Store) ([]Row, error) {
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: listing projects: %w", err)
	}
	var out []Row
	for _, p := range projects {
		rows, err := List(ctx, store, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// AnnotateExistence pairs each Checkout with whether its workspace path
// currently exists on disk. Exported so callers that already hold a
// project-scoped []types.Checkout (e.g. via the facade) can reuse the same
// existence check List and ListAll use internally.
func AnnotateExistence(checkouts []types.Checkout) []Row {
	rows := make([]Row, len(checkouts))
	for i, c := range checkouts {
		_, err := os.Stat(c.Path)
		rows[i] = Row{Checkout: c, PathExists: err == nil}
	}
	return rows
}

// Prune deletes every checkout row for projectID whose workspace path has
// vanished. With force=false it only counts what would be removed (a
// dry-run, so a caller can present the list before committing to the
// deletion); force=true performs the deletion. CheckoutSnapshot rows
// cascade via the schema's ON DELETE CASCADE.
func Prune(ctx context.Context, store storage.Store, projectID int64, force bool) (int, error) {
	rows, err := List(ctx, store, projectID)
	if err != nil {
		return 0, err
	}
	return pruneRows(ctx, store, rows, force)
}

// PruneAll is Prune across every project.
func PruneAll(ctx context.Context, store storage.Store, force bool) (int, error) {
	rows, err := ListAll(ctx, store)
	if err != nil {
		return 0, err
	}
	return pruneRows(ctx, store, rows, force)
}

func pruneRows(ctx context.Context, store storage.Store, rows []Row, force bool) (int, error) {
	var stale []Row
	for _, r := range rows {
		if !r.PathExists {
			stale = append(stale, r)
		}
	}
	if !force {
		return len(stale), nil
	}
	for _, r := range stale {
		if err := store.DeleteCheckout(ctx, r.ID); err != nil {
			return 0, fmt.Errorf("checkout: pruning %s: %w", r.Path, err)
		}
	}
	return len(stale), nil
}
