package sqlite

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

// Facade wraps a Store with read operations that require a project scope
// argument, refusing to run any query that could otherwise cross project
// boundaries through a column that is only locally unique (file path,
// branch name, checkout path). Callers outside internal/ should reach the
// database exclusively through this type or through the engine facade that
// embeds it, never through Store directly.
type Facade struct {
	store storage.Store
}

// NewFacade wraps an existing Store.
func NewFacade(store storage.Store) *Facade {
	return &Facade{store: store}
}

// ErrMissingProjectScope is returned when a facade method is called with an
// empty or zero project scope argument.
var ErrMissingProjectScope = fmt.Errorf("sqlite: facade call requires a non-zero project scope")

func (f *Facade) FileByPath(ctx context.Context, projectID int64, path string) (*storage.FileWithContent, error) {
	if projectID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.GetCurrentFile(ctx, projectID, path)
}

func (f *Facade) Files(ctx context.Context, projectID int64) ([]storage.FileWithContent, error) {
	if projectID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.ListCurrentFiles(ctx, projectID)
}

func (f *Facade) Checkout(ctx context.Context, projectID int64, path string) (*types.Checkout, error) {
	if projectID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.GetCheckoutByPath(ctx, projectID, path)
}

func (f *Facade) Checkouts(ctx context.Context, projectID int64) ([]types.Checkout, error) {
	if projectID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.ListCheckouts(ctx, projectID)
}

func (f *Facade) Branch(ctx context.Context, projectID int64, name string) (*types.Branch, error) {
	if projectID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.GetBranchByName(ctx, projectID, name)
}

func (f *Facade) Commits(ctx context.Context, projectID, branchID int64, limit int) ([]types.Commit, error) {
	if projectID == 0 || branchID == 0 {
		return nil, ErrMissingProjectScope
	}
	return f.store.ListCommits(ctx, projectID, branchID, limit)
}

// Blob deliberately has no project scope parameter: content_blobs is keyed
// by a content hash, which is globally unique by construction, so there is
// no cross-project ambiguity to guard against.
func (f *Facade) Blob(ctx context.Context, hash string) (*types.ContentBlob, error) {
	return f.store.GetBlob(ctx, hash)
}
