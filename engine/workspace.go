package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stratadb/strata/internal/checkout"
	"github.com/stratadb/strata/internal/commitengine"
	"github.com/stratadb/strata/internal/types"
)

// CheckoutResult is what Checkout reports.
type CheckoutResult = checkout.Result

// Checkout materializes project's current content (on branch, or the
// project's default branch if empty) into targetDir.
func (e *Engine) Checkout(ctx context.Context, project, targetDir, branch string, force bool) (CheckoutResult, error) {
	return checkout.Checkout(ctx, e.store, project, targetDir, branch, force)
}

// ConflictStrategy controls what Commit does when it finds a version
// mismatch between workspaceDir's checkout snapshot and the database's
// current state.
type ConflictStrategy = types.ConflictStrategy

const (
	StrategyAbort = types.StrategyAbort
	StrategyForce = types.StrategyForce
)

// CommitResult is what a successful Commit reports.
type CommitResult = commitengine.Result

// Commit diffs workspaceDir against project's current state and records the
// result as a new commit. A version conflict under strategy=abort surfaces
// as *types.CommitConflictError via the error return, per the error
// taxonomy's "conflicts are never silent" rule.
func (e *Engine) Commit(ctx context.Context, project, workspaceDir, message, author string, strategy ConflictStrategy) (CommitResult, error) {
	return commitengine.Commit(ctx, e.store, project, workspaceDir, author, message, strategy, e.cfg.EmptyCommitPolicy, e.rules)
}

// CheckoutRow is one checkout as ListCheckouts presents it.
type CheckoutRow = checkout.Row

// ListCheckouts enumerates project's checkouts, annotated with whether each
// one's workspace path still exists.
func (e *Engine) ListCheckouts(ctx context.Context, project string) ([]CheckoutRow, error) {
	p, err := e.store.GetProjectBySlug(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("engine: resolving project %s: %w", project, err)
	}
	rows, err := e.facade.Checkouts(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("engine: listing checkouts for %s: %w", project, err)
	}
	return checkout.AnnotateExistence(rows), nil
}

// PruneCheckouts removes project's checkout rows whose workspace path no
// longer exists. force=false reports the count without deleting anything.
func (e *Engine) PruneCheckouts(ctx context.Context, project string, force bool) (int, error) {
	p, err := e.store.GetProjectBySlug(ctx, project)
	if err != nil {
		return 0, fmt.Errorf("engine: resolving project %s: %w", project, err)
	}
	return checkout.Prune(ctx, e.store, p.ID, force)
}

// StaleCheckoutEvent is pushed by WatchCheckouts the moment a checked-out
// directory is observed to have disappeared.
type StaleCheckoutEvent = checkout.StaleEvent

// WatchCheckouts watches project's checkouts (every project's, if project
// is "") and emits a StaleCheckoutEvent the first time each one's path is
// found missing, until ctx is cancelled. pollInterval governs the fallback
// poll loop used when native filesystem notifications can't be installed;
// a value <= 0 uses the watch_fallback_poll_interval_ms setting.
func (e *Engine) WatchCheckouts(ctx context.Context, project string, pollInterval time.Duration) (<-chan StaleCheckoutEvent, error) {
	if pollInterval <= 0 {
		pollInterval = time.Duration(e.cfg.WatchFallbackPollIntervalMs) * time.Millisecond
	}
	var projectID int64
	if project != "" {
		p, err := e.store.GetProjectBySlug(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("engine: resolving project %s: %w", project, err)
		}
		projectID = p.ID
	}
	return checkout.Watch(ctx, e.store, projectID, pollInterval)
}
