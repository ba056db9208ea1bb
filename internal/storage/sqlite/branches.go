package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stratadb/strata/internal/types"
)

func scanBranch(row *sql.Row) (*types.Branch, error) {
	var b types.Branch
	var isDefault int
	var head sql.NullInt64
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.ParentBranch, &isDefault, &head); err != nil {
		return nil, err
	}
	b.IsDefault = isDefault == 1
	if head.Valid {
		b.HeadCommitID = &head.Int64
	}
	return &b, nil
}

func getBranchByName(ctx context.Context, e execer, projectID int64, name string) (*types.Branch, error) {
	row := e.QueryRowContext(ctx, `
		SELECT id, project_id, name, parent_branch, is_default, head_commit_id
		FROM branches WHERE project_id = ? AND name = ?
	`, projectID, name)
	return scanBranch(row)
}

// GetOrCreateBranch creates the named branch if absent. isDefault is only
// honored on creation; an existing branch's default flag is never flipped
// here (use a dedicated operation if that is ever needed).
func (tx *sqliteTx) GetOrCreateBranch(ctx context.Context, projectID int64, name string, isDefault bool) (*types.Branch, error) {
	b, err := getBranchByName(ctx, tx.tx, projectID, name)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: looking up branch %s: %w", name, err)
	}

	defaultFlag := 0
	if isDefault {
		defaultFlag = 1
	}
	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO branches (project_id, name, is_default) VALUES (?, ?, ?)
	`, projectID, name, defaultFlag)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating branch %s: %w", name, err)
	}

	b, err = getBranchByName(ctx, tx.tx, projectID, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back branch %s: %w", name, err)
	}
	return b, nil
}

func (tx *sqliteTx) AdvanceBranchHead(ctx context.Context, branchID, commitID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE branches SET head_commit_id = ? WHERE id = ?
	`, commitID, branchID)
	if err != nil {
		return fmt.Errorf("sqlite: advancing branch %d to commit %d: %w", branchID, commitID, err)
	}
	return nil
}

func (s *Store) GetBranchByName(ctx context.Context, projectID int64, name string) (*types.Branch, error) {
	b, err := getBranchByName(ctx, s.db, projectID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFound("branch", name)
		}
		return nil, fmt.Errorf("sqlite: getting branch %s: %w", name, err)
	}
	return b, nil
}
