package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stratadb/strata/internal/types"
)

func (tx *sqliteTx) InsertCommit(ctx context.Context, c *types.Commit) (int64, error) {
	var parent sql.NullInt64
	if c.ParentCommit != nil {
		parent = sql.NullInt64{Int64: *c.ParentCommit, Valid: true}
	}
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO commits (project_id, branch_id, commit_hash, parent_commit_id, author, message, files_changed, lines_added, lines_removed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ProjectID, c.BranchID, c.CommitHash, parent, c.Author, c.Message, c.FilesChanged, c.LinesAdded, c.LinesRemoved)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting commit %s: %w", c.CommitHash, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading new commit id: %w", err)
	}
	return id, nil
}

func (tx *sqliteTx) InsertCommitFiles(ctx context.Context, files []types.CommitFile) error {
	for _, f := range files {
		var oldHash, newHash sql.NullString
		if f.OldHash != "" {
			oldHash = sql.NullString{String: f.OldHash, Valid: true}
		}
		if f.NewHash != "" {
			newHash = sql.NullString{String: f.NewHash, Valid: true}
		}
		_, err := tx.tx.ExecContext(ctx, `
			INSERT INTO commit_files (commit_id, file_id, change_type, old_hash, new_hash, old_path, new_path, lines_added, lines_removed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, f.CommitID, f.FileID, string(f.ChangeType), oldHash, newHash, f.OldPath, f.NewPath, f.LinesAdded, f.LinesRemoved)
		if err != nil {
			return fmt.Errorf("sqlite: inserting commit_file for commit %d file %d: %w", f.CommitID, f.FileID, err)
		}
	}
	return nil
}

func (s *Store) ListCommits(ctx context.Context, projectID, branchID int64, limit int) ([]types.Commit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, branch_id, commit_hash, parent_commit_id, author, message, created_at, files_changed, lines_added, lines_removed
		FROM commits
		WHERE project_id = ? AND branch_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, projectID, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing commits: %w", err)
	}
	defer rows.Close()

	var out []types.Commit
	for rows.Next() {
		var c types.Commit
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.CommitHash, &parent, &c.Author, &c.Message, &c.CreatedAt, &c.FilesChanged, &c.LinesAdded, &c.LinesRemoved); err != nil {
			return nil, fmt.Errorf("sqlite: scanning commit: %w", err)
		}
		if parent.Valid {
			c.ParentCommit = &parent.Int64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCommitByHash(ctx context.Context, hash string) (*types.Commit, error) {
	var c types.Commit
	var parent sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, branch_id, commit_hash, parent_commit_id, author, message, created_at, files_changed, lines_added, lines_removed
		FROM commits WHERE commit_hash = ?
	`, hash)
	err := row.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.CommitHash, &parent, &c.Author, &c.Message, &c.CreatedAt, &c.FilesChanged, &c.LinesAdded, &c.LinesRemoved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFound("commit", hash)
		}
		return nil, fmt.Errorf("sqlite: getting commit %s: %w", hash, err)
	}
	if parent.Valid {
		c.ParentCommit = &parent.Int64
	}
	return &c, nil
}

func getLastCommitForFile(ctx context.Context, e execer, fileID int64, contentHash string) (*types.Commit, error) {
	var c types.Commit
	var parent sql.NullInt64
	row := e.QueryRowContext(ctx, `
		SELECT c.id, c.project_id, c.branch_id, c.commit_hash, c.parent_commit_id, c.author, c.message, c.created_at, c.files_changed, c.lines_added, c.lines_removed
		FROM commits c
		JOIN commit_files cf ON cf.commit_id = c.id
		WHERE cf.file_id = ? AND cf.new_hash = ?
		ORDER BY c.id DESC LIMIT 1
	`, fileID, contentHash)
	err := row.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.CommitHash, &parent, &c.Author, &c.Message, &c.CreatedAt, &c.FilesChanged, &c.LinesAdded, &c.LinesRemoved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFound("commit", fmt.Sprintf("file %d content %s", fileID, contentHash))
		}
		return nil, fmt.Errorf("sqlite: getting last commit for file %d: %w", fileID, err)
	}
	if parent.Valid {
		c.ParentCommit = &parent.Int64
	}
	return &c, nil
}

func (s *Store) GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error) {
	return getLastCommitForFile(ctx, s.db, fileID, contentHash)
}

func (tx *sqliteTx) GetLastCommitForFile(ctx context.Context, fileID int64, contentHash string) (*types.Commit, error) {
	return getLastCommitForFile(ctx, tx.tx, fileID, contentHash)
}

func (s *Store) ListCommitFiles(ctx context.Context, commitID int64) ([]types.CommitFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, commit_id, file_id, change_type, old_hash, new_hash, old_path, new_path, lines_added, lines_removed
		FROM commit_files WHERE commit_id = ? ORDER BY id
	`, commitID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing commit files for commit %d: %w", commitID, err)
	}
	defer rows.Close()

	var out []types.CommitFile
	for rows.Next() {
		var cf types.CommitFile
		var changeType string
		var oldHash, newHash sql.NullString
		if err := rows.Scan(&cf.ID, &cf.CommitID, &cf.FileID, &changeType, &oldHash, &newHash, &cf.OldPath, &cf.NewPath, &cf.LinesAdded, &cf.LinesRemoved); err != nil {
			return nil, fmt.Errorf("sqlite: scanning commit file: %w", err)
		}
		cf.ChangeType = types.ChangeType(changeType)
		cf.OldHash = oldHash.String
		cf.NewHash = newHash.String
		out = append(out, cf)
	}
	return out, rows.Err()
}
