package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

func (tx *sqliteTx) UpsertFile(ctx context.Context, projectID int64, path, typeTag, component string, lineCount int, modifiedAt int64) (*types.ProjectFile, error) {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO project_files (project_id, path, type_tag, component, line_count, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			type_tag = excluded.type_tag,
			component = excluded.component,
			line_count = excluded.line_count,
			modified_at = excluded.modified_at
	`, projectID, path, typeTag, component, lineCount, time.Unix(modifiedAt, 0).UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting file %s: %w", path, err)
	}

	var f types.ProjectFile
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, project_id, path, type_tag, component, line_count, modified_at
		FROM project_files WHERE project_id = ? AND path = ?
	`, projectID, path)
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.TypeTag, &f.Component, &f.LineCount, &f.ModifiedAt); err != nil {
		return nil, fmt.Errorf("sqlite: reading back file %s: %w", path, err)
	}
	return &f, nil
}

func (tx *sqliteTx) GetCurrentFileContent(ctx context.Context, fileID int64) (*types.FileContent, error) {
	var fc types.FileContent
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, file_id, content_hash, size, line_count, version, is_current, updated_at
		FROM file_contents WHERE file_id = ? AND is_current = 1
	`, fileID)
	var isCurrent int
	err := row.Scan(&fc.ID, &fc.FileID, &fc.ContentHash, &fc.Size, &fc.LineCount, &fc.Version, &isCurrent, &fc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting current content for file %d: %w", fileID, err)
	}
	fc.IsCurrent = isCurrent == 1
	return &fc, nil
}

// SetFileContent records a new current content version for fileID. The new
// version number is one past the highest version ever recorded for this
// file; the previous current row (if any) is flipped to is_current = 0
// first so the partial unique index never sees two current rows at once.
// Both statements run inside the caller's BEGIN IMMEDIATE transaction, so
// no other writer can observe or race this read-then-write sequence.
func (tx *sqliteTx) SetFileContent(ctx context.Context, fileID int64, contentHash string, size int64, lineCount int) (*types.FileContent, error) {
	if _, err := tx.tx.ExecContext(ctx, `
		UPDATE file_contents SET is_current = 0 WHERE file_id = ? AND is_current = 1
	`, fileID); err != nil {
		return nil, fmt.Errorf("sqlite: retiring current content for file %d: %w", fileID, err)
	}

	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO file_contents (file_id, content_hash, size, line_count, version, is_current)
		SELECT ?, ?, ?, ?, COALESCE((SELECT MAX(version) FROM file_contents WHERE file_id = ?), 0) + 1, 1
	`, fileID, contentHash, size, lineCount, fileID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting content for file %d: %w", fileID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new content id for file %d: %w", fileID, err)
	}

	return tx.GetCurrentFileContentByID(ctx, id)
}

// GetCurrentFileContentByID fetches a single file_contents row by its own
// primary key, used right after SetFileContent inserts it.
func (tx *sqliteTx) GetCurrentFileContentByID(ctx context.Context, id int64) (*types.FileContent, error) {
	var fc types.FileContent
	var isCurrent int
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, file_id, content_hash, size, line_count, version, is_current, updated_at
		FROM file_contents WHERE id = ?
	`, id)
	if err := row.Scan(&fc.ID, &fc.FileID, &fc.ContentHash, &fc.Size, &fc.LineCount, &fc.Version, &isCurrent, &fc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: reading content row %d: %w", id, err)
	}
	fc.IsCurrent = isCurrent == 1
	return &fc, nil
}

// MarkFileDeleted retires the current content row without inserting a
// replacement, leaving the file with no current content. A subsequent
// current_files join simply omits it.
func (tx *sqliteTx) MarkFileDeleted(ctx context.Context, fileID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE file_contents SET is_current = 0 WHERE file_id = ? AND is_current = 1
	`, fileID)
	if err != nil {
		return fmt.Errorf("sqlite: marking file %d deleted: %w", fileID, err)
	}
	return nil
}

func listCurrentFiles(ctx context.Context, e execer, projectID int64) ([]storage.FileWithContent, error) {
	rows, err := e.QueryContext(ctx, `
		SELECT pf.id, pf.project_id, pf.path, pf.type_tag, pf.component, pf.line_count, pf.modified_at,
		       fc.id, fc.content_hash, fc.size, fc.line_count, fc.version, fc.updated_at
		FROM project_files pf
		JOIN file_contents fc ON fc.file_id = pf.id AND fc.is_current = 1
		WHERE pf.project_id = ?
		ORDER BY pf.path
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing current files for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []storage.FileWithContent
	for rows.Next() {
		var fw storage.FileWithContent
		fw.Content.IsCurrent = true
		if err := rows.Scan(
			&fw.File.ID, &fw.File.ProjectID, &fw.File.Path, &fw.File.TypeTag, &fw.File.Component, &fw.File.LineCount, &fw.File.ModifiedAt,
			&fw.Content.ID, &fw.Content.ContentHash, &fw.Content.Size, &fw.Content.LineCount, &fw.Content.Version, &fw.Content.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning current file row: %w", err)
		}
		fw.Content.FileID = fw.File.ID
		out = append(out, fw)
	}
	return out, rows.Err()
}

func (tx *sqliteTx) ListCurrentFiles(ctx context.Context, projectID int64) ([]storage.FileWithContent, error) {
	return listCurrentFiles(ctx, tx.tx, projectID)
}

func (s *Store) ListCurrentFiles(ctx context.Context, projectID int64) ([]storage.FileWithContent, error) {
	return listCurrentFiles(ctx, s.db, projectID)
}

func (s *Store) GetCurrentFile(ctx context.Context, projectID int64, path string) (*storage.FileWithContent, error) {
	var fw storage.FileWithContent
	fw.Content.IsCurrent = true
	row := s.db.QueryRowContext(ctx, `
		SELECT pf.id, pf.project_id, pf.path, pf.type_tag, pf.component, pf.line_count, pf.modified_at,
		       fc.id, fc.content_hash, fc.size, fc.line_count, fc.version, fc.updated_at
		FROM project_files pf
		JOIN file_contents fc ON fc.file_id = pf.id AND fc.is_current = 1
		WHERE pf.project_id = ? AND pf.path = ?
	`, projectID, path)
	err := row.Scan(
		&fw.File.ID, &fw.File.ProjectID, &fw.File.Path, &fw.File.TypeTag, &fw.File.Component, &fw.File.LineCount, &fw.File.ModifiedAt,
		&fw.Content.ID, &fw.Content.ContentHash, &fw.Content.Size, &fw.Content.LineCount, &fw.Content.Version, &fw.Content.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFound("file", path)
		}
		return nil, fmt.Errorf("sqlite: getting current file %s: %w", path, err)
	}
	fw.Content.FileID = fw.File.ID
	return &fw, nil
}
