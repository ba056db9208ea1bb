package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

func scanProject(row *sql.Row) (*types.Project, error) {
	var p types.Project
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.SourceURL, &p.DefaultBranch, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func getProjectBySlug(ctx context.Context, e execer, slug string) (*types.Project, error) {
	row := e.QueryRowContext(ctx, `
		SELECT id, slug, name, source_url, default_branch, created_at, updated_at
		FROM projects WHERE slug = ?
	`, slug)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting project %s: %w", slug, err)
	}
	if p == nil {
		return nil, types.NewNotFound("project", slug)
	}
	return p, nil
}

// UpsertProject creates the project if it does not exist, or returns the
// existing row unchanged (name/source_url are only set on first creation;
// subsequent imports into the same slug keep the original metadata).
func (tx *sqliteTx) UpsertProject(ctx context.Context, slug, name, sourceURL string) (*types.Project, error) {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO projects (slug, name, source_url)
		VALUES (?, ?, ?)
		ON CONFLICT(slug) DO NOTHING
	`, slug, name, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting project %s: %w", slug, err)
	}
	return getProjectBySlug(ctx, tx.tx, slug)
}

func (tx *sqliteTx) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	return getProjectBySlug(ctx, tx.tx, slug)
}

func (tx *sqliteTx) DeleteProject(ctx context.Context, slug string) error {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM projects WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete result for %s: %w", slug, err)
	}
	if n == 0 {
		return types.NewNotFound("project", slug)
	}
	return nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	return getProjectBySlug(ctx, s.db, slug)
}

func (s *Store) ListProjects(ctx context.Context) ([]types.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, source_url, default_branch, created_at, updated_at
		FROM projects ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects: %w", err)
	}
	defer rows.Close()

	var out []types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.SourceURL, &p.DefaultBranch, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProjectSummaries returns every project annotated with its current
// file count, total current-content byte size, and the timestamp of its
// most recent commit on any branch, per the project.list() contract: a left
// join against current_files for the first two, and a correlated subquery
// against commits for the third, so a project with no commits yet reports a
// nil LastCommitAt rather than being excluded.
func (s *Store) ListProjectSummaries(ctx context.Context) ([]storage.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id, p.slug, p.name, p.source_url, p.default_branch, p.created_at, p.updated_at,
			COUNT(cf.file_id), COALESCE(SUM(cf.size), 0),
			(SELECT MAX(c.created_at) FROM commits c WHERE c.project_id = p.id)
		FROM projects p
		LEFT JOIN current_files cf ON cf.project_id = p.id
		GROUP BY p.id
		ORDER BY p.slug
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing project summaries: %w", err)
	}
	defer rows.Close()

	var out []storage.ProjectSummary
	for rows.Next() {
		var ps storage.ProjectSummary
		var lastCommitAt sql.NullTime
		if err := rows.Scan(
			&ps.Project.ID, &ps.Project.Slug, &ps.Project.Name, &ps.Project.SourceURL,
			&ps.Project.DefaultBranch, &ps.Project.CreatedAt, &ps.Project.UpdatedAt,
			&ps.FileCount, &ps.TotalBytes, &lastCommitAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project summary: %w", err)
		}
		if lastCommitAt.Valid {
			t := lastCommitAt.Time
			ps.LastCommitAt = &t
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
