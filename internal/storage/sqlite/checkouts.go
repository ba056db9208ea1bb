package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stratadb/strata/internal/types"
)

func scanCheckout(row *sql.Row) (*types.Checkout, error) {
	var c types.Checkout
	var active int
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Path, &c.Branch, &c.CreatedAt, &c.LastSynced, &active); err != nil {
		return nil, err
	}
	c.Active = active == 1
	return &c, nil
}

func (tx *sqliteTx) UpsertCheckout(ctx context.Context, projectID int64, path, branch string) (*types.Checkout, error) {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO checkouts (project_id, path, branch, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(project_id, path) DO UPDATE SET
			branch = excluded.branch,
			active = 1,
			last_synced = CURRENT_TIMESTAMP
	`, projectID, path, branch)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting checkout %s: %w", path, err)
	}

	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, project_id, path, branch, created_at, last_synced, active
		FROM checkouts WHERE project_id = ? AND path = ?
	`, projectID, path)
	c, err := scanCheckout(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back checkout %s: %w", path, err)
	}
	return c, nil
}

func (tx *sqliteTx) TouchCheckout(ctx context.Context, checkoutID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE checkouts SET last_synced = CURRENT_TIMESTAMP WHERE id = ?
	`, checkoutID)
	if err != nil {
		return fmt.Errorf("sqlite: touching checkout %d: %w", checkoutID, err)
	}
	return nil
}

// ReplaceCheckoutSnapshot wholesale-replaces the snapshot rows for a
// checkout: used when a checkout is (re)materialized and every file's
// version needs to start from the version on disk.
func (tx *sqliteTx) ReplaceCheckoutSnapshot(ctx context.Context, checkoutID int64, snapshots []types.CheckoutSnapshot) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM checkout_snapshots WHERE checkout_id = ?`, checkoutID); err != nil {
		return fmt.Errorf("sqlite: clearing snapshot for checkout %d: %w", checkoutID, err)
	}
	for _, snap := range snapshots {
		_, err := tx.tx.ExecContext(ctx, `
			INSERT INTO checkout_snapshots (checkout_id, file_id, content_hash, version)
			VALUES (?, ?, ?, ?)
		`, checkoutID, snap.FileID, snap.ContentHash, snap.Version)
		if err != nil {
			return fmt.Errorf("sqlite: inserting snapshot entry for file %d: %w", snap.FileID, err)
		}
	}
	return nil
}

// UpdateCheckoutSnapshotEntries applies a targeted set of upserts and
// deletes to a checkout's snapshot, used after a successful commit to
// advance only the files that were actually committed rather than
// recomputing the whole snapshot from scratch.
func (tx *sqliteTx) UpdateCheckoutSnapshotEntries(ctx context.Context, checkoutID int64, upserts []types.CheckoutSnapshot, deletes []int64) error {
	for _, snap := range upserts {
		_, err := tx.tx.ExecContext(ctx, `
			INSERT INTO checkout_snapshots (checkout_id, file_id, content_hash, version)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(checkout_id, file_id) DO UPDATE SET
				content_hash = excluded.content_hash,
				version = excluded.version,
				recorded_at = CURRENT_TIMESTAMP
		`, checkoutID, snap.FileID, snap.ContentHash, snap.Version)
		if err != nil {
			return fmt.Errorf("sqlite: upserting snapshot entry for file %d: %w", snap.FileID, err)
		}
	}
	for _, fileID := range deletes {
		_, err := tx.tx.ExecContext(ctx, `
			DELETE FROM checkout_snapshots WHERE checkout_id = ? AND file_id = ?
		`, checkoutID, fileID)
		if err != nil {
			return fmt.Errorf("sqlite: removing snapshot entry for file %d: %w", fileID, err)
		}
	}
	return nil
}

func (tx *sqliteTx) GetCheckoutSnapshot(ctx context.Context, checkoutID int64) (map[int64]types.CheckoutSnapshot, error) {
	rows, err := tx.tx.QueryContext(ctx, `
		SELECT id, checkout_id, file_id, content_hash, version, recorded_at
		FROM checkout_snapshots WHERE checkout_id = ?
	`, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading snapshot for checkout %d: %w", checkoutID, err)
	}
	defer rows.Close()

	out := make(map[int64]types.CheckoutSnapshot)
	for rows.Next() {
		var s types.CheckoutSnapshot
		if err := rows.Scan(&s.ID, &s.CheckoutID, &s.FileID, &s.ContentHash, &s.Version, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snapshot entry: %w", err)
		}
		out[s.FileID] = s
	}
	return out, rows.Err()
}

func (s *Store) GetCheckoutByPath(ctx context.Context, projectID int64, path string) (*types.Checkout, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, path, branch, created_at, last_synced, active
		FROM checkouts WHERE project_id = ? AND path = ?
	`, projectID, path)
	c, err := scanCheckout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFound("checkout", path)
		}
		return nil, fmt.Errorf("sqlite: getting checkout %s: %w", path, err)
	}
	return c, nil
}

func (s *Store) ListCheckouts(ctx context.Context, projectID int64) ([]types.Checkout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, path, branch, created_at, last_synced, active
		FROM checkouts WHERE project_id = ? ORDER BY path
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing checkouts: %w", err)
	}
	defer rows.Close()

	var out []types.Checkout
	for rows.Next() {
		var c types.Checkout
		var active int
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Path, &c.Branch, &c.CreatedAt, &c.LastSynced, &active); err != nil {
			return nil, fmt.Errorf("sqlite: scanning checkout: %w", err)
		}
		c.Active = active == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCheckout(ctx context.Context, checkoutID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkouts WHERE id = ?`, checkoutID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting checkout %d: %w", checkoutID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete result for checkout %d: %w", checkoutID, err)
	}
	if n == 0 {
		return types.NewNotFound("checkout", fmt.Sprintf("%d", checkoutID))
	}
	return nil
}
