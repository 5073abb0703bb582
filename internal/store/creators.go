package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"creatorpulse/internal/model"
)

// CreateCreator inserts a new tracked creator. Handles are unique per
// owning user; requested must be within 1..100.
func (d *DB) CreateCreator(ctx context.Context, c model.Creator) error {
	if c.Requested < 1 || c.Requested > 100 {
		return fmt.Errorf("requested %d out of range 1..100", c.Requested)
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var pid any
	if c.ProviderUserID != "" {
		pid = c.ProviderUserID
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO creators(id, user_id, handle, active, requested, provider_user_id, created_at) VALUES(?,?,?,?,?,?,?)`,
		c.ID, c.UserID, c.Handle, boolInt(c.Active), c.Requested, pid, created.Unix())
	return err
}

// GetCreator returns one creator by id.
func (d *DB) GetCreator(ctx context.Context, id string) (model.Creator, error) {
	row := d.sql.QueryRowContext(ctx, selectCreators+` WHERE id=?`, id)
	return scanCreator(row)
}

// GetCreatorByHandle returns one of the user's creators by handle.
func (d *DB) GetCreatorByHandle(ctx context.Context, userID, handle string) (model.Creator, error) {
	row := d.sql.QueryRowContext(ctx, selectCreators+` WHERE user_id=? AND handle=?`, userID, handle)
	return scanCreator(row)
}

// ListActive returns the user's active creators, oldest-tracked first.
func (d *DB) ListActive(ctx context.Context, userID string) ([]model.Creator, error) {
	return d.queryCreators(ctx, selectCreators+` WHERE user_id=? AND active=1 ORDER BY created_at`, userID)
}

// ListStale returns the user's active creators never fetched or last
// fetched before cutoff, most-overdue first (nulls lead) so an
// interrupted run leaves the right creators at the front next time.
func (d *DB) ListStale(ctx context.Context, userID string, cutoff time.Time) ([]model.Creator, error) {
	return d.queryCreators(ctx,
		selectCreators+` WHERE user_id=? AND active=1 AND (last_fetched_at IS NULL OR last_fetched_at < ?)
		 ORDER BY last_fetched_at ASC NULLS FIRST, created_at`,
		userID, cutoff.Unix())
}

// UserIDs returns every user owning at least one active creator.
func (d *DB) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT DISTINCT user_id FROM creators WHERE active=1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeactivateCreator flags a creator inactive; its stored tweets remain
// until the retention sweep ages them out.
func (d *DB) DeactivateCreator(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE creators SET active=0 WHERE id=?`, id)
	return err
}

// DeleteCreator hard-deletes a creator; the schema cascades the delete to
// its tweets in the same operation.
func (d *DB) DeleteCreator(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM creators WHERE id=?`, id)
	return err
}

// SetProviderUserID backfills the provider-assigned id learned on first
// successful validation.
func (d *DB) SetProviderUserID(ctx context.Context, id, providerUserID string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE creators SET provider_user_id=? WHERE id=?`, providerUserID, id)
	return err
}

// TouchLastFetched records a successful fetch. Failures never touch this.
func (d *DB) TouchLastFetched(ctx context.Context, id string, t time.Time) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE creators SET last_fetched_at=? WHERE id=?`, t.Unix(), id)
	return err
}

const selectCreators = `SELECT id, user_id, handle, active, requested, provider_user_id, last_fetched_at, created_at FROM creators`

type rowScanner interface{ Scan(dest ...any) error }

func scanCreator(row rowScanner) (model.Creator, error) {
	var c model.Creator
	var active int
	var pid sql.NullString
	var last sql.NullInt64
	var created int64
	if err := row.Scan(&c.ID, &c.UserID, &c.Handle, &active, &c.Requested, &pid, &last, &created); err != nil {
		return c, err
	}
	c.Active = active != 0
	c.ProviderUserID = pid.String
	if last.Valid {
		t := time.Unix(last.Int64, 0).UTC()
		c.LastFetchedAt = &t
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (d *DB) queryCreators(ctx context.Context, q string, args ...any) ([]model.Creator, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
