// Package preferences stores local key/value settings. Every key is kept
// locally; only models.AllowedPreferenceKeys are ever reported as pending.
package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

type Repository interface {
	Set(ctx context.Context, key, value string, at time.Time) error
	Get(ctx context.Context, key string) (*models.Preference, error)
	List(ctx context.Context) ([]*models.Preference, error)
	ListPending(ctx context.Context) ([]*models.Preference, error)
	MarkSynced(ctx context.Context, key string, updatedAt time.Time) (bool, error)
	InsertRestored(ctx context.Context, p *models.Preference) (bool, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Set upserts a value and flags it pending in the same statement.
func (r *SQLiteRepository) Set(ctx context.Context, key, value string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at, sync_status) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = MAX(excluded.updated_at, preferences.updated_at + 1), sync_status = excluded.sync_status
	`, key, value, timex.UnixMillis(at), models.StatusPendingUpload)
	if err != nil {
		return fmt.Errorf("failed to set preference[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*models.Preference, error) {
	var p models.Preference
	var updated int64
	err := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at, sync_status FROM preferences WHERE key = ?`, key).
		Scan(&p.Key, &p.Value, &updated, &p.SyncStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference[%s]: %w", key, err)
	}
	p.UpdatedAt = timex.FromUnixMillis(updated)
	return &p, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Preference, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var out []*models.Preference
	for rows.Next() {
		var p models.Preference
		var updated int64
		if err := rows.Scan(&p.Key, &p.Value, &updated, &p.SyncStatus); err != nil {
			return nil, fmt.Errorf("failed to scan preference row: %w", err)
		}
		p.UpdatedAt = timex.FromUnixMillis(updated)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Preference, error) {
	return r.list(ctx, `SELECT key, value, updated_at, sync_status FROM preferences ORDER BY key`)
}

// ListPending returns pending preferences restricted to the sync allowlist.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.Preference, error) {
	keys := models.AllowedPreferenceKeys
	args := make([]any, 0, len(keys)+1)
	args = append(args, models.StatusSynced)
	for _, k := range keys {
		args = append(args, k)
	}
	query := `SELECT key, value, updated_at, sync_status FROM preferences
		WHERE sync_status != ? AND key IN (?` + strings.Repeat(", ?", len(keys)-1) + `) ORDER BY key`
	return r.list(ctx, query, args...)
}

// MarkSynced is conditional on updated_at like the record families.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, key string, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE preferences SET sync_status = ? WHERE key = ? AND updated_at = ?`,
		models.StatusSynced, key, timex.UnixMillis(updatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to mark preference[%s] synced: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// InsertRestored keeps an existing local value.
func (r *SQLiteRepository) InsertRestored(ctx context.Context, p *models.Preference) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO preferences (key, value, updated_at, sync_status) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, p.Key, p.Value, timex.UnixMillis(p.UpdatedAt), models.StatusSynced)
	if err != nil {
		return false, fmt.Errorf("failed to insert restored preference[%s]: %w", p.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}
