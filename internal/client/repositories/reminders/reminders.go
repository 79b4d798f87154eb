// Package reminders stores reminder schedules in the local SQLite database.
package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/syncsql"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

type Repository interface {
	Create(ctx context.Context, rm *models.Reminder) error
	Update(ctx context.Context, rm *models.Reminder) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*models.Reminder, error)
	List(ctx context.Context) ([]*models.Reminder, error)

	ListPending(ctx context.Context) ([]models.Record, error)
	Current(ctx context.Context, id string) (models.Record, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	HardDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	InsertRestored(ctx context.Context, rm *models.Reminder) (bool, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `id, title, time_of_day, weekdays, enabled, created_at, updated_at, sync_status`

func scan(s interface{ Scan(...any) error }) (*models.Reminder, error) {
	var rm models.Reminder
	var created, updated int64
	if err := s.Scan(&rm.ID, &rm.Title, &rm.TimeOfDay, &rm.Weekdays, &rm.Enabled, &created, &updated, &rm.SyncStatus); err != nil {
		return nil, err
	}
	rm.CreatedAt = timex.FromUnixMillis(created)
	rm.UpdatedAt = timex.FromUnixMillis(updated)
	return &rm, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select reminders: %w", err)
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		rm, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) insert(ctx context.Context, rm *models.Reminder, status models.SyncStatus, conflict string) (sql.Result, error) {
	query := `INSERT INTO reminders (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)` + conflict
	return r.db.ExecContext(ctx, query,
		rm.ID, rm.Title, rm.TimeOfDay, int64(rm.Weekdays), rm.Enabled,
		timex.UnixMillis(rm.CreatedAt), timex.UnixMillis(rm.UpdatedAt), status)
}

func (r *SQLiteRepository) Create(ctx context.Context, rm *models.Reminder) error {
	if _, err := r.insert(ctx, rm, models.StatusPendingUpload, ""); err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	rm.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rm *models.Reminder) error {
	query := `UPDATE reminders SET title = ?, time_of_day = ?, weekdays = ?, enabled = ?, updated_at = ` + syncsql.NextUpdatedAt + `, sync_status = ?
		WHERE id = ? AND sync_status != ? RETURNING updated_at`
	at, err := syncsql.ScanUpdatedAt(r.db.QueryRowContext(ctx, query,
		rm.Title, rm.TimeOfDay, int64(rm.Weekdays), rm.Enabled, timex.UnixMillis(rm.UpdatedAt), models.StatusPendingUpload,
		rm.ID, models.StatusPendingDelete))
	if errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	rm.UpdatedAt = at
	rm.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return syncsql.MarkDeleted(ctx, r.db, models.FamilyReminders, id, at)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Reminder, error) {
	query := `SELECT ` + columns + ` FROM reminders WHERE id = ? AND sync_status != ?`
	rm, err := scan(r.db.QueryRowContext(ctx, query, id, models.StatusPendingDelete))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rm, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Reminder, error) {
	query := `SELECT ` + columns + ` FROM reminders WHERE sync_status != ? ORDER BY time_of_day, id`
	return r.query(ctx, query, models.StatusPendingDelete)
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Record, error) {
	list, err := r.query(ctx, `SELECT `+columns+` FROM reminders WHERE sync_status != ? ORDER BY updated_at`, models.StatusSynced)
	if err != nil {
		return nil, err
	}
	return syncsql.Split(models.FamilyReminders, list), nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	return syncsql.MarkSynced(ctx, r.db, models.FamilyReminders, id, updatedAt)
}

// Current returns the row whatever its sync status; a pending delete comes
// back as a tombstone.
func (r *SQLiteRepository) Current(ctx context.Context, id string) (models.Record, error) {
	row, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM reminders WHERE id = ?`, id))
	return syncsql.CurrentRow(models.FamilyReminders, row, err)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	return syncsql.HardDelete(ctx, r.db, models.FamilyReminders, id)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return syncsql.Count(ctx, r.db, models.FamilyReminders)
}

func (r *SQLiteRepository) InsertRestored(ctx context.Context, rm *models.Reminder) (bool, error) {
	res, err := r.insert(ctx, rm, models.StatusSynced, " ON CONFLICT DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("failed to insert restored reminder: %w", err)
	}
	return syncsql.Inserted(res)
}
