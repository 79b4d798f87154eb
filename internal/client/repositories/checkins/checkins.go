// Package checkins stores daily goal check-ins in the local SQLite database.
package checkins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/syncsql"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

type Repository interface {
	// Create fails with common.ErrAlreadyExists if the goal already has a
	// check-in for that day.
	Create(ctx context.Context, c *models.CheckIn) error
	Update(ctx context.Context, c *models.CheckIn) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	GetByGoalDay(ctx context.Context, goalID, day string) (*models.CheckIn, error)
	ListByGoal(ctx context.Context, goalID string) ([]*models.CheckIn, error)

	ListPending(ctx context.Context) ([]models.Record, error)
	Current(ctx context.Context, id string) (models.Record, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	HardDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	InsertRestored(ctx context.Context, c *models.CheckIn) (bool, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `id, goal_id, day, note, completed, created_at, updated_at, sync_status`

func scan(s interface{ Scan(...any) error }) (*models.CheckIn, error) {
	var c models.CheckIn
	var created, updated int64
	if err := s.Scan(&c.ID, &c.GoalID, &c.Day, &c.Note, &c.Completed, &created, &updated, &c.SyncStatus); err != nil {
		return nil, err
	}
	c.CreatedAt = timex.FromUnixMillis(created)
	c.UpdatedAt = timex.FromUnixMillis(updated)
	return &c, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.CheckIn, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select checkins: %w", err)
	}
	defer rows.Close()

	var out []*models.CheckIn
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) insert(ctx context.Context, c *models.CheckIn, status models.SyncStatus, conflict string) (sql.Result, error) {
	query := `INSERT INTO checkins (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)` + conflict
	return r.db.ExecContext(ctx, query,
		c.ID, c.GoalID, c.Day, c.Note, c.Completed,
		timex.UnixMillis(c.CreatedAt), timex.UnixMillis(c.UpdatedAt), status)
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.CheckIn) error {
	if _, err := r.insert(ctx, c, models.StatusPendingUpload, ""); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("checkin %s/%s: %w", c.GoalID, c.Day, common.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert checkin: %w", err)
	}
	c.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, c *models.CheckIn) error {
	query := `UPDATE checkins SET note = ?, completed = ?, updated_at = ` + syncsql.NextUpdatedAt + `, sync_status = ?
		WHERE id = ? AND sync_status != ? RETURNING updated_at`
	at, err := syncsql.ScanUpdatedAt(r.db.QueryRowContext(ctx, query,
		c.Note, c.Completed, timex.UnixMillis(c.UpdatedAt), models.StatusPendingUpload, c.ID, models.StatusPendingDelete))
	if errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update checkin: %w", err)
	}
	c.UpdatedAt = at
	c.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return syncsql.MarkDeleted(ctx, r.db, models.FamilyCheckIns, id, at)
}

func (r *SQLiteRepository) GetByGoalDay(ctx context.Context, goalID, day string) (*models.CheckIn, error) {
	query := `SELECT ` + columns + ` FROM checkins WHERE goal_id = ? AND day = ? AND sync_status != ?`
	c, err := scan(r.db.QueryRowContext(ctx, query, goalID, day, models.StatusPendingDelete))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListByGoal(ctx context.Context, goalID string) ([]*models.CheckIn, error) {
	query := `SELECT ` + columns + ` FROM checkins WHERE goal_id = ? AND sync_status != ? ORDER BY day`
	return r.query(ctx, query, goalID, models.StatusPendingDelete)
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Record, error) {
	list, err := r.query(ctx, `SELECT `+columns+` FROM checkins WHERE sync_status != ? ORDER BY updated_at`, models.StatusSynced)
	if err != nil {
		return nil, err
	}
	return syncsql.Split(models.FamilyCheckIns, list), nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	return syncsql.MarkSynced(ctx, r.db, models.FamilyCheckIns, id, updatedAt)
}

// Current returns the row whatever its sync status; a pending delete comes
// back as a tombstone.
func (r *SQLiteRepository) Current(ctx context.Context, id string) (models.Record, error) {
	row, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM checkins WHERE id = ?`, id))
	return syncsql.CurrentRow(models.FamilyCheckIns, row, err)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	return syncsql.HardDelete(ctx, r.db, models.FamilyCheckIns, id)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return syncsql.Count(ctx, r.db, models.FamilyCheckIns)
}

// InsertRestored ignores collisions on id as well as on (goal_id, day).
func (r *SQLiteRepository) InsertRestored(ctx context.Context, c *models.CheckIn) (bool, error) {
	res, err := r.insert(ctx, c, models.StatusSynced, " ON CONFLICT DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("failed to insert restored checkin: %w", err)
	}
	return syncsql.Inserted(res)
}
