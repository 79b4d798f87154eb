// Package goals stores personal goals in the local SQLite database.
package goals

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
	Create(ctx context.Context, g *models.Goal) error
	Update(ctx context.Context, g *models.Goal) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*models.Goal, error)
	List(ctx context.Context) ([]*models.Goal, error)

	ListPending(ctx context.Context) ([]models.Record, error)
	Current(ctx context.Context, id string) (models.Record, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	HardDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	InsertRestored(ctx context.Context, g *models.Goal) (bool, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `id, title, description, target_date, completed, created_at, updated_at, sync_status`

func scan(s interface{ Scan(...any) error }) (*models.Goal, error) {
	var g models.Goal
	var created, updated int64
	if err := s.Scan(&g.ID, &g.Title, &g.Description, &g.TargetDate, &g.Completed, &created, &updated, &g.SyncStatus); err != nil {
		return nil, err
	}
	g.CreatedAt = timex.FromUnixMillis(created)
	g.UpdatedAt = timex.FromUnixMillis(updated)
	return &g, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select goals: %w", err)
	}
	defer rows.Close()

	var out []*models.Goal
	for rows.Next() {
		g, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) insert(ctx context.Context, g *models.Goal, status models.SyncStatus, conflict string) (sql.Result, error) {
	query := `INSERT INTO goals (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)` + conflict
	return r.db.ExecContext(ctx, query,
		g.ID, g.Title, g.Description, g.TargetDate, g.Completed,
		timex.UnixMillis(g.CreatedAt), timex.UnixMillis(g.UpdatedAt), status)
}

func (r *SQLiteRepository) Create(ctx context.Context, g *models.Goal) error {
	if _, err := r.insert(ctx, g, models.StatusPendingUpload, ""); err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	g.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, g *models.Goal) error {
	query := `UPDATE goals SET title = ?, description = ?, target_date = ?, completed = ?, updated_at = ` + syncsql.NextUpdatedAt + `, sync_status = ?
		WHERE id = ? AND sync_status != ? RETURNING updated_at`
	at, err := syncsql.ScanUpdatedAt(r.db.QueryRowContext(ctx, query,
		g.Title, g.Description, g.TargetDate, g.Completed, timex.UnixMillis(g.UpdatedAt), models.StatusPendingUpload,
		g.ID, models.StatusPendingDelete))
	if errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	g.UpdatedAt = at
	g.SyncStatus = models.StatusPendingUpload
	return nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return syncsql.MarkDeleted(ctx, r.db, models.FamilyGoals, id, at)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	query := `SELECT ` + columns + ` FROM goals WHERE id = ? AND sync_status != ?`
	g, err := scan(r.db.QueryRowContext(ctx, query, id, models.StatusPendingDelete))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return g, nil
}

// List returns visible goals, open ones first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Goal, error) {
	query := `SELECT ` + columns + ` FROM goals WHERE sync_status != ? ORDER BY completed, created_at, id`
	return r.query(ctx, query, models.StatusPendingDelete)
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Record, error) {
	list, err := r.query(ctx, `SELECT `+columns+` FROM goals WHERE sync_status != ? ORDER BY updated_at`, models.StatusSynced)
	if err != nil {
		return nil, err
	}
	return syncsql.Split(models.FamilyGoals, list), nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	return syncsql.MarkSynced(ctx, r.db, models.FamilyGoals, id, updatedAt)
}

// Current returns the row whatever its sync status; a pending delete comes
// back as a tombstone.
func (r *SQLiteRepository) Current(ctx context.Context, id string) (models.Record, error) {
	row, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM goals WHERE id = ?`, id))
	return syncsql.CurrentRow(models.FamilyGoals, row, err)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	return syncsql.HardDelete(ctx, r.db, models.FamilyGoals, id)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return syncsql.Count(ctx, r.db, models.FamilyGoals)
}

func (r *SQLiteRepository) InsertRestored(ctx context.Context, g *models.Goal) (bool, error) {
	res, err := r.insert(ctx, g, models.StatusSynced, " ON CONFLICT DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("failed to insert restored goal: %w", err)
	}
	return syncsql.Inserted(res)
}
