package entries

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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, title, content, image_key, audio_key, created_at, updated_at, sync_status`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.Entry, error) {
	var e models.Entry
	var created, updated int64
	if err := s.Scan(&e.ID, &e.Title, &e.Content, &e.ImageKey, &e.AudioKey, &created, &updated, &e.SyncStatus); err != nil {
		return nil, err
	}
	e.CreatedAt = timex.FromUnixMillis(created)
	e.UpdatedAt = timex.FromUnixMillis(updated)
	return &e, nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a new entry as pending upload.
func (r *SQLiteRepository) Create(ctx context.Context, e *models.Entry) error {
	query := `INSERT INTO entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Content, e.ImageKey, e.AudioKey,
		timex.UnixMillis(e.CreatedAt), timex.UnixMillis(e.UpdatedAt), models.StatusPendingUpload)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	e.SyncStatus = models.StatusPendingUpload
	return nil
}

// Update rewrites the entry's fields and flags it pending in the same statement.
func (r *SQLiteRepository) Update(ctx context.Context, e *models.Entry) error {
	query := `UPDATE entries SET title = ?, content = ?, image_key = ?, audio_key = ?, updated_at = ` + syncsql.NextUpdatedAt + `, sync_status = ?
		WHERE id = ? AND sync_status != ? RETURNING updated_at`
	at, err := syncsql.ScanUpdatedAt(r.db.QueryRowContext(ctx, query,
		e.Title, e.Content, e.ImageKey, e.AudioKey, timex.UnixMillis(e.UpdatedAt), models.StatusPendingUpload,
		e.ID, models.StatusPendingDelete))
	if errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	e.UpdatedAt = at
	e.SyncStatus = models.StatusPendingUpload
	return nil
}

// MarkDeleted records the intent to delete; the row stays until the remote
// tombstone is acknowledged.
func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return syncsql.MarkDeleted(ctx, r.db, models.FamilyEntries, id, at)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = ? AND sync_status != ?`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id, models.StatusPendingDelete))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return e, nil
}

// List returns visible entries, newest first. limit <= 0 means no limit.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*models.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE sync_status != ? ORDER BY created_at DESC, id LIMIT ?`
	return r.queryEntries(ctx, query, models.StatusPendingDelete, limit)
}

// Search runs a full-text query over title and content.
func (r *SQLiteRepository) Search(ctx context.Context, q string, limit int) ([]*models.Entry, error) {
	q = ftsQuery(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT e.id, e.title, e.content, e.image_key, e.audio_key, e.created_at, e.updated_at, e.sync_status
		FROM entries_fts JOIN entries e ON e.rowid = entries_fts.rowid
		WHERE entries_fts MATCH ? AND e.sync_status != ?
		ORDER BY entries_fts.rank LIMIT ?`
	return r.queryEntries(ctx, query, q, models.StatusPendingDelete, limit)
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// ListPending returns pending uploads as full entries and pending deletions
// as tombstones.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Record, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE sync_status != ? ORDER BY updated_at`
	list, err := r.queryEntries(ctx, query, models.StatusSynced)
	if err != nil {
		return nil, err
	}
	return syncsql.Split(models.FamilyEntries, list), nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	return syncsql.MarkSynced(ctx, r.db, models.FamilyEntries, id, updatedAt)
}

// Current returns the row whatever its sync status; a pending delete comes
// back as a tombstone.
func (r *SQLiteRepository) Current(ctx context.Context, id string) (models.Record, error) {
	row, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	return syncsql.CurrentRow(models.FamilyEntries, row, err)
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	return syncsql.HardDelete(ctx, r.db, models.FamilyEntries, id)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	return syncsql.Count(ctx, r.db, models.FamilyEntries)
}

// InsertRestored inserts a pulled entry as synced. An existing row with the
// same id wins; the bool reports whether a row was inserted.
func (r *SQLiteRepository) InsertRestored(ctx context.Context, e *models.Entry) (bool, error) {
	query := `INSERT INTO entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Content, e.ImageKey, e.AudioKey,
		timex.UnixMillis(e.CreatedAt), timex.UnixMillis(e.UpdatedAt), models.StatusSynced)
	if err != nil {
		return false, fmt.Errorf("failed to insert restored entry: %w", err)
	}
	return syncsql.Inserted(res)
}

func (r *SQLiteRepository) RebuildSearchIndex(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO entries_fts (entries_fts) VALUES ('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}
	return nil
}
