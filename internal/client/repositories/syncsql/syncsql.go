// Package syncsql holds the sync-status statements shared by every syncable
// table. Table names come from models.Family and are never user input.
package syncsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// NextUpdatedAt is the SET expression for updated_at in every local
// mutation. It keeps the column strictly increasing per row, so two writes
// within one millisecond never share a value and MarkSynced can tell them
// apart.
const NextUpdatedAt = `MAX(?, updated_at + 1)`

// ScanUpdatedAt reads the updated_at of an UPDATE ... RETURNING updated_at.
// No matching row maps to common.ErrNotFound.
func ScanUpdatedAt(row interface{ Scan(...any) error }) (time.Time, error) {
	var ms int64
	if err := row.Scan(&ms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrNotFound
		}
		return time.Time{}, err
	}
	return timex.FromUnixMillis(ms), nil
}

// MarkDeleted flags a visible row as pending delete.
func MarkDeleted(ctx context.Context, db dbx.DBTX, f models.Family, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET sync_status = ?, updated_at = `+NextUpdatedAt+` WHERE id = ? AND sync_status != ?`, f)
	res, err := db.ExecContext(ctx, query, models.StatusPendingDelete, timex.UnixMillis(at), id, models.StatusPendingDelete)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", f, err)
	}
	return dbx.ExpectOneRow(res)
}

// MarkSynced advances a pending upload to synced only if updated_at still
// equals the pushed value. It reports whether the row changed.
func MarkSynced(ctx context.Context, db dbx.DBTX, f models.Family, id string, updatedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE id = ? AND updated_at = ? AND sync_status = ?`, f)
	res, err := db.ExecContext(ctx, query, models.StatusSynced, id, timex.UnixMillis(updatedAt), models.StatusPendingUpload)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s synced: %w", f, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// HardDelete removes a row whose remote tombstone has been acknowledged.
// Rows no longer pending delete are left alone.
func HardDelete(ctx context.Context, db dbx.DBTX, f models.Family, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND sync_status = ?`, f)
	if _, err := db.ExecContext(ctx, query, id, models.StatusPendingDelete); err != nil {
		return fmt.Errorf("failed to hard delete from %s: %w", f, err)
	}
	return nil
}

// Count returns the number of local rows whatever their status.
func Count(ctx context.Context, db dbx.DBTX, f models.Family) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, f)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", f, err)
	}
	return n, nil
}

// Inserted turns the result of an INSERT ... ON CONFLICT DO NOTHING into a
// flag.
func Inserted(res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// AsRecord returns r, or its tombstone when r is pending delete.
func AsRecord(f models.Family, r models.Record) models.Record {
	if r.Status() == models.StatusPendingDelete {
		return models.Tombstone{RecordFamily: f, ID: r.RecordID(), UpdatedAt: r.LastUpdated()}
	}
	return r
}

// Split converts deleted rows into tombstones, keeping order.
func Split[T models.Record](f models.Family, rows []T) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, AsRecord(f, r))
	}
	return out
}

// CurrentRow maps the scan of a by-id lookup that ignores sync status.
func CurrentRow[T models.Record](f models.Family, row T, err error) (models.Record, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current %s row: %w", f, err)
	}
	return AsRecord(f, row), nil
}
