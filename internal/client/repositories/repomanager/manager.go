// Package repomanager opens the client's SQLite database and vends the
// per-family repositories, both for direct use by services and through the
// narrower sync-facing interfaces consumed by the sync engine.
package repomanager

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
)

// SyncRepository is the slice of a family repository the sync engine uses.
type SyncRepository interface {
	ListPending(ctx context.Context) ([]models.Record, error)
	// Current re-reads one row whatever its status. Pending deletes come
	// back as tombstones; a missing row is common.ErrNotFound.
	Current(ctx context.Context, id string) (models.Record, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	HardDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type PreferenceSync interface {
	ListPending(ctx context.Context) ([]*models.Preference, error)
	MarkSynced(ctx context.Context, key string, updatedAt time.Time) (bool, error)
}

// SyncStore is the local database as seen by the sync engine.
type SyncStore interface {
	Family(f models.Family) (SyncRepository, error)
	Preferences() PreferenceSync

	// RestoreFamily inserts pulled records in one transaction. Existing rows
	// and unique collisions are skipped; any other error rolls the whole
	// family back.
	RestoreFamily(ctx context.Context, f models.Family, recs []models.Record) (int, error)
	RestorePreferences(ctx context.Context, prefs []*models.Preference) (int, error)
	RebuildSearchIndex(ctx context.Context) error
}
