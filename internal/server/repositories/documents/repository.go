// Package documents stores the per-user remote document collections the
// client sync engine writes to.
package documents

import (
	"context"

	"github.com/dmitrijs2005/gophjournal/internal/docstore"
)

// Repository is the server side of docstore.Store, keyed by user id.
type Repository interface {
	Set(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error
	// Update merges fields into an existing document; common.ErrNotFound
	// when there is none.
	Update(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any) error
	Get(ctx context.Context, userID string, ref docstore.Ref) (docstore.Document, error)
	Query(ctx context.Context, userID string, q docstore.Query) ([]docstore.Document, error)
	ListIDs(ctx context.Context, userID, collection string) ([]string, error)
	Count(ctx context.Context, userID, collection string, filters []docstore.Filter) (int64, error)

	// DeleteTombstonesBefore physically removes up to limit tombstones whose
	// updatedAt (Unix millis) is older than cutoff and returns their ids.
	DeleteTombstonesBefore(ctx context.Context, userID, collection string, cutoff int64, limit int) ([]string, error)
}
