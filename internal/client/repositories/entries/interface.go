// Package entries stores journal entries in the local SQLite database.
package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
)

// Repository covers local CRUD plus the queries the sync engine needs.
// Rows in StatusPendingDelete are invisible to Get/List/Search.
type Repository interface {
	Create(ctx context.Context, e *models.Entry) error
	Update(ctx context.Context, e *models.Entry) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*models.Entry, error)
	List(ctx context.Context, limit int) ([]*models.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Entry, error)

	ListPending(ctx context.Context) ([]models.Record, error)
	Current(ctx context.Context, id string) (models.Record, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	HardDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	InsertRestored(ctx context.Context, e *models.Entry) (bool, error)
	RebuildSearchIndex(ctx context.Context) error
}
