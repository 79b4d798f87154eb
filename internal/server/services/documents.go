package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/repomanager"
)

// DocumentService validates client requests and scopes them to the calling
// user before they reach the documents repository.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager) *DocumentService {
	return &DocumentService{db: db, repomanager: m}
}

func requireUser(userID string) error {
	if userID == "" {
		return common.ErrUnauthorized
	}
	return nil
}

func (s *DocumentService) Set(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := s.repomanager.Documents(s.db).Set(ctx, userID, ref, fields, merge); err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

func (s *DocumentService) Update(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", common.ErrInvalidArgument)
	}
	if err := s.repomanager.Documents(s.db).Update(ctx, userID, ref, fields); err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	return nil
}

func (s *DocumentService) Get(ctx context.Context, userID string, ref docstore.Ref) (docstore.Document, error) {
	if err := requireUser(userID); err != nil {
		return docstore.Document{}, err
	}
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	doc, err := s.repomanager.Documents(s.db).Get(ctx, userID, ref)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	return doc, nil
}

func (s *DocumentService) Query(ctx context.Context, userID string, q docstore.Query) ([]docstore.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.repomanager.Documents(s.db).Query(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (s *DocumentService) ListIDs(ctx context.Context, userID, collection string) ([]string, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	ids, err := s.repomanager.Documents(s.db).ListIDs(ctx, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return ids, nil
}

func (s *DocumentService) Count(ctx context.Context, userID, collection string, filters []docstore.Filter) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}
	if err := docstore.ValidateFilters(filters); err != nil {
		return 0, err
	}
	n, err := s.repomanager.Documents(s.db).Count(ctx, userID, collection, filters)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}
