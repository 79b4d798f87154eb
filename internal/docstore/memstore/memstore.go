// Package memstore is an in-memory docstore.Store with the same merge
// semantics as the server. It backs engine tests and offline demos.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
)

// Operation names passed to a FailFunc.
const (
	OpSet    = "set"
	OpUpdate = "update"
	OpGet    = "get"
	OpQuery  = "query"
	OpList   = "list"
	OpCount  = "count"
)

// FailFunc lets tests inject errors. A non-nil return aborts the call before
// any state changes.
type FailFunc func(op string, ref docstore.Ref) error

type Store struct {
	mu     sync.Mutex
	docs   map[string]map[string]map[string]any
	writes int
	fail   FailFunc
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[string]map[string]map[string]any)}
}

// SetFailFunc installs (or clears, with nil) an error injector.
func (s *Store) SetFailFunc(f FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = f
}

// Writes returns the number of successful Set/Update calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) check(op string, ref docstore.Ref) error {
	if s.fail == nil {
		return nil
	}
	return s.fail(op, ref)
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, fields map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpSet, ref); err != nil {
		return err
	}

	coll := s.docs[ref.Collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.docs[ref.Collection] = coll
	}
	cur, ok := coll[ref.ID]
	if !ok || !merge {
		cur = make(map[string]any, len(fields))
		coll[ref.ID] = cur
	}
	for k, v := range fields {
		cur[k] = v
	}
	s.writes++
	return nil
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, fields map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpUpdate, ref); err != nil {
		return err
	}

	cur, ok := s.docs[ref.Collection][ref.ID]
	if !ok {
		return common.ErrNotFound
	}
	for k, v := range fields {
		cur[k] = v
	}
	s.writes++
	return nil
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpGet, ref); err != nil {
		return docstore.Document{}, err
	}

	cur, ok := s.docs[ref.Collection][ref.ID]
	if !ok {
		return docstore.Document{}, common.ErrNotFound
	}
	return docstore.Document{ID: ref.ID, Data: clone(cur)}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpQuery, docstore.Ref{Collection: q.Collection}); err != nil {
		return nil, err
	}

	var out []docstore.Document
	for id, data := range s.docs[q.Collection] {
		if docstore.Matches(data, q.Filters) {
			out = append(out, docstore.Document{ID: id, Data: clone(data)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c, ok := docstore.Compare(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if ok && c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpList, docstore.Ref{Collection: collection}); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Count(ctx context.Context, collection string, filters []docstore.Filter) (int64, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}
	if err := docstore.ValidateFilters(filters); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpCount, docstore.Ref{Collection: collection}); err != nil {
		return 0, err
	}

	var n int64
	for _, data := range s.docs[collection] {
		if docstore.Matches(data, filters) {
			n++
		}
	}
	return n, nil
}

// Purge physically removes a document, the way the retention sweeper does
// server-side.
func (s *Store) Purge(ref docstore.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[ref.Collection], ref.ID)
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
