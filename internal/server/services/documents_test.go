package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
)

type docCall struct {
	op     string
	userID string
	ref    docstore.Ref
	fields map[string]any
	merge  bool
}

type fakeDocsRepo struct {
	calls []docCall
	err   error
	docs  []docstore.Document
	count int64
}

func (f *fakeDocsRepo) record(c docCall) error {
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeDocsRepo) Set(_ context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error {
	return f.record(docCall{op: "set", userID: userID, ref: ref, fields: fields, merge: merge})
}

func (f *fakeDocsRepo) Update(_ context.Context, userID string, ref docstore.Ref, fields map[string]any) error {
	return f.record(docCall{op: "update", userID: userID, ref: ref, fields: fields})
}

func (f *fakeDocsRepo) Get(_ context.Context, userID string, ref docstore.Ref) (docstore.Document, error) {
	if err := f.record(docCall{op: "get", userID: userID, ref: ref}); err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: ref.ID, Data: map[string]any{"title": "t"}}, nil
}

func (f *fakeDocsRepo) Query(_ context.Context, userID string, q docstore.Query) ([]docstore.Document, error) {
	return f.docs, f.record(docCall{op: "query", userID: userID, ref: docstore.Ref{Collection: q.Collection}})
}

func (f *fakeDocsRepo) ListIDs(_ context.Context, userID, collection string) ([]string, error) {
	return []string{"a"}, f.record(docCall{op: "list", userID: userID, ref: docstore.Ref{Collection: collection}})
}

func (f *fakeDocsRepo) Count(_ context.Context, userID, collection string, _ []docstore.Filter) (int64, error) {
	return f.count, f.record(docCall{op: "count", userID: userID, ref: docstore.Ref{Collection: collection}})
}

func (f *fakeDocsRepo) DeleteTombstonesBefore(context.Context, string, string, int64, int) ([]string, error) {
	return nil, nil
}

func newDocService(t *testing.T) (*DocumentService, *fakeDocsRepo) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	repo := &fakeDocsRepo{}
	return NewDocumentService(db, &fakeRepoManager{d: repo}), repo
}

func TestDocumentService_ScopesCallsToUser(t *testing.T) {
	s, repo := newDocService(t)
	ctx := context.Background()
	ref := docstore.Ref{Collection: docstore.CollectionEntries, ID: "e1"}

	require.NoError(t, s.Set(ctx, "u1", ref, map[string]any{"title": "x"}, true))
	require.NoError(t, s.Update(ctx, "u1", ref, map[string]any{"mediaUploadedAt": 1}))
	doc, err := s.Get(ctx, "u1", ref)
	require.NoError(t, err)
	assert.Equal(t, "e1", doc.ID)

	repo.docs = []docstore.Document{{ID: "e1"}}
	docs, err := s.Query(ctx, "u1", docstore.Query{Collection: docstore.CollectionEntries, Filters: []docstore.Filter{docstore.NotDeleted()}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	ids, err := s.ListIDs(ctx, "u1", docstore.CollectionGoals)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	repo.count = 3
	n, err := s.Count(ctx, "u1", docstore.CollectionCheckIns, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, repo.calls, 6)
	for _, c := range repo.calls {
		assert.Equal(t, "u1", c.userID, c.op)
	}
	assert.True(t, repo.calls[0].merge)
}

func TestDocumentService_Validation(t *testing.T) {
	s, repo := newDocService(t)
	ctx := context.Background()
	good := docstore.Ref{Collection: docstore.CollectionEntries, ID: "e1"}

	assert.ErrorIs(t, s.Set(ctx, "", good, nil, true), common.ErrUnauthorized)
	assert.ErrorIs(t, s.Set(ctx, "u1", docstore.Ref{Collection: "secrets", ID: "x"}, nil, true), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Set(ctx, "u1", docstore.Ref{Collection: docstore.CollectionEntries, ID: "a/b"}, nil, true), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Update(ctx, "u1", good, nil), common.ErrInvalidArgument)

	_, err := s.Query(ctx, "u1", docstore.Query{Collection: docstore.CollectionEntries, Limit: -1})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = s.ListIDs(ctx, "u1", "nope")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = s.Count(ctx, "u1", docstore.CollectionEntries, []docstore.Filter{{Field: "x", Op: "like"}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = s.Get(ctx, "", good)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	assert.Empty(t, repo.calls)
}

func TestDocumentService_PropagatesNotFound(t *testing.T) {
	s, repo := newDocService(t)
	repo.err = common.ErrNotFound

	err := s.Update(context.Background(), "u1", docstore.Ref{Collection: docstore.CollectionEntries, ID: "e1"}, map[string]any{"a": 1})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Get(context.Background(), "u1", docstore.Ref{Collection: docstore.CollectionEntries, ID: "e1"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
