package grpc

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/docstore/memstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
)

type fakeUsers struct {
	regResp *models.User
	regErr  error

	saltResp []byte
	saltErr  error

	loginResp *services.TokenPair
	loginErr  error

	refreshResp *services.TokenPair
	refreshErr  error
}

func (f *fakeUsers) Register(context.Context, string, []byte, []byte) (*models.User, error) {
	return f.regResp, f.regErr
}

func (f *fakeUsers) GetSalt(context.Context, string) ([]byte, error) {
	return f.saltResp, f.saltErr
}

func (f *fakeUsers) Login(context.Context, string, []byte) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeUsers) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}

// fakeDocs keeps one in-memory store per user.
type fakeDocs struct {
	mu     sync.Mutex
	stores map[string]*memstore.Store
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{stores: map[string]*memstore.Store{}}
}

func (f *fakeDocs) store(userID string) (*memstore.Store, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[userID]
	if !ok {
		s = memstore.New()
		f.stores[userID] = s
	}
	return s, nil
}

func (f *fakeDocs) Set(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error {
	s, err := f.store(userID)
	if err != nil {
		return err
	}
	return s.Set(ctx, ref, fields, merge)
}

func (f *fakeDocs) Update(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any) error {
	s, err := f.store(userID)
	if err != nil {
		return err
	}
	return s.Update(ctx, ref, fields)
}

func (f *fakeDocs) Get(ctx context.Context, userID string, ref docstore.Ref) (docstore.Document, error) {
	s, err := f.store(userID)
	if err != nil {
		return docstore.Document{}, err
	}
	return s.Get(ctx, ref)
}

func (f *fakeDocs) Query(ctx context.Context, userID string, q docstore.Query) ([]docstore.Document, error) {
	s, err := f.store(userID)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, q)
}

func (f *fakeDocs) ListIDs(ctx context.Context, userID, collection string) ([]string, error) {
	s, err := f.store(userID)
	if err != nil {
		return nil, err
	}
	return s.ListDocuments(ctx, collection)
}

func (f *fakeDocs) Count(ctx context.Context, userID, collection string, filters []docstore.Filter) (int64, error) {
	s, err := f.store(userID)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, collection, filters)
}

type fakeMedia struct {
	lastUser, lastKey string
	deleted           int
	err               error
}

func (f *fakeMedia) PresignUpload(_ context.Context, userID, key string) (string, error) {
	f.lastUser, f.lastKey = userID, key
	return "https://s3/put/" + key, f.err
}

func (f *fakeMedia) PresignDownload(_ context.Context, userID, key string) (string, error) {
	f.lastUser, f.lastKey = userID, key
	return "https://s3/get/" + key, f.err
}

func (f *fakeMedia) DeletePrefix(_ context.Context, userID, prefix string) (int, error) {
	f.lastUser, f.lastKey = userID, prefix
	return f.deleted, f.err
}

type testEnv struct {
	srv   *GRPCServer
	users *fakeUsers
	docs  *fakeDocs
	media *fakeMedia
}

func newTestEnv() *testEnv {
	e := &testEnv{users: &fakeUsers{}, docs: newFakeDocs(), media: &fakeMedia{}}
	e.srv = NewGRPCServer("127.0.0.1:0", logging.NewNopLogger(), e.users, e.docs, e.media, "secret")
	return e
}
