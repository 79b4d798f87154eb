package cloudsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/sqlitetest"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/docstore/memstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeIdentity struct {
	userID string
}

func (f *fakeIdentity) UserID(context.Context) (string, bool) { return f.userID, f.userID != "" }
func (f *fakeIdentity) DeviceID(context.Context) string       { return "device-1" }

type testEnv struct {
	mgr        *repomanager.SQLiteManager
	remote     *memstore.Store
	dispatcher *Dispatcher
	pusher     *Pusher
	coord      *Coordinator
	restorer   *Restorer
	state      *State
	events     *analytics.Recorder
	identity   *fakeIdentity
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWithRemote(t, memstore.New())
}

// newEnvWithRemote builds a second device sharing remote with another env.
func newEnvWithRemote(t *testing.T, remote *memstore.Store) *testEnv {
	t.Helper()

	l := logging.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())

	env := &testEnv{
		mgr:      repomanager.New(sqlitetest.Open(t)),
		remote:   remote,
		state:    NewState(),
		events:   &analytics.Recorder{},
		identity: &fakeIdentity{userID: "u1"},
	}
	env.dispatcher = NewDispatcher(ctx, 4, l)
	t.Cleanup(func() {
		env.dispatcher.Wait()
		cancel()
	})

	env.pusher = NewPusher(env.mgr, env.remote, nil, env.dispatcher, l)
	env.pusher.now = func() time.Time { return t0.Add(time.Hour) }
	env.coord = NewCoordinator(env.mgr, env.remote, env.pusher, env.identity, env.state, env.events, l)
	env.coord.now = func() time.Time { return t0.Add(time.Hour) }
	env.restorer = NewRestorer(env.mgr, env.remote, env.coord, env.identity, nil, env.dispatcher, env.state, env.events, l)
	return env
}

func (e *testEnv) addEntry(t *testing.T, id, title, content string) *models.Entry {
	t.Helper()
	entry := &models.Entry{ID: id, Title: title, Content: content, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, e.mgr.Entries().Create(context.Background(), entry))
	return entry
}

func (e *testEnv) pending(t *testing.T, f models.Family) []models.Record {
	t.Helper()
	repo, err := e.mgr.Family(f)
	require.NoError(t, err)
	recs, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	return recs
}

func (e *testEnv) remoteDoc(t *testing.T, collection, id string) map[string]any {
	t.Helper()
	doc, err := e.remote.Get(context.Background(), docstore.Ref{Collection: collection, ID: id})
	require.NoError(t, err)
	return doc.Data
}

// failRef makes every operation on one document fail.
func failRef(collection, id string, err error) memstore.FailFunc {
	return func(_ string, ref docstore.Ref) error {
		if ref.Collection == collection && ref.ID == id {
			return err
		}
		return nil
	}
}
