package cloudsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/client/mapper"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/docstore/memstore"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

var errOffline = errors.New("offline")

func TestPushRecord_MarksSynced(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")

	require.NoError(t, env.pusher.PushRecord(ctx, e))

	doc := env.remoteDoc(t, "entries", "e1")
	assert.Equal(t, "Day one", doc["title"])
	assert.Equal(t, "Hello", doc["content"])
	assert.Equal(t, false, doc[docstore.FieldDeleted])
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}

func TestPushRecord_Idempotent(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")

	require.NoError(t, env.pusher.PushRecord(ctx, e))
	first := env.remoteDoc(t, "entries", "e1")

	require.NoError(t, env.pusher.PushRecord(ctx, e))
	assert.Equal(t, first, env.remoteDoc(t, "entries", "e1"))
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}

func TestPushRecord_FailureLeavesPending(t *testing.T) {
	env := newEnv(t)
	e := env.addEntry(t, "e1", "Day one", "Hello")
	env.remote.SetFailFunc(failRef("entries", "e1", errOffline))

	err := env.pusher.PushRecord(context.Background(), e)
	require.ErrorIs(t, err, errOffline)

	pending := env.pending(t, models.FamilyEntries)
	require.Len(t, pending, 1)
	assert.Equal(t, models.StatusPendingUpload, pending[0].Status())
	assert.Zero(t, env.remote.Writes())
}

func TestPushRecord_StaleSnapshotPushesCurrentRow(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	snapshot := *e

	e.Content = "Hello, edited"
	e.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, env.mgr.Entries().Update(ctx, e))

	require.NoError(t, env.pusher.PushRecord(ctx, &snapshot))
	assert.Equal(t, "Hello, edited", env.remoteDoc(t, "entries", "e1")["content"])
	assert.Empty(t, env.pending(t, models.FamilyEntries))

	// the later push of the edit finds nothing left to do
	writes := env.remote.Writes()
	require.NoError(t, env.pusher.PushRecord(ctx, e))
	assert.Equal(t, writes, env.remote.Writes())
	assert.Equal(t, "Hello, edited", env.remoteDoc(t, "entries", "e1")["content"])
}

func TestPushRecord_StaleSnapshotAfterEditWasPushed(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	snapshot := *e

	e.Content = "Hello, edited"
	e.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, env.mgr.Entries().Update(ctx, e))
	require.NoError(t, env.pusher.PushRecord(ctx, e))

	require.NoError(t, env.pusher.PushRecord(ctx, &snapshot))

	assert.Equal(t, "Hello, edited", env.remoteDoc(t, "entries", "e1")["content"])
	got, err := env.mgr.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, edited", got.Content)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
}

func TestPushRecord_EditDuringPushStaysPending(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")

	// the edit lands while the remote write is in flight, in the same
	// millisecond as the original row
	edited := false
	env.remote.SetFailFunc(func(op string, ref docstore.Ref) error {
		if op == memstore.OpSet && !edited {
			edited = true
			u := *e
			u.Content = "Hello, edited"
			require.NoError(t, env.mgr.Entries().Update(ctx, &u))
		}
		return nil
	})

	require.NoError(t, env.pusher.PushRecord(ctx, e))
	assert.Equal(t, "Hello", env.remoteDoc(t, "entries", "e1")["content"])

	pending := env.pending(t, models.FamilyEntries)
	require.Len(t, pending, 1)
	assert.Equal(t, "Hello, edited", pending[0].(*models.Entry).Content)

	require.NoError(t, env.pusher.PushRecord(ctx, pending[0]))
	assert.Equal(t, "Hello, edited", env.remoteDoc(t, "entries", "e1")["content"])
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}

func TestPushRecord_MergeKeepsSiblingFields(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	require.NoError(t, env.pusher.PushRecord(ctx, e))

	ref := docstore.Ref{Collection: "entries", ID: "e1"}
	require.NoError(t, env.remote.Update(ctx, ref, map[string]any{mapper.FieldMediaUploadedAt: int64(1)}))

	e.Title = "Renamed"
	e.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, env.mgr.Entries().Update(ctx, e))
	require.NoError(t, env.pusher.PushRecord(ctx, e))

	doc := env.remoteDoc(t, "entries", "e1")
	assert.Equal(t, "Renamed", doc["title"])
	assert.Equal(t, int64(1), doc[mapper.FieldMediaUploadedAt])
}

func TestPushDeletion_TombstoneThenHardDelete(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	require.NoError(t, env.pusher.PushRecord(ctx, e))
	require.NoError(t, env.mgr.Entries().MarkDeleted(ctx, "e1", t0.Add(time.Minute)))

	require.NoError(t, env.pusher.PushDeletion(ctx, models.FamilyEntries, "e1"))

	doc := env.remoteDoc(t, "entries", "e1")
	assert.Equal(t, true, doc[docstore.FieldDeleted])
	assert.Equal(t, timex.UnixMillis(t0.Add(time.Hour)), doc[docstore.FieldUpdatedAt])
	assert.Equal(t, "Day one", doc["title"], "merge keeps the old fields")

	n, err := env.mgr.Entries().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a retried deletion of an already purged row still succeeds
	require.NoError(t, env.pusher.PushDeletion(ctx, models.FamilyEntries, "e1"))
}

func TestPushRecord_LateSnapshotDoesNotResurrect(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	snapshot := *e

	require.NoError(t, env.mgr.Entries().MarkDeleted(ctx, "e1", t0.Add(time.Minute)))
	require.NoError(t, env.pusher.PushDeletion(ctx, models.FamilyEntries, "e1"))

	require.NoError(t, env.pusher.PushRecord(ctx, &snapshot))

	assert.Equal(t, true, env.remoteDoc(t, "entries", "e1")[docstore.FieldDeleted])
	live, err := env.remote.Count(ctx, "entries", []docstore.Filter{docstore.NotDeleted()})
	require.NoError(t, err)
	assert.Zero(t, live)
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}

func TestPushRecord_SnapshotOfDeletedRowWritesTombstone(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	require.NoError(t, env.mgr.Entries().MarkDeleted(ctx, "e1", t0.Add(time.Minute)))

	require.NoError(t, env.pusher.PushRecord(ctx, e))

	assert.Equal(t, true, env.remoteDoc(t, "entries", "e1")[docstore.FieldDeleted])
	n, err := env.mgr.Entries().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPushAsync_OutOfOrderConvergesOnTombstone(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	e := env.addEntry(t, "e1", "Day one", "Hello")
	created := *e
	env.pusher.PushAsync(&created)

	e.Content = "Hello, edited"
	e.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, env.mgr.Entries().Update(ctx, e))
	env.pusher.PushAsync(e)

	require.NoError(t, env.mgr.Entries().MarkDeleted(ctx, "e1", t0.Add(2*time.Minute)))
	env.pusher.PushAsync(models.Tombstone{RecordFamily: models.FamilyEntries, ID: "e1"})
	env.dispatcher.Wait()

	// any stale push still queued after the tombstone is a no-op
	require.NoError(t, env.pusher.PushRecord(ctx, &created))

	assert.Equal(t, true, env.remoteDoc(t, "entries", "e1")[docstore.FieldDeleted])
	n, err := env.mgr.Entries().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPushDeletion_FailureKeepsRow(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addEntry(t, "e1", "Day one", "Hello")
	require.NoError(t, env.mgr.Entries().MarkDeleted(ctx, "e1", t0.Add(time.Minute)))
	env.remote.SetFailFunc(failRef("entries", "e1", errOffline))

	err := env.pusher.PushDeletion(ctx, models.FamilyEntries, "e1")
	require.ErrorIs(t, err, errOffline)

	pending := env.pending(t, models.FamilyEntries)
	require.Len(t, pending, 1)
	assert.Equal(t, models.StatusPendingDelete, pending[0].Status())
	assert.Equal(t, "e1", pending[0].RecordID())
}

func TestPushDeletion_UnknownFamily(t *testing.T) {
	env := newEnv(t)
	err := env.pusher.PushDeletion(context.Background(), models.Family("moods"), "x")
	require.Error(t, err)
	assert.Zero(t, env.remote.Writes())
}

func TestPushAsync(t *testing.T) {
	env := newEnv(t)
	e := env.addEntry(t, "e1", "Day one", "Hello")

	env.pusher.PushAsync(e)
	env.dispatcher.Wait()

	assert.Equal(t, "Hello", env.remoteDoc(t, "entries", "e1")["content"])
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}
