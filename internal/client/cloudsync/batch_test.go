package cloudsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

func TestPushPendingChanges_NotSignedIn(t *testing.T) {
	env := newEnv(t)
	env.identity.userID = ""
	env.addEntry(t, "e1", "Day one", "Hello")

	res := env.coord.PushPendingChanges(context.Background())

	require.ErrorIs(t, res.Err, common.ErrNotSignedIn)
	assert.Equal(t, PhaseError, env.state.Get().Phase)
	assert.Equal(t, "not signed in", env.state.Get().Message)
	assert.Zero(t, env.remote.Writes())
	assert.Len(t, env.pending(t, models.FamilyEntries), 1)
}

func TestPushPendingChanges_AllFamilies(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	env.addEntry(t, "e1", "Day one", "Hello")
	env.addEntry(t, "e2", "Day two", "World")
	require.NoError(t, env.mgr.Goals().Create(ctx, &models.Goal{ID: "g1", Title: "Run", CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, env.mgr.CheckIns().Create(ctx, &models.CheckIn{ID: "c1", GoalID: "g1", Day: "2024-05-01", Completed: true, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, env.mgr.CheckIns().MarkDeleted(ctx, "c1", t0.Add(time.Minute)))
	require.NoError(t, env.mgr.Reminders().Create(ctx, &models.Reminder{ID: "r1", Title: "Write", TimeOfDay: "21:00", Weekdays: models.EveryDay, Enabled: true, CreatedAt: t0, UpdatedAt: t0}))
	prefs := env.mgr.PreferenceRepo()
	require.NoError(t, prefs.Set(ctx, "theme", "dark", t0))
	require.NoError(t, prefs.Set(ctx, "last_screen", "goals", t0))

	res := env.coord.PushPendingChanges(ctx)

	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.Uploaded)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, res.PreferencesPushed)
	assert.True(t, res.MetadataWritten)
	assert.Equal(t, map[models.Family]int{
		models.FamilyEntries:   2,
		models.FamilyGoals:     1,
		models.FamilyCheckIns:  1,
		models.FamilyReminders: 1,
	}, res.ByFamily)

	for _, f := range models.Families {
		assert.Empty(t, env.pending(t, f), f)
	}
	assert.Equal(t, true, env.remoteDoc(t, "checkins", "c1")[docstore.FieldDeleted])

	pdoc := env.remoteDoc(t, docstore.CollectionPreferences, "app")
	assert.Equal(t, "dark", pdoc["theme"])
	assert.NotContains(t, pdoc, "last_screen")

	meta := env.remoteDoc(t, docstore.CollectionMeta, SyncMetadataDocID)
	assert.Equal(t, "device-1", meta["deviceId"])
	assert.Equal(t, common.ClientVersion, meta["clientVersion"])
	assert.Equal(t, timex.UnixMillis(t0.Add(time.Hour)), meta["lastPushAt"])

	assert.Equal(t, PhaseIdle, env.state.Get().Phase)
	ev, ok := env.events.Last(analytics.EventSyncCompleted)
	require.True(t, ok)
	assert.Equal(t, 4, ev.Props["uploaded"])
	assert.Equal(t, true, ev.Props["ok"])
}

func TestPushPendingChanges_PartialFailureIsolated(t *testing.T) {
	env := newEnv(t)
	env.addEntry(t, "e1", "Day one", "Hello")
	env.addEntry(t, "e2", "Day two", "World")
	env.addEntry(t, "e3", "Day three", "Again")
	env.remote.SetFailFunc(failRef("entries", "e2", errOffline))

	res := env.coord.PushPendingChanges(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, res.MetadataWritten)

	pending := env.pending(t, models.FamilyEntries)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].RecordID())
	assert.Equal(t, PhaseIdle, env.state.Get().Phase)

	// the next run picks the leftover up
	env.remote.SetFailFunc(nil)
	res = env.coord.PushPendingChanges(context.Background())
	assert.Equal(t, 1, res.Uploaded)
	assert.Empty(t, env.pending(t, models.FamilyEntries))
}

func TestPushPendingChanges_TotalFailure(t *testing.T) {
	env := newEnv(t)
	env.addEntry(t, "e1", "Day one", "Hello")
	env.remote.SetFailFunc(func(string, docstore.Ref) error { return errOffline })

	res := env.coord.PushPendingChanges(context.Background())

	require.ErrorIs(t, res.Err, common.ErrUnavailable)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.MetadataWritten)
	assert.Equal(t, PhaseError, env.state.Get().Phase)
	assert.Len(t, env.pending(t, models.FamilyEntries), 1)
}

func TestPushPendingChanges_NothingPending(t *testing.T) {
	env := newEnv(t)

	res := env.coord.PushPendingChanges(context.Background())

	require.NoError(t, res.Err)
	assert.Zero(t, res.Uploaded)
	assert.True(t, res.MetadataWritten)
	assert.Equal(t, 1, env.remote.Writes())
}

func TestPushPendingChanges_Cancelled(t *testing.T) {
	env := newEnv(t)
	env.addEntry(t, "e1", "Day one", "Hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := env.coord.PushPendingChanges(ctx)

	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, env.remote.Writes())
	assert.Len(t, env.pending(t, models.FamilyEntries), 1)
}

func TestPushPendingChanges_StateTransitions(t *testing.T) {
	env := newEnv(t)
	env.addEntry(t, "e1", "Day one", "Hello")
	ch, stop := env.state.Subscribe()
	defer stop()

	var seen []Phase
	env.remote.SetFailFunc(func(op string, ref docstore.Ref) error {
		if ref.Collection == "entries" {
			select {
			case s := <-ch:
				seen = append(seen, s.Phase)
			default:
			}
		}
		return nil
	})

	env.coord.PushPendingChanges(context.Background())
	seen = append(seen, (<-ch).Phase)

	assert.Equal(t, []Phase{PhaseSyncing, PhaseIdle}, seen)
}
