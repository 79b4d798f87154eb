package cloudsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/mapper"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// SyncMetadataDocID is the document id of the per-user sync metadata in
// the meta collection.
const SyncMetadataDocID = "sync"

// Identity reports who is signed in on this device.
type Identity interface {
	UserID(ctx context.Context) (string, bool)
	DeviceID(ctx context.Context) string
}

// BatchResult summarises one PushPendingChanges run.
type BatchResult struct {
	Uploaded          int
	Deleted           int
	Failed            int
	PreferencesPushed int
	MetadataWritten   bool
	// ByFamily counts successful uploads and deletions per family.
	ByFamily map[models.Family]int
	// Err is set only when nothing could be done: no session, or every
	// attempted write failed.
	Err error
}

// Coordinator pushes every pending local change in one pass.
type Coordinator struct {
	local    repomanager.SyncStore
	remote   docstore.Store
	pusher   *Pusher
	identity Identity
	state    *State
	sink     analytics.Sink
	logger   logging.Logger
	now      func() time.Time
}

func NewCoordinator(local repomanager.SyncStore, remote docstore.Store, pusher *Pusher, id Identity, state *State, sink analytics.Sink, l logging.Logger) *Coordinator {
	if sink == nil {
		sink = analytics.Nop{}
	}
	return &Coordinator{
		local:    local,
		remote:   remote,
		pusher:   pusher,
		identity: id,
		state:    state,
		sink:     sink,
		logger:   l.With("module", "coordinator"),
		now:      time.Now,
	}
}

// PushPendingChanges walks every family, then preferences, then writes the
// sync metadata document. A failing record or family never stops the rest;
// those records simply stay pending. Cancelling ctx stops between records.
func (c *Coordinator) PushPendingChanges(ctx context.Context) BatchResult {
	res := BatchResult{ByFamily: make(map[models.Family]int)}

	if _, ok := c.identity.UserID(ctx); !ok {
		res.Err = common.ErrNotSignedIn
		c.state.set(PhaseError, "not signed in")
		return res
	}
	c.state.set(PhaseSyncing, "")

	var writeErrs int
	for _, f := range models.Families {
		if ctx.Err() != nil {
			break
		}
		c.pushFamily(ctx, f, &res)
	}
	writeErrs += res.Failed

	if ctx.Err() == nil {
		n, err := c.pushPreferences(ctx)
		if err != nil {
			writeErrs++
			c.logger.Warn(ctx, "preferences push failed", "error", err)
		}
		res.PreferencesPushed = n
	}

	if ctx.Err() == nil {
		if err := c.writeMetadata(ctx); err != nil {
			writeErrs++
			c.logger.Warn(ctx, "sync metadata write failed", "error", err)
		} else {
			res.MetadataWritten = true
		}
	}

	succeeded := res.Uploaded + res.Deleted + res.PreferencesPushed
	if res.MetadataWritten {
		succeeded++
	}
	switch {
	case ctx.Err() != nil && succeeded == 0:
		res.Err = ctx.Err()
	case writeErrs > 0 && succeeded == 0:
		res.Err = fmt.Errorf("%w: all %d writes failed", common.ErrUnavailable, writeErrs)
	}

	if res.Err != nil {
		c.state.set(PhaseError, res.Err.Error())
	} else {
		c.state.set(PhaseIdle, "")
	}

	c.sink.Track(ctx, analytics.EventSyncCompleted, map[string]any{
		"uploaded":    res.Uploaded,
		"deleted":     res.Deleted,
		"failed":      res.Failed,
		"preferences": res.PreferencesPushed,
		"ok":          res.Err == nil,
	})
	c.logger.Info(ctx, "push finished",
		"uploaded", res.Uploaded, "deleted", res.Deleted, "failed", res.Failed,
		"preferences", res.PreferencesPushed, "metadata", res.MetadataWritten)

	return res
}

func (c *Coordinator) pushFamily(ctx context.Context, f models.Family, res *BatchResult) {
	repo, err := c.local.Family(f)
	if err != nil {
		c.logger.Error(ctx, "no repository for family", "family", f, "error", err)
		return
	}
	pending, err := repo.ListPending(ctx)
	if err != nil {
		c.logger.Warn(ctx, "listing pending records failed, family skipped", "family", f, "error", err)
		return
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}
		if rec.Status() == models.StatusPendingDelete {
			if err := c.pusher.PushDeletion(ctx, f, rec.RecordID()); err != nil {
				res.Failed++
				continue
			}
			res.Deleted++
			res.ByFamily[f]++
			continue
		}
		if err := c.pusher.PushRecord(ctx, rec); err != nil {
			res.Failed++
			continue
		}
		res.Uploaded++
		res.ByFamily[f]++
	}
}

// pushPreferences writes all pending allowlisted preferences as one merge
// write and returns how many were pushed.
func (c *Coordinator) pushPreferences(ctx context.Context) (int, error) {
	prefs := c.local.Preferences()
	pending, err := prefs.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	fields := mapper.PreferencesToRemote(pending)
	if fields == nil {
		return 0, nil
	}

	ref := docstore.Ref{Collection: docstore.CollectionPreferences, ID: mapper.PreferencesDocID}
	if err := c.remote.Set(ctx, ref, fields, true); err != nil {
		return 0, err
	}
	for _, p := range pending {
		if _, err := prefs.MarkSynced(ctx, p.Key, p.UpdatedAt); err != nil {
			c.logger.Warn(ctx, "preference pushed but not marked synced", "key", p.Key, "error", err)
		}
	}
	return len(pending), nil
}

func (c *Coordinator) writeMetadata(ctx context.Context) error {
	ref := docstore.Ref{Collection: docstore.CollectionMeta, ID: SyncMetadataDocID}
	return c.remote.Set(ctx, ref, map[string]any{
		"lastPushAt":    timex.UnixMillis(c.now()),
		"clientVersion": common.ClientVersion,
		"deviceId":      c.identity.DeviceID(ctx),
	}, true)
}
