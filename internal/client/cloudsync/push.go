package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/mapper"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

// Pusher writes single records to the remote store.
type Pusher struct {
	local      repomanager.SyncStore
	remote     docstore.Store
	media      *MediaSync
	dispatcher *Dispatcher
	locks      keyMutex
	logger     logging.Logger
	now        func() time.Time
}

// NewPusher builds a Pusher. media may be nil to disable attachment upload.
func NewPusher(local repomanager.SyncStore, remote docstore.Store, media *MediaSync, d *Dispatcher, l logging.Logger) *Pusher {
	return &Pusher{
		local:      local,
		remote:     remote,
		media:      media,
		dispatcher: d,
		logger:     l.With("module", "pusher"),
		now:        time.Now,
	}
}

// PushRecord sends the current local state of rec's row. rec only names
// the row: its fields may be stale by the time the push runs, so the row is
// re-read under a per-record lock and whatever it holds now is written.
// On failure the local status is left as is; the error is returned for the
// caller's bookkeeping only.
func (p *Pusher) PushRecord(ctx context.Context, rec models.Record) error {
	return p.pushCurrent(ctx, rec.Family(), rec.RecordID())
}

// PushDeletion sends a pending deletion. The local row is hard-deleted only
// once the remote tombstone write has succeeded.
func (p *Pusher) PushDeletion(ctx context.Context, f models.Family, id string) error {
	return p.pushCurrent(ctx, f, id)
}

// pushCurrent holds the record's lock across read, remote write and status
// update, so two pushes of one record never overlap.
func (p *Pusher) pushCurrent(ctx context.Context, f models.Family, id string) error {
	repo, err := p.local.Family(f)
	if err != nil {
		return err
	}
	ref := docstore.Ref{Collection: string(f), ID: id}

	unlock := p.locks.Lock(ref.String())
	defer unlock()

	cur, err := repo.Current(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		p.logger.Debug(ctx, "record no longer stored locally, nothing to push", "ref", ref.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ref, err)
	}

	switch cur.Status() {
	case models.StatusSynced:
		p.logger.Debug(ctx, "record already synced", "ref", ref.String())
		return nil
	case models.StatusPendingDelete:
		return p.writeTombstone(ctx, repo, ref)
	}
	return p.writeRecord(ctx, repo, ref, cur)
}

func (p *Pusher) writeRecord(ctx context.Context, repo repomanager.SyncRepository, ref docstore.Ref, rec models.Record) error {
	fields, err := mapper.ToRemote(rec)
	if err != nil {
		return err
	}

	if err := p.remote.Set(ctx, ref, fields, true); err != nil {
		p.logger.Warn(ctx, "push failed, record stays pending", "ref", ref.String(), "error", err)
		return fmt.Errorf("push %s: %w", ref, err)
	}

	advanced, err := repo.MarkSynced(ctx, ref.ID, rec.LastUpdated())
	if err != nil {
		p.logger.Error(ctx, "pushed but could not mark synced", "ref", ref.String(), "error", err)
		return err
	}
	if !advanced {
		p.logger.Debug(ctx, "record changed during push, stays pending", "ref", ref.String())
	}

	if e, ok := rec.(*models.Entry); ok && p.media != nil && len(e.MediaKeys()) > 0 && p.dispatcher != nil {
		p.dispatcher.Go("media_upload:"+e.ID, func(ctx context.Context) error {
			return p.media.UploadEntryMedia(ctx, e)
		})
	}
	return nil
}

func (p *Pusher) writeTombstone(ctx context.Context, repo repomanager.SyncRepository, ref docstore.Ref) error {
	if err := p.remote.Set(ctx, ref, mapper.TombstoneFields(p.now()), true); err != nil {
		p.logger.Warn(ctx, "tombstone write failed, row kept", "ref", ref.String(), "error", err)
		return fmt.Errorf("push deletion %s: %w", ref, err)
	}

	if err := repo.HardDelete(ctx, ref.ID); err != nil {
		p.logger.Error(ctx, "tombstone written but local delete failed", "ref", ref.String(), "error", err)
		return err
	}
	return nil
}

// PushAsync is the fire-and-forget entry point used right after a local
// mutation.
func (p *Pusher) PushAsync(rec models.Record) {
	if p.dispatcher == nil {
		return
	}
	f, id := rec.Family(), rec.RecordID()
	p.dispatcher.Go("push:"+string(f)+"/"+id, func(ctx context.Context) error {
		return p.pushCurrent(ctx, f, id)
	})
}
