package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/mapper"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

type RestoreKind int

const (
	RestoreNoCloudData RestoreKind = iota
	RestoreRestored
	RestorePushedLocal
	RestoreMerged
	RestoreFailed
)

func (k RestoreKind) String() string {
	switch k {
	case RestoreNoCloudData:
		return "no_cloud_data"
	case RestoreRestored:
		return "restored"
	case RestorePushedLocal:
		return "pushed_local"
	case RestoreMerged:
		return "merged"
	case RestoreFailed:
		return "failed"
	}
	return "unknown"
}

// CountPreferences is the Counts key for restored or pushed preferences.
const CountPreferences = "preferences"

// RestoreResult is the outcome of one Restore call. Counts is keyed by
// family name plus CountPreferences.
type RestoreResult struct {
	Kind    RestoreKind
	Counts  map[string]int
	Message string
	Err     error
}

// Restorer reconciles the local journal with the cloud right after
// sign-in.
type Restorer struct {
	local       repomanager.SyncStore
	remote      docstore.Store
	coordinator *Coordinator
	identity    Identity
	media       *MediaSync
	dispatcher  *Dispatcher
	state       *State
	sink        analytics.Sink
	logger      logging.Logger

	running atomic.Bool
}

// NewRestorer builds a Restorer. media and d may be nil, in which case
// attachments are not fetched after a full restore.
func NewRestorer(local repomanager.SyncStore, remote docstore.Store, c *Coordinator, id Identity, media *MediaSync, d *Dispatcher, state *State, sink analytics.Sink, l logging.Logger) *Restorer {
	if sink == nil {
		sink = analytics.Nop{}
	}
	return &Restorer{
		local:       local,
		remote:      remote,
		coordinator: c,
		identity:    id,
		media:       media,
		dispatcher:  d,
		state:       state,
		sink:        sink,
		logger:      l.With("module", "restorer"),
	}
}

// Restore picks an action from the remote live entry count R and the local
// entry count L:
//
//	R=0, L=0  nothing to do
//	R>0, L=0  pull every family from the cloud
//	R=0, L>0  push the local journal up
//	R>0, L>0  push local changes, leave both sides otherwise untouched
//
// A second call while one is running fails with ErrRestoreInProgress.
func (r *Restorer) Restore(ctx context.Context) RestoreResult {
	if !r.running.CompareAndSwap(false, true) {
		return failed(common.ErrRestoreInProgress)
	}
	defer r.running.Store(false)

	if _, ok := r.identity.UserID(ctx); !ok {
		res := failed(common.ErrNotSignedIn)
		r.state.set(PhaseError, res.Message)
		return res
	}

	r.state.set(PhaseRestoreInProgress, "")
	res := r.restore(ctx)

	if res.Kind == RestoreFailed {
		r.state.set(PhaseError, res.Message)
	} else {
		r.state.set(PhaseIdle, "")
	}

	props := map[string]any{"kind": res.Kind.String()}
	for k, v := range res.Counts {
		props[k] = v
	}
	r.sink.Track(ctx, analytics.EventRestoreCompleted, props)
	r.logger.Info(ctx, "restore finished", "kind", res.Kind.String(), "counts", res.Counts, "message", res.Message)

	return res
}

func (r *Restorer) restore(ctx context.Context) RestoreResult {
	remoteCount, err := r.remote.Count(ctx, docstore.CollectionEntries, []docstore.Filter{docstore.NotDeleted()})
	if err != nil {
		return failed(fmt.Errorf("count remote entries: %w", err))
	}
	entries, err := r.local.Family(models.FamilyEntries)
	if err != nil {
		return failed(err)
	}
	localCount, err := entries.Count(ctx)
	if err != nil {
		return failed(fmt.Errorf("count local entries: %w", err))
	}
	r.logger.Debug(ctx, "restore decision inputs", "remote", remoteCount, "local", localCount)

	switch {
	case remoteCount == 0 && localCount == 0:
		return RestoreResult{Kind: RestoreNoCloudData, Counts: map[string]int{}, Message: "nothing to restore"}
	case remoteCount > 0 && localCount == 0:
		return r.fullRestore(ctx)
	case remoteCount == 0:
		return r.pushLocal(ctx, RestorePushedLocal, "local journal uploaded")
	default:
		return r.pushLocal(ctx, RestoreMerged, "local changes uploaded, cloud data left as is")
	}
}

func (r *Restorer) pushLocal(ctx context.Context, kind RestoreKind, msg string) RestoreResult {
	batch := r.coordinator.PushPendingChanges(ctx)
	if batch.Err != nil {
		return failed(batch.Err)
	}
	counts := make(map[string]int, len(batch.ByFamily)+1)
	for f, n := range batch.ByFamily {
		counts[string(f)] = n
	}
	counts[CountPreferences] = batch.PreferencesPushed
	if batch.Failed > 0 {
		msg = fmt.Sprintf("%s, %d records left pending", msg, batch.Failed)
	}
	return RestoreResult{Kind: kind, Counts: counts, Message: msg}
}

func (r *Restorer) fullRestore(ctx context.Context) RestoreResult {
	counts := make(map[string]int, len(models.Families)+1)
	var (
		errs    []error
		pulled  []*models.Entry
		skipped int
	)

	for _, f := range models.Families {
		recs, bad, err := r.pull(ctx, f)
		if err != nil {
			r.logger.Warn(ctx, "pulling family failed", "family", f, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		skipped += bad

		n, err := r.local.RestoreFamily(ctx, f, recs)
		if err != nil {
			r.logger.Warn(ctx, "restoring family failed, rolled back", "family", f, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		counts[string(f)] = n

		if f == models.FamilyEntries {
			for _, rec := range recs {
				if e, ok := rec.(*models.Entry); ok {
					pulled = append(pulled, e)
				}
			}
		}
	}

	n, err := r.restorePreferences(ctx)
	if err != nil {
		r.logger.Warn(ctx, "restoring preferences failed", "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", CountPreferences, err))
	}
	counts[CountPreferences] = n

	if len(errs) == len(models.Families)+1 {
		return failed(errors.Join(errs...))
	}

	if err := r.local.RebuildSearchIndex(ctx); err != nil {
		r.logger.Warn(ctx, "search index rebuild failed", "error", err)
	}
	r.fetchMedia(pulled)

	msg := "journal restored from cloud"
	if len(errs) > 0 {
		msg = fmt.Sprintf("%s with errors: %v", msg, errors.Join(errs...))
	}
	if skipped > 0 {
		r.logger.Warn(ctx, "skipped malformed cloud documents", "count", skipped)
	}
	return RestoreResult{Kind: RestoreRestored, Counts: counts, Message: msg}
}

// pull reads the live documents of one family and maps them. Documents
// that do not map are counted and dropped.
func (r *Restorer) pull(ctx context.Context, f models.Family) ([]models.Record, int, error) {
	docs, err := r.remote.Query(ctx, docstore.Query{
		Collection: string(f),
		Filters:    []docstore.Filter{docstore.NotDeleted()},
	})
	if err != nil {
		return nil, 0, err
	}

	recs := make([]models.Record, 0, len(docs))
	var bad int
	for _, d := range docs {
		rec, ok := mapper.FromRemote(f, d.ID, d.Data)
		if !ok {
			r.logger.Debug(ctx, "unmappable document", "family", f, "id", d.ID)
			bad++
			continue
		}
		recs = append(recs, rec)
	}
	return recs, bad, nil
}

func (r *Restorer) restorePreferences(ctx context.Context) (int, error) {
	doc, err := r.remote.Get(ctx, docstore.Ref{Collection: docstore.CollectionPreferences, ID: mapper.PreferencesDocID})
	if errors.Is(err, common.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return r.local.RestorePreferences(ctx, mapper.PreferencesFromRemote(doc.Data))
}

func (r *Restorer) fetchMedia(entries []*models.Entry) {
	if r.media == nil || r.dispatcher == nil {
		return
	}
	for _, e := range entries {
		if len(e.MediaKeys()) == 0 {
			continue
		}
		r.dispatcher.Go("media_fetch:"+e.ID, func(ctx context.Context) error {
			return r.media.FetchEntryMedia(ctx, e)
		})
	}
}

func failed(err error) RestoreResult {
	return RestoreResult{Kind: RestoreFailed, Counts: map[string]int{}, Message: err.Error(), Err: err}
}
