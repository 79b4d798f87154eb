// Package retention permanently removes remote tombstones once every device
// has had the retention window to observe them.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/scheduler"
)

const (
	DefaultWindow    = 30 * 24 * time.Hour
	DefaultBatchSize = 100

	JobName = "retention-sweep"
)

type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type TombstoneStore interface {
	DeleteTombstonesBefore(ctx context.Context, userID, collection string, cutoff int64, limit int) ([]string, error)
}

// MediaCleaner removes the objects stored for a swept entry.
type MediaCleaner interface {
	DeletePrefix(ctx context.Context, userID, prefix string) (int, error)
}

// TokenPurger drops expired refresh tokens as part of the same sweep.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Report summarises one sweep. Swept counts deleted tombstones per family.
type Report struct {
	Users         int
	Swept         map[string]int
	MediaDeleted  int
	TokensPurged  int64
	FailedBatches int
	Err           error
}

func (r Report) Total() int {
	n := 0
	for _, c := range r.Swept {
		n += c
	}
	return n
}

type Sweeper struct {
	users      UserLister
	tombstones TombstoneStore
	media      MediaCleaner
	tokens     TokenPurger
	window     time.Duration
	batchSize  int
	now        func() time.Time
	logger     logging.Logger
}

type Option func(*Sweeper)

func WithWindow(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithMediaCleaner(m MediaCleaner) Option {
	return func(s *Sweeper) { s.media = m }
}

func WithTokenPurger(p TokenPurger) Option {
	return func(s *Sweeper) { s.tokens = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(users UserLister, tombstones TombstoneStore, l logging.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		users:      users,
		tombstones: tombstones,
		window:     DefaultWindow,
		batchSize:  DefaultBatchSize,
		now:        time.Now,
		logger:     l.With("module", "retention"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sweep deletes, for every user and syncable family, tombstones whose
// updatedAt is older than now minus the window. Batches repeat until one
// comes back short. A failing batch is logged and counted; the sweep moves
// on to the next family.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	rep := Report{Swept: map[string]int{}}
	cutoff := s.now().Add(-s.window).UnixMilli()

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("list users: %w", err)
		s.logger.Error(ctx, "sweep aborted", "error", err)
		return rep
	}
	rep.Users = len(ids)

	for _, userID := range ids {
		for _, family := range docstore.SyncableCollections {
			if err := ctx.Err(); err != nil {
				rep.Err = err
				return rep
			}
			n, err := s.sweepFamily(ctx, &rep, userID, family, cutoff)
			rep.Swept[family] += n
			if err != nil {
				rep.FailedBatches++
				s.logger.Warn(ctx, "tombstone batch failed", "user_id", userID, "family", family, "error", err)
			}
		}
	}

	if s.tokens != nil {
		n, err := s.tokens.PurgeExpiredTokens(ctx)
		if err != nil {
			s.logger.Warn(ctx, "refresh token purge failed", "error", err)
		}
		rep.TokensPurged = n
	}

	s.logger.Info(ctx, "sweep finished",
		"users", rep.Users, "swept", rep.Total(), "media_deleted", rep.MediaDeleted,
		"tokens_purged", rep.TokensPurged, "failed_batches", rep.FailedBatches)
	return rep
}

func (s *Sweeper) sweepFamily(ctx context.Context, rep *Report, userID, family string, cutoff int64) (int, error) {
	total := 0
	for {
		ids, err := s.tombstones.DeleteTombstonesBefore(ctx, userID, family, cutoff, s.batchSize)
		if err != nil {
			return total, err
		}
		total += len(ids)
		if family == docstore.CollectionEntries {
			s.dropMedia(ctx, rep, userID, ids)
		}
		if len(ids) < s.batchSize {
			return total, nil
		}
	}
}

// dropMedia is best effort; the tombstone is already gone.
func (s *Sweeper) dropMedia(ctx context.Context, rep *Report, userID string, entryIDs []string) {
	if s.media == nil {
		return
	}
	for _, id := range entryIDs {
		n, err := s.media.DeletePrefix(ctx, userID, "entries/"+id+"/")
		if err != nil {
			s.logger.Warn(ctx, "media cleanup failed", "user_id", userID, "entry_id", id, "error", err)
			continue
		}
		rep.MediaDeleted += n
	}
}

// Job wraps the sweeper for scheduler.Periodic. A run with failed batches
// is returned as an error so the scheduler retries it; sweeping is
// idempotent.
func Job(s *Sweeper, interval time.Duration, policy scheduler.RetryPolicy) scheduler.Job {
	return scheduler.Job{
		Name:     JobName,
		Interval: interval,
		Retry:    policy,
		Run: func(ctx context.Context) error {
			rep := s.Sweep(ctx)
			if rep.Err != nil {
				return rep.Err
			}
			if rep.FailedBatches > 0 {
				return fmt.Errorf("%d tombstone batches failed", rep.FailedBatches)
			}
			return nil
		},
	}
}
