package cloudsync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

// Dispatcher runs fire-and-forget sync tasks on a bounded pool. Tasks get
// the dispatcher's own context, not the caller's, so they outlive the UI
// action that triggered them.
type Dispatcher struct {
	ctx    context.Context
	g      errgroup.Group
	logger logging.Logger
}

func NewDispatcher(ctx context.Context, limit int, l logging.Logger) *Dispatcher {
	d := &Dispatcher{ctx: ctx, logger: l.With("module", "dispatcher")}
	if limit > 0 {
		d.g.SetLimit(limit)
	}
	return d
}

// Go starts fn unless the pool is saturated, in which case the work is
// dropped: the record stays pending and the next batch push picks it up.
// Errors are logged only.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) bool {
	started := d.g.TryGo(func() error {
		if err := fn(d.ctx); err != nil {
			d.logger.Warn(d.ctx, "background task failed", "task", name, "error", err)
		}
		return nil
	})
	if !started {
		d.logger.Debug(d.ctx, "dispatcher saturated, task left for the next sync", "task", name)
	}
	return started
}

// Wait blocks until every started task has returned.
func (d *Dispatcher) Wait() {
	_ = d.g.Wait()
}
