// Package scheduler runs background jobs periodically or once, retrying a
// failed run with capped exponential backoff. The client's push job and the
// server's retention sweep are both Jobs.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

// RetryPolicy bounds how often a failed run is retried before it is
// reported as failed.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy mirrors a typical platform work-manager policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

type Job struct {
	Name     string
	Interval time.Duration
	Retry    RetryPolicy
	Run      func(ctx context.Context) error
}

// Report describes one run of a job, including every retry.
type Report struct {
	Job      string
	Attempts int
	Err      error
	Started  time.Time
	Finished time.Time
}

func (r Report) OK() bool { return r.Err == nil }

type Scheduler struct {
	logger   logging.Logger
	onReport func(Report)
	now      func() time.Time
}

type Option func(*Scheduler)

// WithOnReport registers a callback invoked after every run.
func WithOnReport(f func(Report)) Option {
	return func(s *Scheduler) { s.onReport = f }
}

func New(l logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: l.With("module", "scheduler"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) backoff(p RetryPolicy) retry.Backoff {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(initial)
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// RunOnce runs the job now, retrying per its policy. It never panics on a
// failing job; the outcome is in the returned Report.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) Report {
	rep := Report{Job: job.Name, Started: s.now()}

	err := retry.Do(ctx, s.backoff(job.Retry), func(ctx context.Context) error {
		rep.Attempts++
		if err := job.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Warn(ctx, "job attempt failed", "job", job.Name, "attempt", rep.Attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	rep.Err = err
	rep.Finished = s.now()
	s.report(ctx, rep)
	return rep
}

// Periodic runs the job every Interval until ctx is cancelled. The first run
// happens after one interval. An exhausted run does not stop the schedule.
func (s *Scheduler) Periodic(ctx context.Context, job Job) error {
	if job.Interval <= 0 {
		return errors.New("scheduler: non-positive interval")
	}

	s.logger.Info(ctx, "periodic job scheduled", "job", job.Name, "interval", job.Interval.String())

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "periodic job stopped", "job", job.Name)
			return nil
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

func (s *Scheduler) report(ctx context.Context, r Report) {
	dur := r.Finished.Sub(r.Started)
	if r.Err != nil {
		s.logger.Error(ctx, "job failed", "job", r.Job, "attempts", r.Attempts, "duration", dur.String(), "error", r.Err)
	} else {
		s.logger.Info(ctx, "job finished", "job", r.Job, "attempts", r.Attempts, "duration", dur.String())
	}
	if s.onReport != nil {
		s.onReport(r)
	}
}
