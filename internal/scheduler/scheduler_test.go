package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRunOnce_SucceedsFirstTry(t *testing.T) {
	s := New(logging.NewNopLogger())
	var calls int32

	rep := s.RunOnce(context.Background(), Job{
		Name:  "push",
		Retry: fastPolicy(3),
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	require.NoError(t, rep.Err)
	assert.True(t, rep.OK())
	assert.Equal(t, 1, rep.Attempts)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, "push", rep.Job)
	assert.False(t, rep.Finished.Before(rep.Started))
}

func TestRunOnce_RetriesThenSucceeds(t *testing.T) {
	s := New(logging.NewNopLogger())
	var calls int

	rep := s.RunOnce(context.Background(), Job{
		Name:  "push",
		Retry: fastPolicy(3),
		Run: func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("offline")
			}
			return nil
		},
	})

	require.NoError(t, rep.Err)
	assert.Equal(t, 3, rep.Attempts)
}

func TestRunOnce_ExhaustsAttemptsAndReports(t *testing.T) {
	boom := errors.New("offline")
	var got []Report
	s := New(logging.NewNopLogger(), WithOnReport(func(r Report) { got = append(got, r) }))

	rep := s.RunOnce(context.Background(), Job{
		Name:  "push",
		Retry: fastPolicy(4),
		Run:   func(ctx context.Context) error { return boom },
	})

	require.ErrorIs(t, rep.Err, boom)
	assert.Equal(t, 4, rep.Attempts)
	require.Len(t, got, 1)
	assert.Equal(t, rep.Attempts, got[0].Attempts)
}

func TestRunOnce_ZeroPolicyMeansOneAttempt(t *testing.T) {
	s := New(logging.NewNopLogger())
	rep := s.RunOnce(context.Background(), Job{
		Name: "sweep",
		Run:  func(ctx context.Context) error { return errors.New("x") },
	})
	require.Error(t, rep.Err)
	assert.Equal(t, 1, rep.Attempts)
}

func TestRunOnce_StopsOnCancelledContext(t *testing.T) {
	s := New(logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	rep := s.RunOnce(ctx, Job{
		Name:  "push",
		Retry: RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Hour},
		Run: func(ctx context.Context) error {
			cancel()
			return errors.New("offline")
		},
	})

	require.Error(t, rep.Err)
	assert.Equal(t, 1, rep.Attempts)
}

func TestPeriodic_RunsUntilCancelled(t *testing.T) {
	var mu sync.Mutex
	var reports []Report
	s := New(logging.NewNopLogger(), WithOnReport(func(r Report) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Periodic(ctx, Job{
			Name:     "push",
			Interval: 5 * time.Millisecond,
			Retry:    fastPolicy(1),
			Run:      func(ctx context.Context) error { return nil },
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Periodic did not stop after cancel")
	}
}

func TestPeriodic_RejectsBadInterval(t *testing.T) {
	s := New(logging.NewNopLogger())
	require.Error(t, s.Periodic(context.Background(), Job{Name: "x"}))
}
