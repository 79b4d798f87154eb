package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/client"
	"github.com/dmitrijs2005/gophjournal/internal/client/cloudsync"
	"github.com/dmitrijs2005/gophjournal/internal/client/config"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/client/services"
	"github.com/dmitrijs2005/gophjournal/internal/client/session"
	"github.com/dmitrijs2005/gophjournal/internal/filex"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/scheduler"
)

// Journal is the local journal as the REPL sees it.
type Journal interface {
	AddEntry(ctx context.Context, in services.NewEntry) (*models.Entry, error)
	EditEntry(ctx context.Context, id, title, content string) (*models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	ListEntries(ctx context.Context, limit int) ([]*models.Entry, error)
	SearchEntries(ctx context.Context, query string, limit int) ([]*models.Entry, error)
	MediaPath(key string) string

	AddGoal(ctx context.Context, title, description, targetDate string) (*models.Goal, error)
	SetGoalCompleted(ctx context.Context, id string, completed bool) (*models.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
	ListGoals(ctx context.Context) ([]*models.Goal, error)
	CheckIn(ctx context.Context, goalID, day, note string) (*models.CheckIn, error)
	ListCheckIns(ctx context.Context, goalID string) ([]*models.CheckIn, error)

	AddReminder(ctx context.Context, title, timeOfDay string, days models.Weekdays) (*models.Reminder, error)
	SetReminderEnabled(ctx context.Context, id string, enabled bool) (*models.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	ListReminders(ctx context.Context) ([]*models.Reminder, error)

	SetPreference(ctx context.Context, key, value string) error
	ListPreferences(ctx context.Context) ([]*models.Preference, error)
}

// Syncer runs one batch push on demand.
type Syncer interface {
	PushPendingChanges(ctx context.Context) cloudsync.BatchResult
}

// SessionInfo is the read side of the local session plus last-push
// bookkeeping.
type SessionInfo interface {
	UserID(ctx context.Context) (string, bool)
	Username(ctx context.Context) string
	LastPush(ctx context.Context) time.Time
	SetLastPush(ctx context.Context, at time.Time) error
}

type App struct {
	config   *config.Config
	auth     services.AuthService
	journal  Journal
	syncer   Syncer
	restorer services.Restorer
	session  SessionInfo
	state    *cloudsync.State
	reader   *bufio.Reader
	out      io.Writer
	logger   logging.Logger

	// background work started by Run
	sched   *scheduler.Scheduler
	pushJob scheduler.Job
	bgCtx   context.Context
	stop    context.CancelFunc
	bg      errgroup.Group
	waitBg  func()
	closers []io.Closer
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewApp opens the local journal and wires the sync engine around it. The
// server is only contacted lazily, so a missing server never blocks start.
func NewApp(c *config.Config) (*App, error) {
	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, err
	}

	logger, logCloser := logging.NewFileLogger(c.LogPath(), parseLevel(c.LogLevel))
	bgCtx, stop := context.WithCancel(context.Background())

	mgr, err := repomanager.Open(bgCtx, c.DatabasePath())
	if err != nil {
		stop()
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		stop()
		_ = mgr.Close()
		_ = logCloser.Close()
		return nil, err
	}

	sess := session.New(mgr.Metadata(), logger)
	api.OnTokensRefreshed(sess.SaveTokens)

	sink := analytics.NewLogSink(logger)
	state := cloudsync.NewState()
	dispatcher := cloudsync.NewDispatcher(bgCtx, c.DispatcherLimit, logger)
	media := cloudsync.NewMediaSync(api, api, c.MediaPath(), logger)
	pusher := cloudsync.NewPusher(mgr, api, media, dispatcher, logger)
	coord := cloudsync.NewCoordinator(mgr, api, pusher, sess, state, sink, logger)
	restorer := cloudsync.NewRestorer(mgr, api, coord, sess, media, dispatcher, state, sink, logger)

	interval := c.PushInterval
	if interval < cloudsync.MinPushInterval {
		interval = cloudsync.MinPushInterval
	}

	a := &App{
		config:   c,
		journal:  services.NewJournalService(mgr, pusher, c.MediaPath()),
		syncer:   coord,
		restorer: restorer,
		session:  sess,
		state:    state,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		logger:   logger.With("module", "app"),
		bgCtx:    bgCtx,
		stop:     stop,
		waitBg:   dispatcher.Wait,
		closers:  []io.Closer{api, mgr, logCloser},
	}
	a.sched = scheduler.New(logger, scheduler.WithOnReport(a.onPushReport))
	a.pushJob = signedInOnly(sess, cloudsync.PushJob(coord, interval, scheduler.DefaultRetryPolicy()))
	a.auth = services.NewAuthService(api, sess, restorer, a.pushNow, sink, logger)

	return a, nil
}

// signedInOnly turns a run with no session into a no-op so a guest
// journal does not burn retries.
func signedInOnly(id cloudsync.Identity, job scheduler.Job) scheduler.Job {
	run := job.Run
	job.Run = func(ctx context.Context) error {
		if _, ok := id.UserID(ctx); !ok {
			return nil
		}
		return run(ctx)
	}
	return job
}

func (a *App) onPushReport(r scheduler.Report) {
	if !r.OK() {
		return
	}
	if _, ok := a.session.UserID(a.bgCtx); !ok {
		return
	}
	if err := a.session.SetLastPush(a.bgCtx, r.Finished); err != nil {
		a.logger.Warn(a.bgCtx, "failed to record last push", "error", err)
	}
}

// goBackground runs fn on the app's tracked group; shutdown waits for it
// before the database closes.
func (a *App) goBackground(fn func(ctx context.Context)) {
	a.bg.Go(func() error {
		fn(a.bgCtx)
		return nil
	})
}

// pushNow fires the one-shot push in the background.
func (a *App) pushNow() {
	a.goBackground(func(ctx context.Context) {
		a.sched.RunOnce(ctx, a.pushJob)
	})
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	_, ok := a.session.UserID(ctx)
	return ok
}

func (a *App) getStatus() string {
	ctx := context.Background()
	name := "guest"
	if a.isLoggedIn(ctx) {
		name = a.session.Username(ctx)
	}
	st := a.state.Get()
	if st.Phase == cloudsync.PhaseIdle {
		return fmt.Sprintf("(%s)", name)
	}
	return fmt.Sprintf("(%s %s)", name, st.Phase)
}

// Run resumes a stored session, starts the periodic push and blocks in the
// REPL until the user exits. Background work is cancelled and drained
// before the database closes.
func (a *App) Run(ctx context.Context) {
	defer a.shutdown()

	if a.auth.Resume(ctx) {
		fmt.Fprintf(a.out, "Welcome back, %s\n", a.session.Username(ctx))
		a.pushNow()
	}

	a.goBackground(func(ctx context.Context) {
		if err := a.sched.Periodic(ctx, a.pushJob); err != nil {
			a.logger.Error(ctx, "periodic push not started", "error", err)
		}
	})

	fmt.Fprintln(a.out, "GophJournal (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) shutdown() {
	a.stop()
	_ = a.bg.Wait()
	if a.waitBg != nil {
		a.waitBg()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}
