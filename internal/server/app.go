// Package server wires storage, services, the gRPC endpoint and the
// background retention sweep into one runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/scheduler"
	"github.com/dmitrijs2005/gophjournal/internal/server/config"
	gs "github.com/dmitrijs2005/gophjournal/internal/server/grpc"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophjournal/internal/server/retention"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server runner
	sched  *scheduler.Scheduler
	sweep  scheduler.Job
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(parseLevel(c.LogLevel))

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, m, c)
	ds := services.NewDocumentService(db, m)
	ms, err := services.NewMediaService(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("media init error: %w", err)
	}

	sweeper := retention.New(m.Users(db), m.Documents(db), logger,
		retention.WithWindow(c.RetentionWindow),
		retention.WithBatchSize(c.SweepBatchSize),
		retention.WithMediaCleaner(ms),
		retention.WithTokenPurger(us),
	)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		server: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, ds, ms, c.SecretKey),
		sched:  scheduler.New(logger),
		sweep:  retention.Job(sweeper, c.SweepInterval, scheduler.DefaultRetryPolicy()),
	}, nil
}

// Run serves until ctx is cancelled or the gRPC server fails. The database
// is closed on the way out.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "address", app.config.EndpointAddrGRPC)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx)
	})
	g.Go(func() error {
		return app.sched.Periodic(ctx, app.sweep)
	})

	err := g.Wait()

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "db close error", "error", cerr)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
