package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/gophjournal/internal/client/migrations"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/checkins"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/entries"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/goals"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/reminders"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteManager owns the journal database handle.
type SQLiteManager struct {
	db *sql.DB
}

var _ SyncStore = (*SQLiteManager)(nil)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// Open opens (creating if needed) the SQLite file at path and migrates it.
func Open(ctx context.Context, path string) (*SQLiteManager, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *SQLiteManager {
	return &SQLiteManager{db: db}
}

func (m *SQLiteManager) DB() *sql.DB  { return m.db }
func (m *SQLiteManager) Close() error { return m.db.Close() }

func (m *SQLiteManager) Entries() entries.Repository         { return entries.NewSQLiteRepository(m.db) }
func (m *SQLiteManager) Goals() goals.Repository             { return goals.NewSQLiteRepository(m.db) }
func (m *SQLiteManager) CheckIns() checkins.Repository       { return checkins.NewSQLiteRepository(m.db) }
func (m *SQLiteManager) Reminders() reminders.Repository     { return reminders.NewSQLiteRepository(m.db) }
func (m *SQLiteManager) PreferenceRepo() preferences.Repository {
	return preferences.NewSQLiteRepository(m.db)
}
func (m *SQLiteManager) Metadata() metadata.Repository { return metadata.NewSQLiteRepository(m.db) }

func (m *SQLiteManager) Family(f models.Family) (SyncRepository, error) {
	return familyRepo(m.db, f)
}

func familyRepo(db dbx.DBTX, f models.Family) (SyncRepository, error) {
	switch f {
	case models.FamilyEntries:
		return entries.NewSQLiteRepository(db), nil
	case models.FamilyGoals:
		return goals.NewSQLiteRepository(db), nil
	case models.FamilyCheckIns:
		return checkins.NewSQLiteRepository(db), nil
	case models.FamilyReminders:
		return reminders.NewSQLiteRepository(db), nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownFamily, f)
}

// DeleteGoal marks a goal and its visible check-ins pending delete in one
// transaction and returns the ids of the check-ins it took along.
func (m *SQLiteManager) DeleteGoal(ctx context.Context, id string, at time.Time) ([]string, error) {
	var ids []string
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ids = nil
		if err := goals.NewSQLiteRepository(tx).MarkDeleted(ctx, id, at); err != nil {
			return err
		}
		cr := checkins.NewSQLiteRepository(tx)
		list, err := cr.ListByGoal(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range list {
			if err := cr.MarkDeleted(ctx, c.ID, at); err != nil {
				return fmt.Errorf("delete checkin %s: %w", c.ID, err)
			}
			ids = append(ids, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *SQLiteManager) Preferences() PreferenceSync {
	return preferences.NewSQLiteRepository(m.db)
}

func (m *SQLiteManager) RestoreFamily(ctx context.Context, f models.Family, recs []models.Record) (int, error) {
	if !f.Valid() {
		return 0, fmt.Errorf("%w: %q", common.ErrUnknownFamily, f)
	}

	inserted := 0
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		inserted = 0
		for _, rec := range recs {
			ok, err := insertRestored(ctx, tx, rec)
			if err != nil {
				return fmt.Errorf("restore %s/%s: %w", f, rec.RecordID(), err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertRestored(ctx context.Context, tx dbx.DBTX, rec models.Record) (bool, error) {
	switch v := rec.(type) {
	case *models.Entry:
		return entries.NewSQLiteRepository(tx).InsertRestored(ctx, v)
	case *models.Goal:
		return goals.NewSQLiteRepository(tx).InsertRestored(ctx, v)
	case *models.CheckIn:
		return checkins.NewSQLiteRepository(tx).InsertRestored(ctx, v)
	case *models.Reminder:
		return reminders.NewSQLiteRepository(tx).InsertRestored(ctx, v)
	}
	return false, fmt.Errorf("%w: %T", common.ErrUnknownFamily, rec)
}

func (m *SQLiteManager) RestorePreferences(ctx context.Context, prefs []*models.Preference) (int, error) {
	inserted := 0
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		inserted = 0
		repo := preferences.NewSQLiteRepository(tx)
		for _, p := range prefs {
			ok, err := repo.InsertRestored(ctx, p)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (m *SQLiteManager) RebuildSearchIndex(ctx context.Context) error {
	return entries.NewSQLiteRepository(m.db).RebuildSearchIndex(ctx)
}
