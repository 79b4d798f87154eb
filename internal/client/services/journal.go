package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophjournal/internal/client/cloudsync"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/checkins"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/entries"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/goals"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/reminders"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/filex"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// Repositories is what the journal service needs from the local database.
type Repositories interface {
	Entries() entries.Repository
	Goals() goals.Repository
	CheckIns() checkins.Repository
	Reminders() reminders.Repository
	PreferenceRepo() preferences.Repository

	// DeleteGoal removes a goal together with its check-ins and returns
	// the check-in ids.
	DeleteGoal(ctx context.Context, id string, at time.Time) ([]string, error)
}

// AsyncPusher sends one record to the cloud without blocking the caller.
type AsyncPusher interface {
	PushAsync(rec models.Record)
}

// NewEntry describes an entry to create. ImagePath and AudioPath are
// optional local files copied into the media dir.
type NewEntry struct {
	Title     string
	Content   string
	ImagePath string
	AudioPath string
}

// JournalService is the local journal. Every mutation is written with its
// sync status in one statement and then handed to the pusher; nothing here
// waits for the network.
type JournalService struct {
	repos    Repositories
	pusher   AsyncPusher
	mediaDir string
	now      func() time.Time
	newID    func() string
}

func NewJournalService(repos Repositories, pusher AsyncPusher, mediaDir string) *JournalService {
	return &JournalService{
		repos:    repos,
		pusher:   pusher,
		mediaDir: mediaDir,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *JournalService) stamp() time.Time {
	return timex.Truncate(s.now())
}

func (s *JournalService) push(rec models.Record) {
	if s.pusher != nil {
		s.pusher.PushAsync(rec)
	}
}

func (s *JournalService) attach(id, kind, src string) (string, error) {
	if src == "" {
		return "", nil
	}
	key := cloudsync.EntryMediaKey(id, kind, strings.ToLower(filepath.Ext(src)))
	if err := filex.CopyFile(src, s.MediaPath(key)); err != nil {
		return "", fmt.Errorf("copy %s attachment: %w", kind, err)
	}
	return key, nil
}

func (s *JournalService) AddEntry(ctx context.Context, in NewEntry) (*models.Entry, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: entry needs a title or content", common.ErrInvalidArgument)
	}

	at := s.stamp()
	e := &models.Entry{ID: s.newID(), Title: in.Title, Content: in.Content, CreatedAt: at, UpdatedAt: at}

	var err error
	if e.ImageKey, err = s.attach(e.ID, "image", in.ImagePath); err != nil {
		return nil, err
	}
	if e.AudioKey, err = s.attach(e.ID, "audio", in.AudioPath); err != nil {
		return nil, err
	}

	if err := s.repos.Entries().Create(ctx, e); err != nil {
		return nil, err
	}
	s.push(e)
	return e, nil
}

func (s *JournalService) EditEntry(ctx context.Context, id, title, content string) (*models.Entry, error) {
	e, err := s.repos.Entries().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Title = title
	e.Content = content
	e.UpdatedAt = s.stamp()
	if err := s.repos.Entries().Update(ctx, e); err != nil {
		return nil, err
	}
	s.push(e)
	return e, nil
}

func (s *JournalService) DeleteEntry(ctx context.Context, id string) error {
	at := s.stamp()
	if err := s.repos.Entries().MarkDeleted(ctx, id, at); err != nil {
		return err
	}
	s.push(models.Tombstone{RecordFamily: models.FamilyEntries, ID: id, UpdatedAt: at})
	return nil
}

func (s *JournalService) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	return s.repos.Entries().GetByID(ctx, id)
}

func (s *JournalService) ListEntries(ctx context.Context, limit int) ([]*models.Entry, error) {
	return s.repos.Entries().List(ctx, limit)
}

func (s *JournalService) SearchEntries(ctx context.Context, query string, limit int) ([]*models.Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search", common.ErrInvalidArgument)
	}
	return s.repos.Entries().Search(ctx, query, limit)
}

// MediaPath maps an attachment key to its local file.
func (s *JournalService) MediaPath(key string) string {
	return filepath.Join(s.mediaDir, filepath.FromSlash(key))
}

func validDay(day string) error {
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return fmt.Errorf("%w: day must be YYYY-MM-DD", common.ErrInvalidArgument)
	}
	return nil
}

func (s *JournalService) AddGoal(ctx context.Context, title, description, targetDate string) (*models.Goal, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: goal needs a title", common.ErrInvalidArgument)
	}
	if targetDate != "" {
		if err := validDay(targetDate); err != nil {
			return nil, err
		}
	}
	at := s.stamp()
	g := &models.Goal{ID: s.newID(), Title: title, Description: description, TargetDate: targetDate, CreatedAt: at, UpdatedAt: at}
	if err := s.repos.Goals().Create(ctx, g); err != nil {
		return nil, err
	}
	s.push(g)
	return g, nil
}

func (s *JournalService) SetGoalCompleted(ctx context.Context, id string, completed bool) (*models.Goal, error) {
	g, err := s.repos.Goals().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Completed = completed
	g.UpdatedAt = s.stamp()
	if err := s.repos.Goals().Update(ctx, g); err != nil {
		return nil, err
	}
	s.push(g)
	return g, nil
}

// DeleteGoal deletes the goal and its check-ins, so none are left behind
// without a goal.
func (s *JournalService) DeleteGoal(ctx context.Context, id string) error {
	at := s.stamp()
	checkIns, err := s.repos.DeleteGoal(ctx, id, at)
	if err != nil {
		return err
	}
	s.push(models.Tombstone{RecordFamily: models.FamilyGoals, ID: id, UpdatedAt: at})
	for _, cid := range checkIns {
		s.push(models.Tombstone{RecordFamily: models.FamilyCheckIns, ID: cid, UpdatedAt: at})
	}
	return nil
}

func (s *JournalService) ListGoals(ctx context.Context) ([]*models.Goal, error) {
	return s.repos.Goals().List(ctx)
}

// CheckIn records progress on a goal for day, updating the note when the
// day already has a check-in.
func (s *JournalService) CheckIn(ctx context.Context, goalID, day, note string) (*models.CheckIn, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	if _, err := s.repos.Goals().GetByID(ctx, goalID); err != nil {
		return nil, err
	}

	at := s.stamp()
	repo := s.repos.CheckIns()
	c, err := repo.GetByGoalDay(ctx, goalID, day)
	switch {
	case err == nil:
		c.Note = note
		c.Completed = true
		c.UpdatedAt = at
		err = repo.Update(ctx, c)
	case isNotFound(err):
		c = &models.CheckIn{ID: s.newID(), GoalID: goalID, Day: day, Note: note, Completed: true, CreatedAt: at, UpdatedAt: at}
		err = repo.Create(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	s.push(c)
	return c, nil
}

func (s *JournalService) ListCheckIns(ctx context.Context, goalID string) ([]*models.CheckIn, error) {
	return s.repos.CheckIns().ListByGoal(ctx, goalID)
}

func (s *JournalService) AddReminder(ctx context.Context, title, timeOfDay string, days models.Weekdays) (*models.Reminder, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: reminder needs a title", common.ErrInvalidArgument)
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return nil, fmt.Errorf("%w: time must be HH:MM", common.ErrInvalidArgument)
	}
	if days == 0 {
		days = models.EveryDay
	}
	at := s.stamp()
	r := &models.Reminder{ID: s.newID(), Title: title, TimeOfDay: timeOfDay, Weekdays: days, Enabled: true, CreatedAt: at, UpdatedAt: at}
	if err := s.repos.Reminders().Create(ctx, r); err != nil {
		return nil, err
	}
	s.push(r)
	return r, nil
}

func (s *JournalService) SetReminderEnabled(ctx context.Context, id string, enabled bool) (*models.Reminder, error) {
	r, err := s.repos.Reminders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Enabled = enabled
	r.UpdatedAt = s.stamp()
	if err := s.repos.Reminders().Update(ctx, r); err != nil {
		return nil, err
	}
	s.push(r)
	return r, nil
}

func (s *JournalService) DeleteReminder(ctx context.Context, id string) error {
	at := s.stamp()
	if err := s.repos.Reminders().MarkDeleted(ctx, id, at); err != nil {
		return err
	}
	s.push(models.Tombstone{RecordFamily: models.FamilyReminders, ID: id, UpdatedAt: at})
	return nil
}

func (s *JournalService) ListReminders(ctx context.Context) ([]*models.Reminder, error) {
	return s.repos.Reminders().List(ctx)
}

// SetPreference stores a setting. Allowlisted keys go up with the next
// batch push; the rest never leave the device.
func (s *JournalService) SetPreference(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty preference key", common.ErrInvalidArgument)
	}
	return s.repos.PreferenceRepo().Set(ctx, key, value, s.stamp())
}

func (s *JournalService) ListPreferences(ctx context.Context) ([]*models.Preference, error) {
	return s.repos.PreferenceRepo().List(ctx)
}
