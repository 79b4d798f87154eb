package models

import "time"

type Entry struct {
	ID         string
	Title      string
	Content    string
	ImageKey   string
	AudioKey   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}

func (e *Entry) Family() Family         { return FamilyEntries }
func (e *Entry) RecordID() string       { return e.ID }
func (e *Entry) Status() SyncStatus     { return e.SyncStatus }
func (e *Entry) LastUpdated() time.Time { return e.UpdatedAt }

// MediaKeys returns the non-empty attachment keys.
func (e *Entry) MediaKeys() []string {
	var keys []string
	for _, k := range []string{e.ImageKey, e.AudioKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type Goal struct {
	ID          string
	Title       string
	Description string
	// TargetDate is YYYY-MM-DD or empty.
	TargetDate string
	Completed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}

func (g *Goal) Family() Family         { return FamilyGoals }
func (g *Goal) RecordID() string       { return g.ID }
func (g *Goal) Status() SyncStatus     { return g.SyncStatus }
func (g *Goal) LastUpdated() time.Time { return g.UpdatedAt }

// CheckIn marks progress on a goal for one calendar day. (GoalID, Day) is
// unique locally.
type CheckIn struct {
	ID         string
	GoalID     string
	Day        string
	Note       string
	Completed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}

func (c *CheckIn) Family() Family         { return FamilyCheckIns }
func (c *CheckIn) RecordID() string       { return c.ID }
func (c *CheckIn) Status() SyncStatus     { return c.SyncStatus }
func (c *CheckIn) LastUpdated() time.Time { return c.UpdatedAt }

type Reminder struct {
	ID        string
	Title     string
	TimeOfDay string // HH:MM
	Weekdays  Weekdays
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time

	SyncStatus SyncStatus
}

func (r *Reminder) Family() Family         { return FamilyReminders }
func (r *Reminder) RecordID() string       { return r.ID }
func (r *Reminder) Status() SyncStatus     { return r.SyncStatus }
func (r *Reminder) LastUpdated() time.Time { return r.UpdatedAt }

// Weekdays is a bitmask with bit 0 = Sunday.
type Weekdays uint8

const EveryDay Weekdays = 0x7f

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// Preference is a local key/value setting. Only AllowedPreferenceKeys leave
// the device.
type Preference struct {
	Key        string
	Value      string
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}

var AllowedPreferenceKeys = []string{
	"theme",
	"accent_color",
	"font_scale",
	"dark_mode",
	"book_layout",
	"week_starts_on",
}

func IsSyncedPreference(key string) bool {
	for _, k := range AllowedPreferenceKeys {
		if k == key {
			return true
		}
	}
	return false
}
