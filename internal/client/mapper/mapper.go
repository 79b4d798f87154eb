// Package mapper translates local records to remote documents and back.
//
// The remote schema is additive-only: unknown fields are ignored on read,
// missing optional fields take defaults, and a document missing a required
// field is skipped rather than failing the caller.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// Remote field names.
const (
	fTitle       = "title"
	fContent     = "content"
	fImageKey    = "imageKey"
	fAudioKey    = "audioKey"
	fCreatedAt   = "createdAt"
	fDescription = "description"
	fTargetDate  = "targetDate"
	fCompleted   = "completed"
	fGoalID      = "goalId"
	fDay         = "day"
	fNote        = "note"
	fTimeOfDay   = "timeOfDay"
	fWeekdays    = "weekdays"
	fEnabled     = "enabled"

	// FieldMood is written by old clients and ignored on read.
	FieldMood = "mood"
	// FieldMediaUploadedAt is written by the media side channel only.
	FieldMediaUploadedAt = "mediaUploadedAt"
	FieldMediaKeys       = "mediaKeys"
)

// PreferencesDocID is the id of the single preferences document.
const PreferencesDocID = "app"

// ToRemote maps a record to its remote fields, always including
// updatedAt and _deleted=false.
func ToRemote(rec models.Record) (map[string]any, error) {
	var m map[string]any
	switch v := rec.(type) {
	case *models.Entry:
		m = map[string]any{
			fTitle:     v.Title,
			fContent:   v.Content,
			fImageKey:  v.ImageKey,
			fAudioKey:  v.AudioKey,
			fCreatedAt: timex.UnixMillis(v.CreatedAt),
		}
	case *models.Goal:
		m = map[string]any{
			fTitle:       v.Title,
			fDescription: v.Description,
			fTargetDate:  v.TargetDate,
			fCompleted:   v.Completed,
			fCreatedAt:   timex.UnixMillis(v.CreatedAt),
		}
	case *models.CheckIn:
		m = map[string]any{
			fGoalID:    v.GoalID,
			fDay:       v.Day,
			fNote:      v.Note,
			fCompleted: v.Completed,
			fCreatedAt: timex.UnixMillis(v.CreatedAt),
		}
	case *models.Reminder:
		m = map[string]any{
			fTitle:     v.Title,
			fTimeOfDay: v.TimeOfDay,
			fWeekdays:  int64(v.Weekdays),
			fEnabled:   v.Enabled,
			fCreatedAt: timex.UnixMillis(v.CreatedAt),
		}
	default:
		return nil, fmt.Errorf("%w: %T", common.ErrUnknownFamily, rec)
	}
	m[docstore.FieldUpdatedAt] = timex.UnixMillis(rec.LastUpdated())
	m[docstore.FieldDeleted] = false
	return m, nil
}

// TombstoneFields is the merge payload that marks a document deleted.
func TombstoneFields(at time.Time) map[string]any {
	return map[string]any{
		docstore.FieldDeleted:   true,
		docstore.FieldUpdatedAt: timex.UnixMillis(at),
	}
}

// FromRemote maps a remote document to a synced local record. ok is false
// when the document is a tombstone or lacks a required field.
func FromRemote(f models.Family, id string, doc map[string]any) (rec models.Record, ok bool) {
	if id == "" || doc == nil {
		return nil, false
	}
	if deleted, _ := doc[docstore.FieldDeleted].(bool); deleted {
		return nil, false
	}
	updated, ok := millis(doc, docstore.FieldUpdatedAt)
	if !ok {
		return nil, false
	}
	created, ok := millis(doc, fCreatedAt)
	if !ok {
		created = updated
	}

	switch f {
	case models.FamilyEntries:
		title, hasTitle := str(doc, fTitle)
		content, hasContent := str(doc, fContent)
		if !hasTitle && !hasContent {
			return nil, false
		}
		img, _ := str(doc, fImageKey)
		audio, _ := str(doc, fAudioKey)
		return &models.Entry{
			ID: id, Title: title, Content: content, ImageKey: img, AudioKey: audio,
			CreatedAt: created, UpdatedAt: updated, SyncStatus: models.StatusSynced,
		}, true

	case models.FamilyGoals:
		title, has := str(doc, fTitle)
		if !has {
			return nil, false
		}
		desc, _ := str(doc, fDescription)
		target, _ := str(doc, fTargetDate)
		return &models.Goal{
			ID: id, Title: title, Description: desc, TargetDate: target, Completed: boolean(doc, fCompleted, false),
			CreatedAt: created, UpdatedAt: updated, SyncStatus: models.StatusSynced,
		}, true

	case models.FamilyCheckIns:
		goalID, hasGoal := str(doc, fGoalID)
		day, hasDay := str(doc, fDay)
		if !hasGoal || !hasDay || goalID == "" || day == "" {
			return nil, false
		}
		note, _ := str(doc, fNote)
		return &models.CheckIn{
			ID: id, GoalID: goalID, Day: day, Note: note, Completed: boolean(doc, fCompleted, true),
			CreatedAt: created, UpdatedAt: updated, SyncStatus: models.StatusSynced,
		}, true

	case models.FamilyReminders:
		title, has := str(doc, fTitle)
		if !has {
			return nil, false
		}
		tod, ok := str(doc, fTimeOfDay)
		if !ok || tod == "" {
			tod = "09:00"
		}
		days := models.EveryDay
		if n, ok := docstore.Int64(doc[fWeekdays]); ok {
			days = models.Weekdays(n) & models.EveryDay
		}
		return &models.Reminder{
			ID: id, Title: title, TimeOfDay: tod, Weekdays: days, Enabled: boolean(doc, fEnabled, true),
			CreatedAt: created, UpdatedAt: updated, SyncStatus: models.StatusSynced,
		}, true
	}
	return nil, false
}

// PreferencesToRemote builds the preferences document from pending local
// values. Keys outside the allowlist are dropped.
func PreferencesToRemote(prefs []*models.Preference) map[string]any {
	m := make(map[string]any, len(prefs)+1)
	var latest time.Time
	for _, p := range prefs {
		if !models.IsSyncedPreference(p.Key) {
			continue
		}
		m[p.Key] = p.Value
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	if len(m) == 0 {
		return nil
	}
	m[docstore.FieldUpdatedAt] = timex.UnixMillis(latest)
	return m
}

// PreferencesFromRemote extracts allowlisted values from the preferences
// document. Non-string values are rendered with fmt.
func PreferencesFromRemote(doc map[string]any) []*models.Preference {
	at, _ := millis(doc, docstore.FieldUpdatedAt)
	var out []*models.Preference
	for _, key := range models.AllowedPreferenceKeys {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			s = fmt.Sprint(v)
		}
		out = append(out, &models.Preference{Key: key, Value: s, UpdatedAt: at, SyncStatus: models.StatusSynced})
	}
	return out
}

// MediaKeysValue renders a set of media keys for the mediaKeys field.
func MediaKeysValue(keys []string) string {
	return strings.Join(keys, ",")
}

func str(doc map[string]any, key string) (string, bool) {
	s, ok := doc[key].(string)
	return s, ok
}

func boolean(doc map[string]any, key string, def bool) bool {
	if b, ok := doc[key].(bool); ok {
		return b
	}
	return def
}

func millis(doc map[string]any, key string) (time.Time, bool) {
	n, ok := docstore.Int64(doc[key])
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	return timex.FromUnixMillis(n), true
}
