// Package models defines the client's local journal records.
package models

import "time"

// SyncStatus is persisted as a small integer next to every syncable row.
type SyncStatus int

const (
	StatusSynced SyncStatus = iota
	StatusPendingUpload
	StatusPendingDelete
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusPendingUpload:
		return "pending_upload"
	case StatusPendingDelete:
		return "pending_delete"
	}
	return "unknown"
}

func (s SyncStatus) Pending() bool {
	return s == StatusPendingUpload || s == StatusPendingDelete
}

// Family names a group of syncable records. The value doubles as the local
// table name and the remote collection name.
type Family string

const (
	FamilyEntries   Family = "entries"
	FamilyGoals     Family = "goals"
	FamilyCheckIns  Family = "checkins"
	FamilyReminders Family = "reminders"
)

// Families lists the syncable families in restore order. Goals precede
// check-ins so a restored check-in always has its goal.
var Families = []Family{FamilyEntries, FamilyGoals, FamilyCheckIns, FamilyReminders}

func (f Family) Valid() bool {
	switch f {
	case FamilyEntries, FamilyGoals, FamilyCheckIns, FamilyReminders:
		return true
	}
	return false
}

// Record is implemented by every syncable row type.
type Record interface {
	Family() Family
	RecordID() string
	Status() SyncStatus
	LastUpdated() time.Time
}

// Tombstone is a pending deletion: only identity and timing survive.
type Tombstone struct {
	RecordFamily Family
	ID           string
	UpdatedAt    time.Time
}

func (t Tombstone) Family() Family         { return t.RecordFamily }
func (t Tombstone) RecordID() string       { return t.ID }
func (t Tombstone) Status() SyncStatus     { return StatusPendingDelete }
func (t Tombstone) LastUpdated() time.Time { return t.UpdatedAt }
