// Package schedule manages the wall-clock job schedule and the watcher
// that moves due entries into the job queue.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/jsonstore"
)

// isoLayout is second-precision local time, matching the lexicographic
// ordering assumption the rest of the system makes.
const isoLayout = "2006-01-02T15:04:05"

// Entry is one scheduled job in schedules.json.
type Entry struct {
	ID                   string `json:"id"`
	JobName              string `json:"job_name"`
	ScheduledDatetimeISO string `json:"scheduled_datetime_iso"`
}

// ScheduledAt parses the entry's timestamp in local time.
func (e Entry) ScheduledAt() (time.Time, error) {
	t, err := time.ParseInLocation(isoLayout, e.ScheduledDatetimeISO, time.Local)
	if err == nil {
		return t, nil
	}
	// Entries written by hand sometimes carry a zone.
	t, rfcErr := time.Parse(time.RFC3339, e.ScheduledDatetimeISO)
	if rfcErr == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parsing schedule time %q: %w", e.ScheduledDatetimeISO, err)
}

// Store is the schedule list backed by schedules.json under its file lock.
type Store struct {
	store *jsonstore.Store[[]Entry]
}

func NewStore(path string, lockTimeout time.Duration) *Store {
	return &Store{store: jsonstore.New[[]Entry](path, lockTimeout)}
}

// Add appends a new schedule entry, truncated to second precision.
func (s *Store) Add(jobName string, at time.Time) (Entry, error) {
	entry := Entry{
		ID:                   uuid.NewString(),
		JobName:              jobName,
		ScheduledDatetimeISO: at.Truncate(time.Second).Format(isoLayout),
	}
	err := s.store.Update(func(entries []Entry) ([]Entry, error) {
		return append(entries, entry), nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("adding schedule for %q: %w", jobName, err)
	}
	debug.Logf("added schedule for %q at %s", jobName, entry.ScheduledDatetimeISO)
	return entry, nil
}

// All returns a snapshot of the schedule without taking the lock.
func (s *Store) All() []Entry {
	return s.store.Read()
}

// Delete removes a schedule by its unique ID. Returns false when no entry
// carried that ID.
func (s *Store) Delete(id string) (bool, error) {
	deleted := false
	err := s.store.Update(func(entries []Entry) ([]Entry, error) {
		kept := entries[:0]
		for _, e := range entries {
			if e.ID == id {
				deleted = true
				continue
			}
			kept = append(kept, e)
		}
		return kept, nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting schedule %s: %w", id, err)
	}
	if !deleted {
		debug.Warnf("could not find schedule with ID %s to delete", id)
	}
	return deleted, nil
}

// DueAndRemove partitions all entries by scheduled time <= now under one
// lock acquisition, writes back only the not-due remainder, and returns
// the due entries for the caller to act on. This is the one operation
// that must be linearizable across scheduler instances: an entry is
// returned exactly once, never duplicated, never lost.
//
// Entries whose timestamp no longer parses are kept in the store with a
// warning rather than silently dropped.
func (s *Store) DueAndRemove(now time.Time) ([]Entry, error) {
	var due []Entry
	err := s.store.Update(func(entries []Entry) ([]Entry, error) {
		if len(entries) == 0 {
			return entries, nil
		}
		var keep []Entry
		for _, e := range entries {
			at, err := e.ScheduledAt()
			if err != nil {
				debug.Warnf("keeping unparseable schedule entry %s: %v", e.ID, err)
				keep = append(keep, e)
				continue
			}
			if !at.After(now) {
				due = append(due, e)
			} else {
				keep = append(keep, e)
			}
		}
		return keep, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting due schedules: %w", err)
	}
	return due, nil
}
