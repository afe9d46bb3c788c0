// Package jsonstore provides atomic read-modify-write access to a single
// JSON document shared between processes.
//
// Reads treat a missing, empty, or corrupt file as "start fresh" - a
// corrupted store self-heals to its zero value instead of wedging the
// system. Writes always go through a temp-file-then-rename sequence so a
// crash mid-write leaves the previous version intact. Mutations take the
// document's file lock for the whole read-mutate-write span, so no two
// lock-respecting participants interleave.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/flock"
)

// Store binds a JSON document type to its backing file and lock.
type Store[T any] struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	fsync       bool
}

// New creates a store for the document at path. The lock's logical path is
// the document path plus ".lock", so every process that names the same
// file contends on the same lock.
func New[T any](path string, lockTimeout time.Duration) *Store[T] {
	if lockTimeout <= 0 {
		lockTimeout = flock.DefaultTimeout
	}
	return &Store[T]{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: lockTimeout,
	}
}

// NewDurable is New plus an fsync before the rename on every write. Used
// for the delta manifest, where a torn write would orphan delta files.
func NewDurable[T any](path string, lockTimeout time.Duration) *Store[T] {
	s := New[T](path, lockTimeout)
	s.fsync = true
	return s
}

// Path returns the backing file path.
func (s *Store[T]) Path() string {
	return s.path
}

// Read loads the document without taking the lock. Missing, empty, or
// corrupt content yields the zero value; corruption is logged, never
// returned. Safe for read-only status checks that tolerate one poll
// interval of staleness.
func (s *Store[T]) Read() T {
	var v T
	data, err := os.ReadFile(s.path) // #nosec G304 - path is workspace-controlled
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Warnf("could not read %s, starting fresh: %v", s.path, err)
		}
		return v
	}
	if len(data) == 0 {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		debug.Warnf("could not parse %s, starting fresh: %v", s.path, err)
		var zero T
		return zero
	}
	return v
}

// Write persists the document via temp-file + atomic rename. Never
// produces a partially-written file: at worst the old version survives.
func (s *Store[T]) Write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(s.path), err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()    // Best effort: may already be closed before rename
		_ = os.Remove(tempPath) // Best effort: cleanup; may already be renamed
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tempPath, err)
	}
	if s.fsync {
		if err := tempFile.Sync(); err != nil {
			return fmt.Errorf("syncing %s: %w", tempPath, err)
		}
	}

	// Close before rename (required on Windows; double-close in defer is harmless)
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Update runs a lock-protected read-modify-write: acquire lock, read,
// apply fn in memory, write, release. fn returning an error abandons the
// write. Lock timeout surfaces as flock.ErrTimeout for the caller to
// decide between "retry next poll" and "exit".
func (s *Store[T]) Update(fn func(T) (T, error)) error {
	return flock.WithLock(s.lockPath, s.lockTimeout, func() error {
		v := s.Read()
		next, err := fn(v)
		if err != nil {
			return err
		}
		return s.Write(next)
	})
}

// ReadLocked loads the document under the lock, for callers that must not
// observe a write in progress by a non-atomic producer.
func (s *Store[T]) ReadLocked() (T, error) {
	var v T
	err := flock.WithLock(s.lockPath, s.lockTimeout, func() error {
		v = s.Read()
		return nil
	})
	return v, err
}
