// Package flock implements the cross-process mutual exclusion primitive
// that every shared file in the workspace is guarded by.
//
// A lock is an exclusively-created file in the OS temp directory, named by
// the MD5 hash of the logical path it protects, containing the owner's PID
// as decimal text. Staleness is detected by PID liveness: a lock whose
// recorded owner is no longer running is broken and reclaimed immediately.
// PID liveness is a proxy for "the critical section was abandoned" - a hung
// but alive process blocks all other lockers until its own timeout fires.
package flock

import (
	"crypto/md5" // #nosec G501 - lock file naming, not integrity
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when a lock could not be acquired within the
// caller's timeout. Callers distinguish it with errors.Is: watchers skip
// the poll cycle, single-instance startup guards exit the process.
var ErrTimeout = errors.New("lock acquisition timed out")

// PollInterval is the sleep between acquisition attempts while another
// live process holds the lock.
const PollInterval = 100 * time.Millisecond

// DefaultTimeout matches the reference deployment's lock wait.
const DefaultTimeout = 5 * time.Second

// Lock is a held file lock. Release it with Release; prefer WithLock for
// scoped acquisition.
type Lock struct {
	path     string
	ownerPID int
}

// Path returns the physical lock file path (for diagnostics and tests).
func (l *Lock) Path() string {
	return l.path
}

// LockFilePath maps a logical path to its fixed lock file location in the
// shared temp directory. Two logical paths that MD5-collide would contend
// on the same lock file; accepted as a low-probability risk.
func LockFilePath(logicalPath string) string {
	sum := md5.Sum([]byte(logicalPath)) // #nosec G401
	return filepath.Join(os.TempDir(), hex.EncodeToString(sum[:])+".lock")
}

// Acquire obtains the lock for logicalPath, waiting up to timeout.
// A timeout of zero is try-once mode: it fails with ErrTimeout on the
// first contended attempt, which single-instance watcher guards rely on.
func Acquire(logicalPath string, timeout time.Duration) (*Lock, error) {
	path := LockFilePath(logicalPath)
	pid := os.Getpid()
	start := time.Now()

	// Constant cadence between attempts; backoff instances are stateful,
	// so each acquisition gets a fresh one.
	bo := backoff.NewConstantBackOff(PollInterval)
	bo.Reset()

	for {
		acquired, err := tryCreate(path, pid)
		if err != nil {
			return nil, err
		}
		if acquired {
			return &Lock{path: path, ownerPID: pid}, nil
		}

		if time.Since(start) > timeout {
			return nil, fmt.Errorf("%w: %s (logical path %s) after %s", ErrTimeout, path, logicalPath, timeout)
		}

		owner, ok := readOwnerPID(path)
		if !ok || !isProcessRunning(owner) {
			// Stale or unreadable lock: break it and retry immediately.
			_ = os.Remove(path)
			continue
		}

		time.Sleep(bo.NextBackOff())
	}
}

// Release removes the lock file, but only if this process is still the
// recorded owner. Another process may have broken the lock as stale and
// re-acquired it; deleting its lock would defeat mutual exclusion.
func (l *Lock) Release() error {
	owner, ok := readOwnerPID(l.path)
	if !ok || owner != l.ownerPID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// WithLock runs fn while holding the lock for logicalPath. The lock is
// released on every exit path, including panics.
func WithLock(logicalPath string, timeout time.Duration, fn func() error) error {
	lock, err := Acquire(logicalPath, timeout)
	if err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck // release is best-effort on exit
	return fn()
}

// tryCreate attempts the exclusive create. Returns (false, nil) if the
// lock file already exists.
func tryCreate(path string, pid int) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644) // #nosec G304
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating lock file: %w", err)
	}
	_, writeErr := f.WriteString(strconv.Itoa(pid))
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("writing owner PID: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("closing lock file: %w", closeErr)
	}
	return true, nil
}

// readOwnerPID reads the PID recorded in an existing lock file.
// ok is false for a missing, empty, or unparseable file - all treated as
// stale by the acquisition loop.
func readOwnerPID(path string) (int, bool) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
