// Package lockfile enforces single-instance watchers. Each watcher takes
// an exclusive non-blocking OS advisory lock (flock on unix) on its lock
// file at startup; if the lock is already held another instance is
// running and the newcomer exits cleanly. The kernel drops the lock when
// the holder dies, so a crashed watcher never wedges its successor.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned when another instance holds the guard.
var ErrAlreadyRunning = errors.New("watcher already running")

// LockInfo is the guard file body, written for diagnostics (`loom status`
// reads it to report which watchers are up).
type LockInfo struct {
	PID       int       `json:"pid"`
	Watcher   string    `json:"watcher"`
	StartedAt time.Time `json:"started_at"`
}

// Guard is a held single-instance lock. Release on shutdown; the OS
// releases it anyway if the process dies.
type Guard struct {
	file *os.File
	path string
}

func guardPath(dir, watcher string) string {
	return filepath.Join(dir, watcher+"_watcher.lock")
}

// Acquire takes the single-instance guard for the named watcher.
// Returns ErrAlreadyRunning (wrapped with the holder's PID when known)
// if another live instance holds it.
func Acquire(dir, watcher string) (*Guard, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating guard dir: %w", err)
	}
	path := guardPath(dir, watcher)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("opening guard file: %w", err)
	}

	if err := flockExclusiveNonBlocking(f); err != nil {
		info, _ := readLockInfo(path)
		_ = f.Close()
		if info != nil {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, info.PID)
		}
		return nil, ErrAlreadyRunning
	}

	info := LockInfo{PID: os.Getpid(), Watcher: watcher, StartedAt: time.Now()}
	data, err := json.Marshal(info)
	if err == nil {
		_ = f.Truncate(0)
		_, _ = f.Seek(0, 0)
		_, _ = f.Write(data)
		_ = f.Sync()
	}

	return &Guard{file: f, path: path}, nil
}

// Release unlocks and removes the guard file.
func (g *Guard) Release() error {
	if g.file == nil {
		return nil
	}
	err := flockUnlock(g.file)
	closeErr := g.file.Close()
	g.file = nil
	_ = os.Remove(g.path)
	if err != nil {
		return fmt.Errorf("unlocking guard: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing guard: %w", closeErr)
	}
	return nil
}

// ReadLockInfo reads the guard file for the named watcher without taking
// the lock. Returns an error for a missing or unparseable file.
func ReadLockInfo(dir, watcher string) (*LockInfo, error) {
	return readLockInfo(guardPath(dir, watcher))
}

func readLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("reading guard file: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil && info.PID > 0 {
		return &info, nil
	}

	// Old format: plain PID as decimal text.
	pid, atoiErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if atoiErr != nil || pid <= 0 {
		return nil, fmt.Errorf("invalid guard file %s", path)
	}
	return &LockInfo{PID: pid}, nil
}

// IsRunning reports whether the named watcher's guard is held, and by
// which PID. It probes by attempting the lock: acquiring and immediately
// releasing it proves no instance is running.
func IsRunning(dir, watcher string) (bool, int) {
	path := guardPath(dir, watcher)

	f, err := os.OpenFile(path, os.O_RDWR, 0644) // #nosec G304
	if err != nil {
		return false, 0
	}
	defer f.Close()

	if err := flockExclusiveNonBlocking(f); err == nil {
		_ = flockUnlock(f)
		return false, 0
	}

	info, err := readLockInfo(path)
	if err != nil {
		return true, 0
	}
	return true, info.PID
}
