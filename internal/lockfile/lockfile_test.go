package lockfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir, "scheduler")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	info, err := ReadLockInfo(dir, "scheduler")
	if err != nil {
		t.Fatalf("ReadLockInfo failed: %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", info.PID, os.Getpid())
	}
	if info.Watcher != "scheduler" {
		t.Errorf("Watcher = %q, want scheduler", info.Watcher)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scheduler_watcher.lock")); !os.IsNotExist(err) {
		t.Error("guard file still exists after release")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir, "cycle")
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer guard.Release()

	_, err = Acquire(dir, "cycle")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Acquire: expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDifferentWatchersDoNotContend(t *testing.T) {
	dir := t.TempDir()

	g1, err := Acquire(dir, "scheduler")
	if err != nil {
		t.Fatalf("scheduler Acquire failed: %v", err)
	}
	defer g1.Release()

	g2, err := Acquire(dir, "verbatim")
	if err != nil {
		t.Fatalf("verbatim Acquire failed: %v", err)
	}
	defer g2.Release()
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir, "scheduler")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	guard2, err := Acquire(dir, "scheduler")
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	guard2.Release()
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()

	t.Run("no guard file", func(t *testing.T) {
		running, pid := IsRunning(dir, "scheduler")
		if running {
			t.Error("expected running=false with no guard file")
		}
		if pid != 0 {
			t.Errorf("expected pid=0, got %d", pid)
		}
	})

	t.Run("held guard", func(t *testing.T) {
		guard, err := Acquire(dir, "scheduler")
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		defer guard.Release()

		running, pid := IsRunning(dir, "scheduler")
		if !running {
			t.Error("expected running=true while guard held")
		}
		if pid != os.Getpid() {
			t.Errorf("pid = %d, want %d", pid, os.Getpid())
		}
	})

	t.Run("stale unlocked file", func(t *testing.T) {
		staleDir := t.TempDir()
		info := LockInfo{PID: 12345, Watcher: "cycle", StartedAt: time.Now()}
		data, _ := json.Marshal(info)
		path := filepath.Join(staleDir, "cycle_watcher.lock")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("writing stale guard: %v", err)
		}

		// File exists but nobody holds the lock: not running.
		running, _ := IsRunning(staleDir, "cycle")
		if running {
			t.Error("expected running=false for unlocked guard file")
		}
	})
}

func TestReadLockInfoOldFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduler_watcher.lock")
	if err := os.WriteFile(path, []byte("98765"), 0644); err != nil {
		t.Fatalf("writing old-format guard: %v", err)
	}

	info, err := ReadLockInfo(dir, "scheduler")
	if err != nil {
		t.Fatalf("ReadLockInfo failed: %v", err)
	}
	if info.PID != 98765 {
		t.Errorf("PID = %d, want 98765", info.PID)
	}
}

func TestReadLockInfoInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduler_watcher.lock")
	if err := os.WriteFile(path, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("writing guard: %v", err)
	}

	if _, err := ReadLockInfo(dir, "scheduler"); err == nil {
		t.Error("expected error for invalid guard content")
	}
}
