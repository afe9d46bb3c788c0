package verbatim

import (
	"context"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/flagfile"
)

// Watcher polls the verbatim state file and drives the archiver through
// the input/output protocol.
type Watcher struct {
	archiver     *Archiver
	statePath    string
	pollInterval time.Duration
}

func NewWatcher(archiver *Archiver, statePath string) *Watcher {
	return &Watcher{
		archiver:     archiver,
		statePath:    statePath,
		pollInterval: 100 * time.Millisecond,
	}
}

// SetPollInterval overrides the wait between state polls.
func (w *Watcher) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

// Tick handles one observed state. Returns true when the watcher should
// stop (a shutdown was requested).
func (w *Watcher) Tick() (stop bool) {
	switch flagfile.ReadWord(w.statePath) {
	case StateInputReady:
		if err := w.archiver.HandleInput(); err != nil {
			debug.Warnf("handling input: %v", err)
			return false
		}
		flagfile.WriteWord(w.statePath, StateWaiting)

	case StateOutputReady:
		if err := w.archiver.HandleOutput(); err != nil {
			debug.Warnf("handling output: %v", err)
			return false
		}
		flagfile.WriteWord(w.statePath, StateIdle)

	case StateShutdown:
		debug.Logf("verbatim watcher shutting down")
		w.archiver.EndSession()
		return true

	case StateForceNewSession:
		w.archiver.EndSession()
		if err := w.archiver.StartSession(true); err != nil {
			debug.Warnf("forcing new session: %v", err)
			return false
		}
		flagfile.WriteWord(w.statePath, StateIdle)
	}
	return false
}

// Run opens a session (resuming if possible) and polls until shutdown is
// requested or the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.archiver.StartSession(false); err != nil {
		return err
	}
	debug.Logf("verbatim watcher running (poll %v)", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.archiver.EndSession()
			return ctx.Err()
		case <-ticker.C:
			if w.Tick() {
				return nil
			}
		}
	}
}
