package schedule

import (
	"context"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/jobs"
)

// Watcher is the scheduler background process: every tick it drains the
// due schedules and enqueues them. It carries no state of its own - a
// restart loses nothing.
type Watcher struct {
	store        *Store
	queue        *jobs.Queue
	pollInterval time.Duration
}

func NewWatcher(store *Store, queue *jobs.Queue, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Watcher{store: store, queue: queue, pollInterval: pollInterval}
}

// SetPollInterval allows overriding the poll interval (for testing).
func (w *Watcher) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

// Tick performs one poll: atomically collect the due entries and enqueue
// each. Returns the number of jobs queued. Enqueue failures (an entry
// referencing a deleted job, a lock timeout) are logged per entry; the
// rest of the batch still runs.
func (w *Watcher) Tick(now time.Time) (int, error) {
	due, err := w.store.DueAndRemove(now)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, entry := range due {
		debug.Logf("queueing job %q scheduled for %s", entry.JobName, entry.ScheduledDatetimeISO)
		if err := w.queue.Enqueue(entry.JobName, 0, "", nil); err != nil {
			debug.Warnf("could not queue scheduled job %q: %v", entry.JobName, err)
			continue
		}
		queued++
	}
	return queued, nil
}

// Run drives Tick on a timer until the context is canceled. Tick errors
// are logged and the loop continues after a longer pause, so a transient
// lock timeout never kills the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	debug.PrintNormal("Scheduler watcher started...\n")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Tick(time.Now()); err != nil {
				debug.Warnf("scheduler watcher tick: %v", err)
				// Avoid rapid-fire errors when the store is wedged.
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}
