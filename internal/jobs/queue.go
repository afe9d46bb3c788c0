package jobs

import (
	"fmt"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/jsonstore"
)

// DefaultPriority matches the reference deployment's queue entries.
const DefaultPriority = 100

// WhenNow marks a queued job for immediate execution.
const WhenNow = "now"

// QueuedJob is one entry in job_queue.json. Index 0 is always the next
// job to run.
type QueuedJob struct {
	Name     string         `json:"name"`
	Priority int            `json:"priority"`
	When     string         `json:"when"`
	Args     map[string]any `json:"args"`
}

// Job is a queued job resolved against the catalog into a renderable
// prompt, ready for the consumer to execute.
type Job struct {
	Name     string
	Priority int
	When     string
	Args     map[string]any
	Prompt   string
}

// Queue is the FIFO job queue shared between the scheduler watcher and
// the consumer, backed by job_queue.json under its file lock.
type Queue struct {
	store   *jsonstore.Store[[]QueuedJob]
	catalog *Catalog
}

// NewQueue binds the queue file to the catalog used for prompt resolution.
func NewQueue(path string, catalog *Catalog, lockTimeout time.Duration) *Queue {
	return &Queue{
		store:   jsonstore.New[[]QueuedJob](path, lockTimeout),
		catalog: catalog,
	}
}

// Enqueue appends a job to the queue under the lock. Jobs with no catalog
// definition are refused: they could never resolve into a prompt.
func (q *Queue) Enqueue(name string, priority int, when string, args map[string]any) error {
	if _, ok := q.catalog.Get(name); !ok {
		return fmt.Errorf("job %q not defined, cannot add to queue", name)
	}
	if priority == 0 {
		priority = DefaultPriority
	}
	if when == "" {
		when = WhenNow
	}
	if args == nil {
		args = map[string]any{}
	}

	entry := QueuedJob{Name: name, Priority: priority, When: when, Args: args}
	err := q.store.Update(func(queue []QueuedJob) ([]QueuedJob, error) {
		return append(queue, entry), nil
	})
	if err != nil {
		return fmt.Errorf("enqueueing job %q: %w", name, err)
	}
	debug.Logf("job %q added to the queue file", name)
	return nil
}

// Dequeue pops the front of the queue and resolves it against the catalog.
// Returns (nil, nil) when the queue is empty, and also when the popped
// entry no longer resolves to a defined job - the entry is consumed
// either way, with a warning.
func (q *Queue) Dequeue() (*Job, error) {
	var next *QueuedJob
	err := q.store.Update(func(queue []QueuedJob) ([]QueuedJob, error) {
		if len(queue) == 0 {
			return queue, nil
		}
		entry := queue[0]
		next = &entry
		return queue[1:], nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeueing: %w", err)
	}
	if next == nil {
		return nil, nil
	}

	prompt, ok := q.catalog.RenderPrompt(next.Name, next.Args)
	if !ok {
		debug.Warnf("could not build instruction prompt for job %q, skipping", next.Name)
		return nil, nil
	}

	return &Job{
		Name:     next.Name,
		Priority: next.Priority,
		When:     next.When,
		Args:     next.Args,
		Prompt:   prompt,
	}, nil
}

// Pending returns a snapshot of the queue without taking the lock.
func (q *Queue) Pending() []QueuedJob {
	return q.store.Read()
}

// HasPending is a non-locking emptiness check. A caller may see a stale
// answer for at most one poll interval; the scheduling decision it feeds
// is retried anyway.
func (q *Queue) HasPending() bool {
	return len(q.store.Read()) > 0
}

// QueueFile returns the backing file path (watched by `loom queue wait`).
func (q *Queue) QueueFile() string {
	return q.store.Path()
}
