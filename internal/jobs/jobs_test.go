package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	return LoadCatalog(path, time.Second), path
}

func TestLoadCatalogCreatesDefaults(t *testing.T) {
	c, path := newTestCatalog(t)

	assert.Equal(t, []string{"keyword_job", "reflection_job", "summary_job"}, c.Names())

	// The defaults must also be persisted, not just cached.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "summary_job")
}

func TestLoadCatalogCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	c := LoadCatalog(path, time.Second)
	// Corrupt reads as absent, which re-seeds the defaults.
	assert.Len(t, c.Names(), 3)
}

func TestRenderPrompt(t *testing.T) {
	c, _ := newTestCatalog(t)
	require.NoError(t, c.Save("greet_job", "Say hello to {name}, {count} times. Leave {unknown} alone.", "Greet."))

	t.Run("substitutes args and wraps envelope", func(t *testing.T) {
		prompt, ok := c.RenderPrompt("greet_job", map[string]any{"name": "Ada", "count": 3})
		require.True(t, ok)
		assert.Equal(t, "###JOB_START: GREET_JOB###\nSay hello to Ada, 3 times. Leave {unknown} alone.\n###_END###", prompt)
	})

	t.Run("missing args stay literal", func(t *testing.T) {
		prompt, ok := c.RenderPrompt("greet_job", nil)
		require.True(t, ok)
		assert.Contains(t, prompt, "{name}")
		assert.Contains(t, prompt, "{count}")
	})

	t.Run("undefined job", func(t *testing.T) {
		_, ok := c.RenderPrompt("nope", nil)
		assert.False(t, ok)
	})
}

func TestCatalogSaveDelete(t *testing.T) {
	c, path := newTestCatalog(t)

	require.NoError(t, c.Save("custom_job", "Do the thing.", "Go."))
	def, ok := c.Get("custom_job")
	require.True(t, ok)
	assert.Equal(t, "Do the thing.", def.Instructions)

	// A fresh catalog over the same file sees the saved job.
	c2 := LoadCatalog(path, time.Second)
	_, ok = c2.Get("custom_job")
	assert.True(t, ok)

	require.NoError(t, c.Delete("custom_job"))
	_, ok = c.Get("custom_job")
	assert.False(t, ok)

	c3 := LoadCatalog(path, time.Second)
	_, ok = c3.Get("custom_job")
	assert.False(t, ok)

	// Deleting a job that was never defined is a no-op.
	require.NoError(t, c.Delete("never_existed"))
}

func TestTrigger(t *testing.T) {
	c, _ := newTestCatalog(t)

	trigger, ok := c.Trigger("summary_job")
	require.True(t, ok)
	assert.Equal(t, "Summarize the previous text.", trigger)

	_, ok = c.Trigger("nope")
	assert.False(t, ok)
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	c := LoadCatalog(filepath.Join(dir, "jobs.json"), time.Second)
	return NewQueue(filepath.Join(dir, "job_queue.json"), c, time.Second)
}

func TestQueueFIFO(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue("summary_job", 0, "", nil))
	require.NoError(t, q.Enqueue("keyword_job", 0, "", nil))
	require.NoError(t, q.Enqueue("reflection_job", 0, "", nil))

	var got []string
	for {
		job, err := q.Dequeue()
		require.NoError(t, err)
		if job == nil {
			break
		}
		got = append(got, job.Name)
	}
	assert.Equal(t, []string{"summary_job", "keyword_job", "reflection_job"}, got)
	assert.False(t, q.HasPending())
}

func TestQueueDequeueResolvesPrompt(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue("summary_job", 0, "", nil))

	job, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, DefaultPriority, job.Priority)
	assert.Equal(t, WhenNow, job.When)
	assert.Contains(t, job.Prompt, "###JOB_START: SUMMARY_JOB###")
	assert.Contains(t, job.Prompt, "###_END###")
}

func TestQueueRefusesUndefinedJob(t *testing.T) {
	q := newTestQueue(t)
	err := q.Enqueue("no_such_job", 0, "", nil)
	require.Error(t, err)
	assert.False(t, q.HasPending())
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := newTestQueue(t)
	job, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueueDanglingEntryConsumed(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue("summary_job", 0, "", nil))

	// The definition disappears between enqueue and dequeue.
	require.NoError(t, q.catalog.Delete("summary_job"))

	job, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, job, "unresolvable job is dropped, not returned")
	assert.False(t, q.HasPending(), "the dangling entry is still consumed")
}
