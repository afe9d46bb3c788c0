// Package jobs manages named job definitions and the shared file-based
// execution queue the scheduler watcher and the consumer coordinate over.
package jobs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/jsonstore"
)

// Definition is one named job: an instruction template plus the trigger
// text shown to the model to kick it off.
type Definition struct {
	Instructions string `json:"instructions"`
	Trigger      string `json:"trigger"`
}

// Catalog is the set of job definitions backed by jobs.json. Mutations go
// through the file lock and refresh the in-memory cache; a concurrent
// editor's changes are not seen by a long-running process until it
// reloads. Documented limitation, not solved.
type Catalog struct {
	store *jsonstore.Store[map[string]Definition]
	defs  map[string]Definition
}

// LoadCatalog parses jobs.json into the catalog. When the file is absent
// it synthesizes and persists a small set of default example jobs rather
// than failing.
func LoadCatalog(path string, lockTimeout time.Duration) *Catalog {
	c := &Catalog{store: jsonstore.New[map[string]Definition](path, lockTimeout)}
	c.defs = c.store.Read()
	if c.defs == nil {
		debug.PrintNormal("No jobs.json found. Creating default examples.\n")
		c.defs = defaultJobs()
		if err := c.store.Write(c.defs); err != nil {
			debug.Warnf("could not create default jobs file: %v", err)
		}
	}
	return c
}

func defaultJobs() map[string]Definition {
	return map[string]Definition{
		"summary_job": {
			Instructions: "Create a concise, factual summary of the provided text. Focus on key decisions, outcomes, and open items.",
			Trigger:      "Summarize the previous text.",
		},
		"keyword_job": {
			Instructions: `Extract the main keywords from the provided text as a JSON-formatted list. Example: ["keyword1", "keyword2"]`,
			Trigger:      "Extract keywords from the previous text.",
		},
		"reflection_job": {
			Instructions: "Reflect on the conversation so far. Identify key insights, contradictions, or areas for future exploration. Propose next steps if applicable.",
			Trigger:      "Reflect on the conversation.",
		},
	}
}

// Reload re-reads jobs.json into the cache.
func (c *Catalog) Reload() {
	if defs := c.store.Read(); defs != nil {
		c.defs = defs
	}
}

// Names returns all defined job names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the definition for a job name.
func (c *Catalog) Get(name string) (Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Trigger returns the trigger prompt for a job, or false if undefined.
func (c *Catalog) Trigger(name string) (string, bool) {
	def, ok := c.defs[name]
	if !ok {
		return "", false
	}
	return def.Trigger, true
}

// RenderPrompt builds the full instruction prompt for a job: every {key}
// placeholder is replaced with the string form of args[key] (missing keys
// stay as literal placeholders), and the result is wrapped in the
// standardized job envelope.
func (c *Catalog) RenderPrompt(name string, args map[string]any) (string, bool) {
	def, ok := c.defs[name]
	if !ok {
		return "", false
	}

	instructions := def.Instructions
	for key, value := range args {
		placeholder := "{" + key + "}"
		instructions = strings.ReplaceAll(instructions, placeholder, fmt.Sprintf("%v", value))
	}

	return fmt.Sprintf("###JOB_START: %s###\n%s\n###_END###", strings.ToUpper(name), instructions), true
}

// Save upserts a job definition: lock-protected read-modify-write against
// jobs.json, then cache update.
func (c *Catalog) Save(name, instructions, trigger string) error {
	def := Definition{Instructions: instructions, Trigger: trigger}
	err := c.store.Update(func(all map[string]Definition) (map[string]Definition, error) {
		if all == nil {
			all = make(map[string]Definition)
		}
		all[name] = def
		return all, nil
	})
	if err != nil {
		return fmt.Errorf("saving job %q: %w", name, err)
	}
	c.defs[name] = def
	return nil
}

// Delete removes a job definition. Deleting an undefined job is a no-op.
func (c *Catalog) Delete(name string) error {
	err := c.store.Update(func(all map[string]Definition) (map[string]Definition, error) {
		if all == nil {
			all = make(map[string]Definition)
		}
		delete(all, name)
		return all, nil
	})
	if err != nil {
		return fmt.Errorf("deleting job %q: %w", name, err)
	}
	delete(c.defs, name)
	return nil
}
