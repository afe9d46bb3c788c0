// Package cycle manages automation cycles: named, ordered lists of
// prompts stepped through one at a time while the consumer reports idle.
package cycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmstrand/loom/internal/jsonstore"
)

// Trigger is one named prompt within a cycle.
type Trigger struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Cycle is one definition in cycles.json. Trigger names are unique within
// a cycle: adding a duplicate overwrites the existing trigger in place.
type Cycle struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Triggers    []Trigger `json:"triggers"`
}

// Store is the cycle-definitions document under its file lock. Reads are
// always fresh from disk: the watcher must see trigger edits made while a
// cycle is running.
type Store struct {
	store *jsonstore.Store[map[string]Cycle]
}

func NewStore(path string, lockTimeout time.Duration) *Store {
	return &Store{store: jsonstore.New[map[string]Cycle](path, lockTimeout)}
}

// Names returns all cycle names, sorted.
func (s *Store) Names() []string {
	all := s.store.Read()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a cycle definition by name.
func (s *Store) Get(name string) (Cycle, bool) {
	c, ok := s.store.Read()[name]
	return c, ok
}

// Create adds a new empty cycle. Returns false without error when the
// name is already taken.
func (s *Store) Create(name, cycleType, description string) (bool, error) {
	if cycleType == "" {
		cycleType = "prompt"
	}
	created := false
	err := s.store.Update(func(all map[string]Cycle) (map[string]Cycle, error) {
		if all == nil {
			all = make(map[string]Cycle)
		}
		if _, exists := all[name]; exists {
			return all, nil
		}
		all[name] = Cycle{Name: name, Type: cycleType, Description: description, Triggers: []Trigger{}}
		created = true
		return all, nil
	})
	if err != nil {
		return false, fmt.Errorf("creating cycle %q: %w", name, err)
	}
	return created, nil
}

// Delete removes a cycle. Deleting an unknown cycle is a no-op.
func (s *Store) Delete(name string) error {
	err := s.store.Update(func(all map[string]Cycle) (map[string]Cycle, error) {
		if all == nil {
			all = make(map[string]Cycle)
		}
		delete(all, name)
		return all, nil
	})
	if err != nil {
		return fmt.Errorf("deleting cycle %q: %w", name, err)
	}
	return nil
}

// AddTrigger appends a trigger to a cycle, or overwrites the prompt of an
// existing trigger with the same name in place (order preserved).
func (s *Store) AddTrigger(cycleName, triggerName, prompt string) error {
	err := s.updateCycle(cycleName, func(c Cycle) Cycle {
		for i := range c.Triggers {
			if c.Triggers[i].Name == triggerName {
				c.Triggers[i].Prompt = prompt
				return c
			}
		}
		c.Triggers = append(c.Triggers, Trigger{Name: triggerName, Prompt: prompt})
		return c
	})
	if err != nil {
		return fmt.Errorf("adding trigger %q to cycle %q: %w", triggerName, cycleName, err)
	}
	return nil
}

// DeleteTrigger removes a trigger from a cycle by name.
func (s *Store) DeleteTrigger(cycleName, triggerName string) error {
	err := s.updateCycle(cycleName, func(c Cycle) Cycle {
		kept := c.Triggers[:0]
		for _, t := range c.Triggers {
			if t.Name != triggerName {
				kept = append(kept, t)
			}
		}
		c.Triggers = kept
		return c
	})
	if err != nil {
		return fmt.Errorf("deleting trigger %q from cycle %q: %w", triggerName, cycleName, err)
	}
	return nil
}

// SetTriggers replaces a cycle's whole trigger list (reordering).
func (s *Store) SetTriggers(cycleName string, triggers []Trigger) error {
	err := s.updateCycle(cycleName, func(c Cycle) Cycle {
		c.Triggers = triggers
		return c
	})
	if err != nil {
		return fmt.Errorf("updating triggers of cycle %q: %w", cycleName, err)
	}
	return nil
}

var errUnknownCycle = fmt.Errorf("cycle not defined")

func (s *Store) updateCycle(name string, fn func(Cycle) Cycle) error {
	return s.store.Update(func(all map[string]Cycle) (map[string]Cycle, error) {
		c, ok := all[name]
		if !ok {
			return nil, errUnknownCycle
		}
		all[name] = fn(c)
		return all, nil
	})
}
