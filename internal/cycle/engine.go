package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/flagfile"
)

// Cycle run statuses as stored in the active-cycle record.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Consumer readiness words exchanged through the status file.
const (
	SignalIdle = "idle"
	SignalBusy = "busy"
)

// State is the active-cycle record. CurrentStep is the index of the next
// trigger to inject, so it equals the number of prompts injected so far.
type State struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	CurrentStep int    `json:"current_step"`
}

// Outcome reports what a single engine tick did.
type Outcome int

const (
	// OutcomeIdle means no cycle is running.
	OutcomeIdle Outcome = iota
	// OutcomeBusy means a cycle is running but the consumer is not ready.
	OutcomeBusy
	// OutcomeInjected means one trigger prompt was handed to the consumer.
	OutcomeInjected
	// OutcomeStopped means the cycle just ran out of triggers (or its
	// definition vanished) and was marked stopped.
	OutcomeStopped
)

// Engine advances the active cycle one trigger at a time. It owns the
// active-cycle record and the trigger delivery file; the consumer owns the
// status file, flipping it back to idle when it has finished a prompt.
type Engine struct {
	defs         *Store
	statePath    string
	llmStatus    string
	triggerPath  string
	logRoot      string
	pollEvery    time.Duration
	busyPollWait time.Duration
}

func NewEngine(defs *Store, statePath, llmStatusPath, triggerPath, logRoot string) *Engine {
	return &Engine{
		defs:         defs,
		statePath:    statePath,
		llmStatus:    llmStatusPath,
		triggerPath:  triggerPath,
		logRoot:      logRoot,
		pollEvery:    time.Second,
		busyPollWait: 500 * time.Millisecond,
	}
}

// SetPollIntervals overrides the waits between ticks. The busy interval is
// used while waiting on the consumer, the idle interval everywhere else.
func (e *Engine) SetPollIntervals(idle, busy time.Duration) {
	e.pollEvery = idle
	e.busyPollWait = busy
}

// Active returns the current active-cycle record, false when none exists.
func (e *Engine) Active() (State, bool) {
	var st State
	if !flagfile.ReadJSON(e.statePath, &st) {
		return State{}, false
	}
	return st, true
}

// Start begins running the named cycle from its first trigger, replacing
// any previous run.
func (e *Engine) Start(name string) error {
	if _, ok := e.defs.Get(name); !ok {
		return fmt.Errorf("cycle %q not defined", name)
	}
	flagfile.WriteJSON(e.statePath, State{Name: name, Status: StatusRunning})
	debug.LogEvent(e.logRoot, "CYCLE_STARTED", name, "")
	return nil
}

// Stop marks the active cycle stopped, keeping the record for inspection.
// Stopping with no active cycle is a no-op.
func (e *Engine) Stop() {
	st, ok := e.Active()
	if !ok || st.Status != StatusRunning {
		return
	}
	st.Status = StatusStopped
	flagfile.WriteJSON(e.statePath, st)
	debug.LogEvent(e.logRoot, "CYCLE_STOPPED", st.Name, fmt.Sprintf("at step %d", st.CurrentStep))
}

// Tick runs one step of the engine: if a cycle is running and the consumer
// reports idle, it injects the next trigger prompt and flips the consumer
// to busy. Exhausted or dangling cycles are marked stopped.
func (e *Engine) Tick() Outcome {
	st, ok := e.Active()
	if !ok || st.Status != StatusRunning {
		return OutcomeIdle
	}
	if flagfile.ReadWord(e.llmStatus) != SignalIdle {
		return OutcomeBusy
	}

	c, defined := e.defs.Get(st.Name)
	if !defined || len(c.Triggers) == 0 {
		debug.Warnf("cycle %q has no triggers, stopping", st.Name)
		return e.finish(st)
	}
	if st.CurrentStep >= len(c.Triggers) {
		debug.Logf("cycle %q finished after %d steps", st.Name, st.CurrentStep)
		return e.finish(st)
	}

	trig := c.Triggers[st.CurrentStep]

	// Claim the consumer before delivering the prompt, so a concurrent
	// idle report cannot race us into a double injection.
	flagfile.WriteWord(e.llmStatus, SignalBusy)
	flagfile.WriteText(e.triggerPath, trig.Prompt)
	st.CurrentStep++
	flagfile.WriteJSON(e.statePath, st)
	debug.LogEvent(e.logRoot, "CYCLE_TRIGGER", st.Name, fmt.Sprintf("step %d: %s", st.CurrentStep-1, trig.Name))
	return OutcomeInjected
}

func (e *Engine) finish(st State) Outcome {
	st.Status = StatusStopped
	flagfile.WriteJSON(e.statePath, st)
	debug.LogEvent(e.logRoot, "CYCLE_FINISHED", st.Name, "")
	return OutcomeStopped
}

// Run ticks the engine until the context is cancelled, waiting the busy
// interval after a busy tick and the idle interval otherwise.
func (e *Engine) Run(ctx context.Context) error {
	debug.Logf("cycle watcher running (poll %v)", e.pollEvery)
	for {
		wait := e.pollEvery
		if e.Tick() == OutcomeBusy {
			wait = e.busyPollWait
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
