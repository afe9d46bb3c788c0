package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmstrand/loom/internal/config"
	"github.com/jmstrand/loom/internal/cycle"
	"github.com/jmstrand/loom/internal/delta"
	"github.com/jmstrand/loom/internal/episodic"
	"github.com/jmstrand/loom/internal/jobs"
	"github.com/jmstrand/loom/internal/schedule"
	"github.com/jmstrand/loom/internal/ui"
)

// FatalError prints a styled error and exits. Respects --json by emitting
// an error object instead of prose.
func FatalError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		_ = json.NewEncoder(os.Stderr).Encode(map[string]string{"error": msg})
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), msg)
	}
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		FatalError("encoding output: %v", err)
	}
}

// mustWorkspace opens the workspace at --root, exiting on config errors.
func mustWorkspace() *config.Workspace {
	ws, err := config.Open(rootDir)
	if err != nil {
		FatalError("%v", err)
	}
	return ws
}

func openCatalog(ws *config.Workspace) *jobs.Catalog {
	return jobs.LoadCatalog(ws.JobsFile(), ws.Cfg.LockTimeout)
}

func openQueue(ws *config.Workspace) *jobs.Queue {
	return jobs.NewQueue(ws.JobQueueFile(), openCatalog(ws), ws.Cfg.LockTimeout)
}

func openSchedules(ws *config.Workspace) *schedule.Store {
	return schedule.NewStore(ws.SchedulesFile(), ws.Cfg.LockTimeout)
}

func openCycles(ws *config.Workspace) *cycle.Store {
	return cycle.NewStore(ws.CyclesFile(), ws.Cfg.LockTimeout)
}

func openCycleEngine(ws *config.Workspace) *cycle.Engine {
	eng := cycle.NewEngine(openCycles(ws), ws.ActiveCycleFile(), ws.LLMStatusFile(),
		ws.CycleTriggerFile(), ws.Root)
	eng.SetPollIntervals(ws.Cfg.CyclePollEvery, ws.Cfg.CycleBusyPollEvery)
	return eng
}

func openDeltas(ws *config.Workspace) *delta.Store {
	return delta.New(ws.DeltasDir(), ws.Cfg.LockTimeout)
}

func openEpisodic(ws *config.Workspace) *episodic.Log {
	return episodic.NewLog(ws.EpisodicDir(), ws.ChatReviewFile(), ws.QuotesFile())
}
