package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/flagfile"
	"github.com/jmstrand/loom/internal/lockfile"
	"github.com/jmstrand/loom/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Snapshot of the workspace coordination state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()

		queueDepth := len(openQueue(ws).Pending())
		scheduleCount := len(openSchedules(ws).All())
		consumer := flagfile.ReadWord(ws.LLMStatusFile())
		verbatimState := flagfile.ReadWord(ws.VerbatimStateFile())
		cycleState, cycleKnown := openCycleEngine(ws).Active()

		type watcherStatus struct {
			Running bool `json:"running"`
			PID     int  `json:"pid,omitempty"`
		}
		watchers := make(map[string]watcherStatus, 3)
		for _, name := range []string{"scheduler", "cycle", "verbatim"} {
			running, pid := lockfile.IsRunning(ws.WatcherGuardDir(), name)
			watchers[name] = watcherStatus{Running: running, PID: pid}
		}

		if jsonOutput {
			out := map[string]interface{}{
				"queue_depth":    queueDepth,
				"schedules":      scheduleCount,
				"consumer":       consumer,
				"verbatim_state": verbatimState,
				"watchers":       watchers,
			}
			if cycleKnown {
				out["cycle"] = cycleState
			}
			printJSON(out)
			return
		}

		fmt.Println(ui.RenderHeader("workspace"))
		fmt.Printf("root: %s\n", ws.Root)
		fmt.Printf("queue depth: %d\n", queueDepth)
		fmt.Printf("pending schedules: %d\n", scheduleCount)
		fmt.Println(ui.RenderSeparator())

		fmt.Println(ui.RenderHeader("consumer"))
		fmt.Printf("llm status: %s\n", ui.StatusWord(consumer))
		fmt.Printf("verbatim state: %s\n", ui.StatusWord(verbatimState))
		if cycleKnown {
			fmt.Printf("cycle %s: %s (step %d)\n", cycleState.Name,
				ui.StatusWord(cycleState.Status), cycleState.CurrentStep)
		} else {
			fmt.Printf("cycle: %s\n", ui.RenderMuted("none"))
		}
		fmt.Println(ui.RenderSeparator())

		fmt.Println(ui.RenderHeader("watchers"))
		for _, name := range []string{"scheduler", "cycle", "verbatim"} {
			st := watchers[name]
			if st.Running {
				fmt.Printf("%s %s %s\n", ui.RenderOK(ui.IconOK), name,
					ui.RenderMuted(fmt.Sprintf("(pid %d)", st.PID)))
			} else {
				fmt.Printf("%s %s %s\n", ui.RenderMuted(ui.IconIdle), name,
					ui.RenderMuted("not running"))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
