package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/timeparsing"
	"github.com/jmstrand/loom/internal/ui"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage one-shot job schedules",
}

var scheduleAt string

var scheduleAddCmd = &cobra.Command{
	Use:   "add <job>",
	Short: "Schedule a job for a future time",
	Long: `The --at value accepts compact durations ("+2h", "3d"), absolute
timestamps ("2026-09-01 14:30") and natural language ("tomorrow at 9am").`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()

		if scheduleAt == "" {
			FatalError("--at is required")
		}
		at, err := timeparsing.Parse(scheduleAt, time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		if _, ok := openCatalog(ws).Get(args[0]); !ok {
			FatalError("job %q not defined", args[0])
		}

		entry, err := openSchedules(ws).Add(args[0], at)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			printJSON(entry)
			return
		}
		fmt.Printf("%s scheduled %s for %s %s\n", ui.RenderOK(ui.IconOK),
			entry.JobName, entry.ScheduledDatetimeISO, ui.RenderMuted("("+entry.ID+")"))
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending schedules",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		entries := openSchedules(ws).All()
		if jsonOutput {
			printJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println(ui.RenderMuted("no pending schedules"))
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n", e.ScheduledDatetimeISO, e.JobName, ui.RenderMuted(e.ID))
		}
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a pending schedule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		removed, err := openSchedules(ws).Delete(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if !removed {
			FatalError("no schedule with id %s", args[0])
		}
		fmt.Printf("%s deleted schedule %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleAt, "at", "", "when to run the job")
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}
