package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/flagfile"
	"github.com/jmstrand/loom/internal/ui"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Manage automation cycles",
}

var cycleDescription string
var cycleType string

var cycleCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty cycle",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		created, err := openCycles(ws).Create(args[0], cycleType, cycleDescription)
		if err != nil {
			FatalError("%v", err)
		}
		if !created {
			FatalError("cycle %q already exists", args[0])
		}
		fmt.Printf("%s created cycle %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var cycleDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a cycle",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openCycles(ws).Delete(args[0]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s deleted cycle %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var cycleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cycles",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		cycles := openCycles(ws)
		names := cycles.Names()
		if jsonOutput {
			printJSON(names)
			return
		}
		if len(names) == 0 {
			fmt.Println(ui.RenderMuted("no cycles defined"))
			return
		}
		for _, name := range names {
			c, _ := cycles.Get(name)
			fmt.Printf("%s %s\n", name, ui.RenderMuted(fmt.Sprintf("(%d triggers)", len(c.Triggers))))
		}
	},
}

var cycleShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a cycle and its triggers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		c, ok := openCycles(ws).Get(args[0])
		if !ok {
			FatalError("cycle %q not defined", args[0])
		}
		if jsonOutput {
			printJSON(c)
			return
		}
		fmt.Println(ui.RenderHeader(c.Name))
		if c.Description != "" {
			fmt.Println(c.Description)
		}
		fmt.Println(ui.RenderSeparator())
		for i, t := range c.Triggers {
			fmt.Printf("%2d. %s\n", i+1, t.Name)
			fmt.Printf("    %s\n", ui.RenderMuted(t.Prompt))
		}
	},
}

var cycleTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Edit a cycle's triggers",
}

var cycleTriggerAddCmd = &cobra.Command{
	Use:   "add <cycle> <name> <prompt>",
	Short: "Add a trigger (or overwrite one with the same name)",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openCycles(ws).AddTrigger(args[0], args[1], args[2]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s added trigger %s to %s\n", ui.RenderOK(ui.IconOK), args[1], args[0])
	},
}

var cycleTriggerDeleteCmd = &cobra.Command{
	Use:   "delete <cycle> <name>",
	Short: "Delete a trigger",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openCycles(ws).DeleteTrigger(args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s deleted trigger %s from %s\n", ui.RenderOK(ui.IconOK), args[1], args[0])
	},
}

var cycleStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start running a cycle from its first trigger",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openCycleEngine(ws).Start(args[0]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s started cycle %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var cycleStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active cycle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		openCycleEngine(ws).Stop()
		fmt.Printf("%s stopped\n", ui.RenderOK(ui.IconOK))
	},
}

var cycleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active cycle and consumer state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		st, ok := openCycleEngine(ws).Active()
		consumer := flagfile.ReadWord(ws.LLMStatusFile())
		if jsonOutput {
			out := map[string]interface{}{"consumer": consumer}
			if ok {
				out["cycle"] = st
			}
			printJSON(out)
			return
		}
		if !ok {
			fmt.Println(ui.RenderMuted("no cycle has run yet"))
		} else {
			fmt.Printf("cycle %s: %s (step %d)\n", st.Name, ui.StatusWord(st.Status), st.CurrentStep)
		}
		fmt.Printf("consumer: %s\n", ui.StatusWord(consumer))
	},
}

func init() {
	cycleCreateCmd.Flags().StringVar(&cycleDescription, "description", "", "what this cycle is for")
	cycleCreateCmd.Flags().StringVar(&cycleType, "type", "prompt", "cycle type")
	cycleTriggerCmd.AddCommand(cycleTriggerAddCmd, cycleTriggerDeleteCmd)
	cycleCmd.AddCommand(cycleCreateCmd, cycleDeleteCmd, cycleListCmd, cycleShowCmd,
		cycleTriggerCmd, cycleStartCmd, cycleStopCmd, cycleStatusCmd)
	rootCmd.AddCommand(cycleCmd)
}
