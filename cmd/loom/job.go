package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/jobs"
	"github.com/jmstrand/loom/internal/ui"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage the job catalog",
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List defined jobs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		catalog := openCatalog(ws)
		names := catalog.Names()
		if jsonOutput {
			printJSON(names)
			return
		}
		if len(names) == 0 {
			fmt.Println(ui.RenderMuted("no jobs defined"))
			return
		}
		for _, name := range names {
			def, _ := catalog.Get(name)
			line := name
			if def.Trigger != "" {
				line += " " + ui.RenderMuted("(trigger: "+def.Trigger+")")
			}
			fmt.Println(line)
		}
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a job definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		def, ok := openCatalog(ws).Get(args[0])
		if !ok {
			FatalError("job %q not defined", args[0])
		}
		if jsonOutput {
			printJSON(map[string]string{
				"name":         args[0],
				"instructions": def.Instructions,
				"trigger":      def.Trigger,
			})
			return
		}
		fmt.Println(ui.RenderHeader(args[0]))
		if def.Trigger != "" {
			fmt.Printf("trigger: %s\n", def.Trigger)
		}
		fmt.Println(ui.RenderSeparator())
		fmt.Println(def.Instructions)
	},
}

var (
	jobInstructions string
	jobTrigger      string
	jobUseForm      bool
)

var jobCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create or update a job definition",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		catalog := openCatalog(ws)

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		instructions := jobInstructions
		trigger := jobTrigger

		if jobUseForm || (name == "" && instructions == "") {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Job name").Value(&name).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("name is required")
						}
						return nil
					}),
				huh.NewText().Title("Instructions").
					Description("Prompt template; {placeholders} are filled from job args").
					Value(&instructions),
				huh.NewInput().Title("Trigger (optional)").Value(&trigger),
			))
			if err := form.Run(); err != nil {
				FatalError("%v", err)
			}
		}
		if name == "" {
			FatalError("job name is required")
		}
		if err := catalog.Save(name, instructions, trigger); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s saved job %s\n", ui.RenderOK(ui.IconOK), name)
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a job definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openCatalog(ws).Delete(args[0]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s deleted job %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var (
	jobRunPriority int
	jobRunArgs     []string
)

var jobRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Enqueue a job for the consumer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		queue := openQueue(ws)

		jobArgs, err := parseKeyValues(jobRunArgs)
		if err != nil {
			FatalError("%v", err)
		}
		if err := queue.Enqueue(args[0], jobRunPriority, jobs.WhenNow, jobArgs); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s enqueued %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		if !found || k == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	jobCreateCmd.Flags().StringVar(&jobInstructions, "instructions", "", "prompt template")
	jobCreateCmd.Flags().StringVar(&jobTrigger, "trigger", "", "trigger description")
	jobCreateCmd.Flags().BoolVar(&jobUseForm, "form", false, "fill in the definition interactively")
	jobRunCmd.Flags().IntVar(&jobRunPriority, "priority", jobs.DefaultPriority, "queue priority")
	jobRunCmd.Flags().StringArrayVar(&jobRunArgs, "arg", nil, "template argument key=value (repeatable)")

	jobCmd.AddCommand(jobListCmd, jobShowCmd, jobCreateCmd, jobDeleteCmd, jobRunCmd)
	rootCmd.AddCommand(jobCmd)
}
