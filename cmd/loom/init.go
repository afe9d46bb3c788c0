package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/config"
	"github.com/jmstrand/loom/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace tree, default config and default jobs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := config.Open(rootDir)
		if err != nil {
			FatalError("%v", err)
		}
		if err := ws.Init(); err != nil {
			FatalError("%v", err)
		}
		// Seeds the default jobs when jobs.json does not exist yet.
		catalog := openCatalog(ws)

		if jsonOutput {
			printJSON(map[string]interface{}{"root": ws.Root, "jobs": catalog.Names()})
			return
		}
		fmt.Printf("%s initialized workspace at %s\n", ui.RenderOK(ui.IconOK), ws.Root)
		for _, name := range catalog.Names() {
			fmt.Printf("  %s job %s\n", ui.RenderMuted("-"), name)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Println("\nNext steps:")
		fmt.Printf("  %s   start the background watchers\n", cyan("loom watch all"))
		fmt.Printf("  %s  check the coordination state\n", cyan("loom status"))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
