package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/debug"
)

// Version is stamped at build time via -ldflags.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	rootDir     string
	verboseFlag bool
	quietFlag   bool
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "loom - file-based coordination for a local LLM chat workspace",
	Long: `Jobs, schedules, cycles and memory archives coordinated through plain
files, so the chat front-end, the watchers and the CLI can cooperate
without a server in between.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("loom version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			debug.SetVerbose(true)
		}
		if quietFlag {
			debug.SetQuiet(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "workspace root directory")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.Flags().Bool("version", false, "print version information")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
