package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/delta"
	"github.com/jmstrand/loom/internal/ui"
)

var deltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Record and render memory deltas",
}

var (
	deltaKey       string
	deltaScope     string
	deltaTarget    string
	deltaOp        string
	deltaPath      string
	deltaValueMode string
)

var deltaAddCmd = &cobra.Command{
	Use:   "add <value>",
	Short: "Append an immutable delta record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		path, err := openDeltas(ws).Append(deltaKey, deltaScope, deltaTarget,
			deltaOp, deltaPath, args[0], deltaValueMode)
		if err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s created %s\n", ui.RenderOK(ui.IconOK), path)
	},
}

var deltaSetCmd = &cobra.Command{
	Use:   "set <trait> <value>",
	Short: "Set a latest-value-wins simple delta",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openDeltas(ws).SetSimple(args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s set %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var deltaSectionCmd = &cobra.Command{
	Use:   "section",
	Short: "Edit free-form manifest sections",
}

var deltaSectionSetCmd = &cobra.Command{
	Use:   "set <section> <key> <value>",
	Short: "Set a key in a dict section",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openDeltas(ws).SetSection(args[0], args[1], args[2]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s set %s.%s\n", ui.RenderOK(ui.IconOK), args[0], args[1])
	},
}

var deltaSectionAppendCmd = &cobra.Command{
	Use:   "append <section> <value>",
	Short: "Append a value to a list section",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openDeltas(ws).AppendSection(args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s appended to %s\n", ui.RenderOK(ui.IconOK), args[0])
	},
}

var deltaRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the injectable delta block",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		out := openDeltas(ws).Render()
		if out == "" {
			// An empty render means "omit the injection"; print nothing so
			// scripts can test for emptiness.
			return
		}
		fmt.Println(out)
	},
}

func init() {
	deltaAddCmd.Flags().StringVar(&deltaKey, "key", "", "delta key (e.g. P-001)")
	deltaAddCmd.Flags().StringVar(&deltaScope, "scope", "", "high-level category")
	deltaAddCmd.Flags().StringVar(&deltaTarget, "target", "", "file or object the delta applies to")
	deltaAddCmd.Flags().StringVar(&deltaOp, "op", "set", "operation: append, set, upsert, remove")
	deltaAddCmd.Flags().StringVar(&deltaPath, "path", "", "dot-notation path within the target")
	deltaAddCmd.Flags().StringVar(&deltaValueMode, "value-mode", delta.DefaultValueMode, "value encoding: RAW or EOF")

	deltaSectionCmd.AddCommand(deltaSectionSetCmd, deltaSectionAppendCmd)
	deltaCmd.AddCommand(deltaAddCmd, deltaSetCmd, deltaSectionCmd, deltaRenderCmd)
	rootCmd.AddCommand(deltaCmd)
}
