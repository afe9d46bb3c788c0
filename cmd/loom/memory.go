package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/episodic"
	"github.com/jmstrand/loom/internal/ui"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Browse and extend the episodic memory archive",
}

var (
	memMode     string
	memInput    string
	memOutput   string
	memHeading  string
	memSummary  string
	memKeywords []string
	memTopics   []string
)

var memoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Write a new episodic entry",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		id, err := openEpisodic(ws).CreateEntry(episodic.Entry{
			Mode:           memMode,
			Input:          memInput,
			Output:         memOutput,
			SummaryHeading: memHeading,
			Summary:        memSummary,
			Keywords:       memKeywords,
			Topics:         memTopics,
		})
		if err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s created entry %s\n", ui.RenderOK(ui.IconOK), id)
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entries, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		printEntryIndex(openEpisodic(ws).AllEntries())
	},
}

var memoryRecentCmd = &cobra.Command{
	Use:   "recent <n>",
	Short: "List the n newest entries",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid count %q", args[0])
		}
		ws := mustWorkspace()
		printEntryIndex(openEpisodic(ws).Recent(n))
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search entries by content, summary, keywords and topics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		term := strings.ToLower(args[0])
		var matches []episodic.Entry
		for _, e := range openEpisodic(ws).AllEntries() {
			if entryMatches(e, term) {
				matches = append(matches, e)
			}
		}
		printEntryIndex(matches)
	},
}

func entryMatches(e episodic.Entry, term string) bool {
	for _, field := range []string{e.Input, e.Output, e.Summary, e.SummaryHeading,
		strings.Join(e.Keywords, " "), strings.Join(e.Topics, " ")} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func printEntryIndex(entries []episodic.Entry) {
	if jsonOutput {
		printJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println(ui.RenderMuted("no entries"))
		return
	}
	for _, e := range entries {
		heading := e.SummaryHeading
		if heading == "" {
			heading = ui.RenderMuted("(no heading)")
		}
		fmt.Printf("%s  %s  %s\n", e.ID, heading, ui.RenderMuted(e.Time))
	}
}

var memoryReviewCmd = &cobra.Command{
	Use:   "review <id...>",
	Short: "Append entries to the chat review file",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		log := openEpisodic(ws)
		paths := make([]string, len(args))
		for i, id := range args {
			paths[i] = log.EntryPath(id)
		}
		if err := log.AddToChatReview(paths); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s appended %d entries to review\n", ui.RenderOK(ui.IconOK), len(paths))
	},
}

var memoryQuoteCmd = &cobra.Command{
	Use:   "quote <text>",
	Short: "Append a quote to the quotes file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		if err := openEpisodic(ws).AddToQuotes(args[0]); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s quote saved\n", ui.RenderOK(ui.IconOK))
	},
}

func init() {
	memoryAddCmd.Flags().StringVar(&memMode, "mode", "chat", "entry mode")
	memoryAddCmd.Flags().StringVar(&memInput, "input", "", "user input text")
	memoryAddCmd.Flags().StringVar(&memOutput, "output", "", "model output text")
	memoryAddCmd.Flags().StringVar(&memHeading, "heading", "", "summary heading")
	memoryAddCmd.Flags().StringVar(&memSummary, "summary", "", "summary text")
	memoryAddCmd.Flags().StringSliceVar(&memKeywords, "keyword", nil, "keyword (repeatable)")
	memoryAddCmd.Flags().StringSliceVar(&memTopics, "topic", nil, "topic (repeatable)")

	memoryCmd.AddCommand(memoryAddCmd, memoryListCmd, memoryRecentCmd,
		memorySearchCmd, memoryReviewCmd, memoryQuoteCmd)
	rootCmd.AddCommand(memoryCmd)
}
