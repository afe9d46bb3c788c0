package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jmstrand/loom/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the job queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued jobs in dispatch order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		pending := openQueue(ws).Pending()
		if jsonOutput {
			printJSON(pending)
			return
		}
		if len(pending) == 0 {
			fmt.Println(ui.RenderMuted("queue is empty"))
			return
		}
		for i, j := range pending {
			fmt.Printf("%2d. %s %s\n", i+1, j.Name,
				ui.RenderMuted(fmt.Sprintf("(priority %d, when %s)", j.Priority, j.When)))
		}
	},
}

var queueNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Pop the next job and print its resolved prompt",
	Long: `Removes the head of the queue and prints the fully rendered prompt
envelope, the same text the consumer would receive.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		job, err := openQueue(ws).Dequeue()
		if err != nil {
			FatalError("%v", err)
		}
		if job == nil {
			fmt.Println(ui.RenderMuted("queue is empty"))
			return
		}
		if jsonOutput {
			printJSON(job)
			return
		}
		fmt.Println(job.Prompt)
	},
}

var queueWaitTimeout time.Duration

var queueWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until the queue has a pending job",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		queue := openQueue(ws)

		if queue.HasPending() {
			fmt.Println(ui.RenderOK("queue has pending jobs"))
			return
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			FatalError("starting file watcher: %v", err)
		}
		defer watcher.Close()

		// Watch the directory: the queue file is replaced by rename, so
		// watching the file itself would lose the watch on first write.
		queueDir := filepath.Dir(queue.QueueFile())
		if err := os.MkdirAll(queueDir, 0755); err != nil {
			FatalError("%v", err)
		}
		if err := watcher.Add(queueDir); err != nil {
			FatalError("watching %s: %v", queueDir, err)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var timeout <-chan time.Time
		if queueWaitTimeout > 0 {
			timeout = time.After(queueWaitTimeout)
		}

		for {
			select {
			case event := <-watcher.Events:
				if event.Name != queue.QueueFile() {
					continue
				}
				if queue.HasPending() {
					fmt.Println(ui.RenderOK("queue has pending jobs"))
					return
				}
			case err := <-watcher.Errors:
				FatalError("file watcher: %v", err)
			case <-timeout:
				FatalError("timed out after %v with an empty queue", queueWaitTimeout)
			case <-sigCh:
				os.Exit(130)
			}
		}
	},
}

func init() {
	queueWaitCmd.Flags().DurationVar(&queueWaitTimeout, "timeout", 0, "give up after this long (0 = wait forever)")
	queueCmd.AddCommand(queueListCmd, queueNextCmd, queueWaitCmd)
	rootCmd.AddCommand(queueCmd)
}
