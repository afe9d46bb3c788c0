package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmstrand/loom/internal/config"
	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/lockfile"
	"github.com/jmstrand/loom/internal/schedule"
	"github.com/jmstrand/loom/internal/ui"
	"github.com/jmstrand/loom/internal/verbatim"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background watcher processes",
	Long: `Each watcher takes a single-instance lock, so starting a second copy
of the same watcher against the same workspace fails fast.`,
}

// runGuarded wraps a watcher body with the single-instance lock and a
// signal-cancelled context.
func runGuarded(ws *config.Workspace, name string, body func(ctx context.Context) error) error {
	guard, err := lockfile.Acquire(ws.WatcherGuardDir(), name)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			if info, readErr := lockfile.ReadLockInfo(ws.WatcherGuardDir(), name); readErr == nil {
				return fmt.Errorf("%s watcher already running (pid %d)", name, info.PID)
			}
		}
		return err
	}
	defer func() { _ = guard.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = body(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runScheduler(ws *config.Workspace, ctx context.Context) error {
	watcher := schedule.NewWatcher(openSchedules(ws), openQueue(ws), ws.Cfg.SchedulerPollEvery)
	return watcher.Run(ctx)
}

func runCycle(ws *config.Workspace, ctx context.Context) error {
	return openCycleEngine(ws).Run(ctx)
}

func runVerbatim(ws *config.Workspace, ctx context.Context) error {
	archiver := verbatim.NewArchiver(ws.ChatHistoryDir(), ws.TempChatTurnFile(),
		ws.VerbatimStateFile(), ws.Cfg.VerbatimPairsPerBlock)
	watcher := verbatim.NewWatcher(archiver, ws.VerbatimStateFile())
	watcher.SetPollInterval(ws.Cfg.VerbatimPollEvery)
	return watcher.Run(ctx)
}

var watchSchedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Move due schedules onto the job queue",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		debug.PrintNormal("%s scheduler watcher started\n", ui.RenderOK(ui.IconOK))
		if err := runGuarded(ws, "scheduler", func(ctx context.Context) error {
			return runScheduler(ws, ctx)
		}); err != nil {
			FatalError("%v", err)
		}
	},
}

var watchCycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Step the active cycle whenever the consumer is idle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		debug.PrintNormal("%s cycle watcher started\n", ui.RenderOK(ui.IconOK))
		if err := runGuarded(ws, "cycle", func(ctx context.Context) error {
			return runCycle(ws, ctx)
		}); err != nil {
			FatalError("%v", err)
		}
	},
}

var watchVerbatimCmd = &cobra.Command{
	Use:   "verbatim",
	Short: "Archive raw chat turns into the session hierarchy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		debug.PrintNormal("%s verbatim watcher started\n", ui.RenderOK(ui.IconOK))
		if err := runGuarded(ws, "verbatim", func(ctx context.Context) error {
			return runVerbatim(ws, ctx)
		}); err != nil {
			FatalError("%v", err)
		}
	},
}

var watchAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every watcher in one process",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		debug.PrintNormal("%s starting all watchers\n", ui.RenderOK(ui.IconOK))

		bodies := map[string]func(context.Context) error{
			"scheduler": func(ctx context.Context) error { return runScheduler(ws, ctx) },
			"cycle":     func(ctx context.Context) error { return runCycle(ws, ctx) },
			"verbatim":  func(ctx context.Context) error { return runVerbatim(ws, ctx) },
		}

		g := new(errgroup.Group)
		for name, body := range bodies {
			g.Go(func() error {
				if err := runGuarded(ws, name, body); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	watchCmd.AddCommand(watchSchedulerCmd, watchCycleCmd, watchVerbatimCmd, watchAllCmd)
	rootCmd.AddCommand(watchCmd)
}
