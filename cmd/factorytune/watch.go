package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"factorytune/internal/batch"
	"factorytune/internal/engine"
	"factorytune/internal/history"
	"factorytune/internal/tui"
	"factorytune/internal/watch"
)

var watchDryRun bool

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Optimize spec files as they are regenerated",
	Long: `Watch a directory tree and optimize spec files as they change.

Files are picked up after they stop changing for the configured settle
interval, so generators that write in several bursts trigger one run,
not many. Each settled file runs through the same classify, rewrite and
verify pipeline as 'factorytune optimize'.

The directory argument is optional and defaults to the current
directory. Filesystem notifications are used when available, with a
polling fallback otherwise.

Examples:
  factorytune watch              # Watch the current directory
  factorytune watch spec/        # Watch one tree
  factorytune watch --dry-run    # Report decisions without touching files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "Report rewrite decisions without touching files")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if !watchDryRun {
		if err := CheckOracle(cfg); err != nil {
			return err
		}
	}

	w, err := watch.New(dir, watch.Config{Settle: cfg.Watch.Settle, Poll: cfg.Watch.Poll})
	if err != nil {
		return err
	}
	defer w.Close()

	eng := buildEngine(cfg)
	defer eng.Close()

	var hist *history.Store
	if cfg.History.Enabled && !watchDryRun {
		hist, err = history.OpenProject(".")
		if err != nil {
			fmt.Printf("Warning: history store unavailable: %v\n", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	fmt.Printf("Watching %s (%s mode, settle %s)\n", w.Root(), w.Mode(), cfg.Watch.Settle)
	fmt.Println("Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Watch stopped.")
			return nil
		case path := <-w.Settled():
			optimizeSettledFile(ctx, eng, hist, path)
		}
	}
}

// optimizeSettledFile runs one settled file through the engine and prints
// its result line. Watch runs are sequential; a generator rewriting many
// files settles them one at a time anyway.
func optimizeSettledFile(ctx context.Context, eng *engine.Engine, hist *history.Store, path string) {
	runnerCfg := batch.Config{Workers: 1, DryRun: watchDryRun}
	if hist != nil {
		runnerCfg.History = hist
	}
	runner := batch.NewRunner(eng, runnerCfg)

	printer := tui.NewHeadless(os.Stdout, watchDryRun)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for event := range runner.Events() {
			// Single-file runs don't need the summary line, only warnings.
			if event.Type == batch.EventRunDone && event.Err == nil {
				continue
			}
			printer.HandleEvent(event)
		}
	}()

	if _, err := runner.Run(ctx, []string{path}); err != nil && ctx.Err() == nil {
		fmt.Printf("Warning: %s: %v\n", path, err)
	}
	<-consumed
}
