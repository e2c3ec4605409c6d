package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"factorytune/internal/baseline"
	"factorytune/internal/batch"
	"factorytune/internal/oracle"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline [show|capture|reset]",
	Short: "Manage pristine-run baselines",
	Long: `Manage baseline runs recorded before any optimization.

A baseline records whether a file's tests pass untouched and how long
they take. Optimization runs started with --baseline-check consult it
two ways:
  - Files whose baseline run already fails are skipped; a red suite
    cannot verify a rewrite.
  - Verification timeouts scale with the pristine duration instead of
    the global default.

Commands:
  factorytune baseline                  # List recorded baselines
  factorytune baseline show             # List recorded baselines
  factorytune baseline capture <paths>  # Run files untouched and record results
  factorytune baseline reset            # Delete the baseline store`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subcommand := "show"
		var rest []string
		if len(args) > 0 {
			subcommand = args[0]
			rest = args[1:]
		}

		switch subcommand {
		case "show":
			return showBaselines()
		case "capture":
			return captureBaselines(rest)
		case "reset":
			return resetBaselines()
		default:
			return fmt.Errorf("unknown subcommand %q: use show, capture, or reset", subcommand)
		}
	},
}

func showBaselines() error {
	dbPath := baseline.DBPath(".")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No baselines captured yet.")
		fmt.Println("Run 'factorytune baseline capture <paths>' to capture one.")
		return nil
	}

	store, err := baseline.OpenProject(".")
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}
	defer store.Close()

	entries, err := store.All()
	if err != nil {
		return fmt.Errorf("list baselines: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No baselines captured yet.")
		fmt.Println("Run 'factorytune baseline capture <paths>' to capture one.")
		return nil
	}

	fmt.Printf("%-50s %-6s %-10s %s\n", "PATH", "RUN", "DURATION", "CAPTURED")
	for _, e := range entries {
		status := "pass"
		if !e.Passed {
			status = "fail"
		}
		fmt.Printf("%-50s %-6s %-10s %s\n",
			e.Path, status,
			e.Duration.Round(time.Millisecond),
			e.RecordedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func captureBaselines(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("capture needs at least one file or directory")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := CheckOracle(cfg); err != nil {
		return err
	}

	files, err := batch.Discover(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no spec files found")
	}

	store, err := baseline.OpenProject(".")
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	spec := oracle.Spec{
		Command: cfg.Oracle.Command,
		Timeout: cfg.Oracle.Timeout,
		WorkDir: cfg.Oracle.WorkDir,
	}
	runner := oracle.NewExecRunner()

	fmt.Printf("Capturing baselines for %d files...\n", len(files))

	pass, fail := 0, 0
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result := runner.Verify(ctx, spec, f)
		if err := store.Capture(f, result.Passed(), result.Duration); err != nil {
			return fmt.Errorf("record baseline for %s: %w", f, err)
		}

		if result.Passed() {
			pass++
			printStatus("✓", fmt.Sprintf("%s (%s)", f, result.Duration.Round(time.Millisecond)), color.FgGreen)
		} else {
			fail++
			printStatus("✗", fmt.Sprintf("%s (%s)", f, result.Status), color.FgRed)
		}
	}

	fmt.Printf("\nRecorded %d baseline(s): %d passing, %d failing.\n", len(files), pass, fail)
	if fail > 0 {
		fmt.Println("Failing files will be skipped by 'optimize --baseline-check'.")
	}
	return nil
}

func resetBaselines() error {
	dbPath := baseline.DBPath(".")
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No baseline store to delete.")
			return nil
		}
		return err
	}
	fmt.Println("Baseline store deleted.")
	return nil
}
