package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"factorytune/internal/history"
	"factorytune/internal/rewrite"
)

var (
	cleanupForce   bool
	cleanupVerbose bool
	cleanupDryRun  bool
	cleanupHistory bool
	cleanupMaxAge  time.Duration
)

// historyMaxAge is how long recorded runs are kept when --history is set.
const historyMaxAge = 30 * 24 * time.Hour

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale scratch directories and old history",
	Long: `Clean up scratch directories left behind by crashed runs.

Every optimization run stages its rewrites in a scratch directory and
removes it on completion. A run killed mid-verification leaves its
directory behind; this command sweeps them once they are older than
--max-age, so a live run's directory is never touched.

With --history:
  - Deletes runs older than 30 days from the history database

Use this after a crash or interrupted run to reclaim disk space.

Examples:
  factorytune cleanup              # Interactive cleanup with confirmation
  factorytune cleanup --force      # Skip confirmation prompt
  factorytune cleanup --dry-run    # Show what would be removed
  factorytune cleanup -v           # Verbose output showing each removal
  factorytune cleanup --history    # Also purge runs older than 30 days`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each directory as it's removed")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupHistory, "history", false, "Purge history runs older than 30 days")
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 24*time.Hour, "Scratch directories younger than this are kept")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	scratchRoot := cfg.Optimize.ScratchDir

	stale, err := rewrite.ListStale(scratchRoot, cleanupMaxAge)
	if err != nil {
		return fmt.Errorf("list stale scratch directories: %w", err)
	}

	if len(stale) == 0 && !cleanupHistory {
		fmt.Println("No stale scratch directories found.")
		return nil
	}

	if len(stale) > 0 {
		fmt.Printf("Found %d stale scratch director(ies):\n", len(stale))
		for _, path := range stale {
			fmt.Printf("  - %s\n", path)
		}
		fmt.Println()

		if cleanupDryRun {
			fmt.Println("Dry run mode - no directories were removed.")
		} else {
			proceed := cleanupForce
			if !proceed {
				fmt.Print("Remove these directories? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				response, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				response = strings.TrimSpace(strings.ToLower(response))
				proceed = response == "y" || response == "yes"
			}

			if !proceed {
				fmt.Println("Scratch cleanup cancelled.")
			} else {
				var verboseCallback func(path string)
				if cleanupVerbose {
					verboseCallback = func(path string) {
						fmt.Printf("Removed: %s\n", path)
					}
				}

				removed, err := rewrite.CleanupStale(scratchRoot, cleanupMaxAge, verboseCallback)
				if err != nil {
					return fmt.Errorf("cleanup scratch directories: %w", err)
				}
				fmt.Printf("Successfully removed %d scratch director(ies).\n", removed)
			}
		}
	} else {
		fmt.Println("No stale scratch directories found.")
	}

	if cleanupHistory {
		if err := cleanupOldRuns(); err != nil {
			return err
		}
	}

	return nil
}

// cleanupOldRuns purges history runs older than 30 days.
func cleanupOldRuns() error {
	dbPath := history.DBPath(".")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history database found - no runs to purge.")
		return nil
	}

	store, err := history.OpenProject(".")
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if cleanupDryRun {
		count, err := store.CountOlderThan(ctx, historyMaxAge)
		if err != nil {
			return fmt.Errorf("count old runs: %w", err)
		}
		fmt.Printf("Dry run: would purge %d run(s) older than 30 days.\n", count)
		return nil
	}

	purged, err := store.Purge(ctx, historyMaxAge)
	if err != nil {
		return fmt.Errorf("purge old runs: %w", err)
	}

	if purged > 0 {
		fmt.Printf("Purged %d run(s) older than 30 days.\n", purged)
	} else {
		fmt.Println("No runs older than 30 days found.")
	}

	return nil
}
