package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"factorytune/internal/history"
	"factorytune/internal/report"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past optimization runs",
	Long: `Show optimization runs recorded in the project history.

Without flags, lists the most recent runs with their per-status counts.
Use --run with a run ID from the listing to see that run's per-file
results, including the notes a reverted or failed file carried.

Examples:
  factorytune history              # List the last 10 runs
  factorytune history --limit 50   # List more
  factorytune history --run 1a2b3c4d`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show per-file results for one run ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath := history.DBPath(".")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history yet.")
		fmt.Println("Runs are recorded once 'factorytune optimize' completes.")
		return nil
	}

	store, err := history.OpenProject(".")
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if historyRunID != "" {
		return showRunResults(ctx, store, historyRunID)
	}
	return listRuns(ctx, store, historyLimit)
}

func listRuns(ctx context.Context, store *history.Store, limit int) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	fmt.Printf("%-10s %-20s %6s %6s %6s %6s %6s %10s\n",
		"RUN", "STARTED", "FILES", "OPT", "CLEAN", "REV", "ERR", "WALL")
	for _, run := range runs {
		fmt.Printf("%-10s %-20s %6d %6d %6d %6d %6d %10s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Files, run.Optimized, run.Clean, run.Reverted, run.Errors,
			run.Wall.Round(time.Millisecond))
	}
	return nil
}

func showRunResults(ctx context.Context, store *history.Store, runID string) error {
	results, err := store.ResultsForRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(results) == 0 {
		fmt.Printf("No results recorded for run %s.\n", runID)
		return nil
	}

	fmt.Printf("Run %s: %d file(s)\n\n", runID, len(results))
	for _, res := range results {
		fmt.Printf("%s %s: %d sites, %d rewrites, %d applied (%s, %s)\n",
			report.StatusIcon(res.Status), res.Path,
			res.Sites, res.Rewrites, res.Applied,
			res.Granularity, res.Duration.Round(time.Millisecond))
		if res.Notes != "" {
			for _, note := range strings.Split(res.Notes, "\n") {
				fmt.Printf("   note: %s\n", note)
			}
		}
	}
	return nil
}
