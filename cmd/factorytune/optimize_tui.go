package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"factorytune/internal/batch"
	"factorytune/internal/tui"
	"factorytune/pkg/models"
)

// useTUI reports whether the interactive TUI should drive this run.
// Headless and JSON output force the line printer, as does a
// non-terminal stdout.
func useTUI() bool {
	if optimizeHeadless || optimizeJSON {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// runWithTUI drives a batch behind the interactive TUI.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, runner *batch.Runner, files []string) (reports []models.Report, retErr error) {
	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runWithTUI: %v", r)
		}
	}()

	program, app := tui.NewOptimizeProgram()
	if program == nil {
		return nil, fmt.Errorf("failed to create TUI program (nil)")
	}

	// Start event forwarding goroutine
	go forwardEventsToTUI(program, runner.Events())

	// Start the batch in background
	batchDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				batchDone <- fmt.Errorf("PANIC in batch: %v", r)
			}
		}()
		var err error
		reports, err = runner.Run(ctx, files)
		batchDone <- err
	}()

	// Block until the user quits the TUI: after the run-done frame, or
	// earlier to abandon the batch.
	_, tuiErr := program.Run()

	if !app.Done() {
		// Quit mid-run. Stop the workers and collect what finished.
		cancel()
	}
	runErr := <-batchDone

	if tuiErr != nil {
		return reports, tuiErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return reports, runErr
	}
	return reports, nil
}

// runHeadlessMode drives a batch while printing one line per finished
// file. JSON mode moves progress lines to stderr so stdout stays a
// clean JSON document.
func runHeadlessMode(ctx context.Context, runner *batch.Runner, files []string) ([]models.Report, error) {
	out := io.Writer(os.Stdout)
	if optimizeJSON {
		out = os.Stderr
	}
	printer := tui.NewHeadless(out, optimizeDryRun)

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for event := range runner.Events() {
			printer.HandleEvent(event)
		}
	}()

	fmt.Fprintf(out, "Optimizing %d files (run %s)\n", len(files), runner.RunID())

	reports, err := runner.Run(ctx, files)
	<-consumed

	if dropped := runner.DroppedEventCount(); dropped > 0 {
		fmt.Fprintf(out, "Warning: %d progress events dropped\n", dropped)
	}
	return reports, err
}

// forwardEventsToTUI pushes batch events into the TUI message loop.
func forwardEventsToTUI(program *tea.Program, events <-chan batch.Event) {
	for event := range events {
		program.Send(event)
	}
}
