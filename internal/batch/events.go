// Package batch runs the optimization engine across many files with a
// bounded worker pool.
package batch

import (
	"time"

	"factorytune/pkg/models"
)

// EventType represents the type of batch event.
type EventType string

const (
	// EventFileQueued indicates a file was accepted into the run.
	EventFileQueued EventType = "file_queued"
	// EventFileStarted indicates a worker began optimizing a file.
	EventFileStarted EventType = "file_started"
	// EventFileFinished indicates a file's run completed, whatever the status.
	EventFileFinished EventType = "file_finished"
	// EventRunDone indicates the entire batch is complete.
	EventRunDone EventType = "run_done"
)

// Event is emitted as the batch progresses. These events drive the TUI
// and the headless printer.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Path is the file the event concerns, empty for run-level events.
	Path string
	// Report carries the file's result for EventFileFinished.
	Report *models.Report
	// Err carries the per-file run error for EventFileFinished, if any.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
