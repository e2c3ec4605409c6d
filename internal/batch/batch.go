package batch

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"factorytune/internal/engine"
	"factorytune/pkg/models"
)

// eventBuffer sizes the events channel. Workers never block on a slow
// consumer; overflow is dropped and counted instead.
const eventBuffer = 256

// FileOptimizer is the per-file engine surface the batch needs. The real
// engine satisfies it; tests substitute fakes. Implementations must return
// a non-nil Outcome with a complete Report even alongside an error.
type FileOptimizer interface {
	Optimize(ctx context.Context, in engine.Input) (*engine.Outcome, error)
	Analyze(ctx context.Context, in engine.Input) (*engine.Outcome, error)
}

var _ FileOptimizer = (*engine.Engine)(nil)

// BaselineSource supplies pristine-run knowledge recorded before any
// optimization: which files already fail, and how long a green run takes.
type BaselineSource interface {
	// Red reports whether the file's pristine run already fails.
	Red(path string) bool
	// TimeoutFor returns the derived oracle timeout for a file, if known.
	TimeoutFor(path string) (time.Duration, bool)
}

// HistoryRecorder journals completed runs.
type HistoryRecorder interface {
	Record(ctx context.Context, runID string, reports []models.Report, wallTime time.Duration) error
}

// Config contains the batch runner's parameters.
type Config struct {
	// Workers bounds concurrent file runs. Values below 1 mean 1.
	Workers int
	// DryRun routes files through Analyze instead of Optimize.
	DryRun bool
	// Granularity, when set, pins the granularity for every file in the
	// batch, skipping per-file resolution.
	Granularity models.Granularity
	// Baseline, when set, is consulted before each file run.
	Baseline BaselineSource
	// History, when set, records the completed run.
	History HistoryRecorder
}

// Runner drives one batch over a list of files. A Runner is good for a
// single Run call.
type Runner struct {
	optimizer FileOptimizer
	cfg       Config
	runID     string
	events    chan Event
	dropped   uint64
}

// NewRunner creates a batch runner around a file optimizer.
func NewRunner(optimizer FileOptimizer, cfg Config) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		optimizer: optimizer,
		cfg:       cfg,
		runID:     uuid.New().String()[:8],
		events:    make(chan Event, eventBuffer),
	}
}

// RunID identifies this batch in events, history and logs.
func (r *Runner) RunID() string {
	return r.runID
}

// Events returns the channel carrying progress events. It is closed when
// Run returns.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// DroppedEventCount returns the number of events dropped because the
// events channel was full.
func (r *Runner) DroppedEventCount() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

// Run optimizes every file and returns one report per file, in input
// order. Per-file failures are report content, never a batch failure; the
// returned error reflects only batch-level problems such as cancellation.
func (r *Runner) Run(ctx context.Context, files []string) ([]models.Report, error) {
	started := time.Now()
	reports := make([]models.Report, len(files))

	for _, path := range files {
		r.emit(Event{Type: EventFileQueued, Path: path})
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			r.emit(Event{Type: EventFileStarted, Path: path})
			rep, err := r.runFile(ctx, path)
			reports[i] = rep
			r.emit(Event{Type: EventFileFinished, Path: path, Report: &reports[i], Err: err})
			return nil
		})
	}
	_ = g.Wait()

	if r.cfg.History != nil {
		if err := r.cfg.History.Record(ctx, r.runID, reports, time.Since(started)); err != nil {
			// Journaling failures must not fail the run.
			r.emit(Event{Type: EventRunDone, Err: fmt.Errorf("history not recorded: %w", err)})
			close(r.events)
			return reports, ctx.Err()
		}
	}

	r.emit(Event{Type: EventRunDone})
	close(r.events)
	return reports, ctx.Err()
}

// runFile prepares the engine input for one file and runs it. Baseline
// knowledge is consulted first so red files are never optimized and green
// files get a timeout scaled to their pristine duration.
func (r *Runner) runFile(ctx context.Context, path string) (models.Report, error) {
	if err := ctx.Err(); err != nil {
		return models.Report{
			Path:   path,
			RunID:  r.runID,
			Status: models.StatusError,
			Notes:  []string{"run cancelled before start"},
		}, err
	}

	in := engine.Input{Path: path, Granularity: r.cfg.Granularity}
	if r.cfg.Baseline != nil && !r.cfg.DryRun {
		if r.cfg.Baseline.Red(path) {
			return models.Report{
				Path:   path,
				RunID:  r.runID,
				Status: models.StatusError,
				Notes:  []string{"baseline run already fails; optimization skipped"},
			}, nil
		}
		if timeout, ok := r.cfg.Baseline.TimeoutFor(path); ok {
			in.Timeout = timeout
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Report{
			Path:   path,
			RunID:  r.runID,
			Status: models.StatusError,
			Notes:  []string{err.Error()},
		}, fmt.Errorf("read %s: %w", path, err)
	}
	in.Text = string(data)

	var out *engine.Outcome
	if r.cfg.DryRun {
		out, err = r.optimizer.Analyze(ctx, in)
	} else {
		out, err = r.optimizer.Optimize(ctx, in)
	}
	return *out.Report, err
}

// emit sends an event without blocking the workers. Events are dropped,
// and counted, when the consumer falls behind.
func (r *Runner) emit(event Event) {
	event.Timestamp = time.Now()
	select {
	case r.events <- event:
	default:
		atomic.AddUint64(&r.dropped, 1)
	}
}
