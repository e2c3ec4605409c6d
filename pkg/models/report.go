package models

import "time"

// Status is the per-file outcome of an optimization run.
type Status string

const (
	// StatusClean means no rewrite was needed; the file was left untouched.
	StatusClean Status = "clean"
	// StatusOptimized means rewrites were applied and verification passed.
	StatusOptimized Status = "optimized"
	// StatusReverted means rewrites failed verification and were rolled back.
	StatusReverted Status = "reverted"
	// StatusError means the run could not complete for this file. The
	// caller must not treat the file's result as usable.
	StatusError Status = "error"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusClean, StatusOptimized, StatusReverted, StatusError:
		return true
	default:
		return false
	}
}

// Report is the full account of one optimization run over one file.
// It always carries exactly one decision per extracted call site, in
// document order, whatever the final status.
type Report struct {
	// Path is the file the run operated on.
	Path string `json:"path"`
	// RunID identifies the run that produced this report.
	RunID string `json:"run_id,omitempty"`
	// Granularity is the resolved test granularity.
	Granularity Granularity `json:"granularity"`
	// GranularitySource records how the granularity was determined.
	GranularitySource GranularitySource `json:"granularity_source"`
	// Status is the per-file outcome.
	Status Status `json:"status"`
	// Decisions holds one entry per extracted call site, in document order.
	Decisions []Decision `json:"decisions"`
	// VerificationAttempted is true iff the oracle was actually invoked.
	VerificationAttempted bool `json:"verification_attempted"`
	// Notes carries warnings and context: defaulted granularity, parse
	// errors, oracle output on failure.
	Notes []string `json:"notes,omitempty"`
	// Duration is the wall time of the run for this file.
	Duration time.Duration `json:"duration"`
}

// Rewrites returns the number of non-no-op decisions.
func (r *Report) Rewrites() int {
	n := 0
	for _, d := range r.Decisions {
		if !d.NoOp() {
			n++
		}
	}
	return n
}

// AppliedRewrites returns the number of decisions committed to disk.
func (r *Report) AppliedRewrites() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Applied {
			n++
		}
	}
	return n
}
