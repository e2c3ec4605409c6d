package engine

import (
	"factorytune/internal/detect"
	"factorytune/internal/oracle"
)

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional construction parameters.
type engineOptions struct {
	runner    oracle.Runner
	detectors *detect.Set
	logger    *DebugLogger
	newID     func() string
}

// WithRunner sets the oracle runner (mainly for testing).
func WithRunner(r oracle.Runner) Option {
	return func(o *engineOptions) { o.runner = r }
}

// WithDetectors sets the detector set, replacing the built-in vocabulary.
func WithDetectors(s *detect.Set) Option {
	return func(o *engineOptions) { o.detectors = s }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithIDGenerator sets the run ID generator (mainly for testing).
func WithIDGenerator(fn func() string) Option {
	return func(o *engineOptions) { o.newID = fn }
}
