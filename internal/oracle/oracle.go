// Package oracle runs the project's test command as the final authority on
// whether a rewritten file still passes. The engine trusts nothing else: a
// rewrite only survives if the oracle says the file is green.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// DefaultTimeout bounds a verification run when Spec.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// ErrUnavailable means the oracle cannot even be invoked. Callers must not
// attempt any rewrite when they see this.
var ErrUnavailable = errors.New("verification oracle unavailable")

// Status classifies one verification run.
type Status int

const (
	// StatusPass means the suite ran and exited zero.
	StatusPass Status = iota
	// StatusFail means the suite ran and reported failure.
	StatusFail
	// StatusTimeout means the suite exceeded its time budget.
	StatusTimeout
	// StatusUnavailable means the suite could not be invoked at all.
	StatusUnavailable
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFail:
		return "fail"
	case StatusTimeout:
		return "timeout"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Spec describes how to invoke the suite for one file.
type Spec struct {
	// Command is a shell-quoted template. Every {file} token expands to the
	// file under test; without a placeholder the path is appended.
	Command string
	// Timeout bounds the run. Zero means DefaultTimeout.
	Timeout time.Duration
	// WorkDir is the directory to run in. Empty means inherit.
	WorkDir string
}

// Result is the outcome of one verification run.
type Result struct {
	Status   Status
	Output   string
	Duration time.Duration
	Err      error
}

// Passed reports whether the run proves the file green.
func (r *Result) Passed() bool {
	return r.Status == StatusPass
}

// Runner invokes the verification oracle. The engine talks to this
// interface so tests can substitute a fake suite.
type Runner interface {
	// Check verifies the oracle can be invoked at all. It must be called
	// before any file is touched.
	Check(spec Spec) error
	// Verify runs the suite against one file under spec.Timeout.
	Verify(ctx context.Context, spec Spec, file string) *Result
}

// ExecRunner runs the oracle as a subprocess.
type ExecRunner struct{}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates the subprocess-backed runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Check parses the command template and resolves its executable.
func (r *ExecRunner) Check(spec Spec) error {
	if strings.TrimSpace(spec.Command) == "" {
		return fmt.Errorf("%w: no command configured", ErrUnavailable)
	}
	words, err := argv(spec.Command, "probe")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := exec.LookPath(words[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Verify runs the suite against one file. Timeouts and non-zero exits are
// failed verifications; so are start-up failures after Check passed, since
// by then the file has already been swapped in and must be rolled back.
func (r *ExecRunner) Verify(ctx context.Context, spec Spec, file string) *Result {
	result := &Result{}

	words, err := argv(spec.Command, file)
	if err != nil {
		result.Status = StatusUnavailable
		result.Err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		return result
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, words[0], words[1:]...)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result.Duration = time.Since(start)
	result.Output = string(output)

	if runCtx.Err() == context.DeadlineExceeded {
		result.Status = StatusTimeout
		result.Err = fmt.Errorf("oracle timed out after %s", timeout)
		return result
	}
	if err != nil {
		result.Status = StatusFail
		result.Err = err
		return result
	}
	result.Status = StatusPass
	return result
}

// argv splits the command template and expands the {file} placeholder.
// Splitting first keeps paths with spaces intact inside a single token.
func argv(command, file string) ([]string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing oracle command: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("oracle command is empty")
	}
	expanded := false
	for i, w := range words {
		if strings.Contains(w, "{file}") {
			words[i] = strings.ReplaceAll(w, "{file}", file)
			expanded = true
		}
	}
	if !expanded {
		words = append(words, file)
	}
	return words, nil
}

// Tail returns the last n bytes of output, for report notes that should
// carry the interesting end of a long run.
func Tail(output string, n int) string {
	if len(output) <= n {
		return output
	}
	return "..." + output[len(output)-n:]
}
