package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"factorytune/internal/detect"
	"factorytune/internal/extract"
	"factorytune/internal/granularity"
	"factorytune/internal/metadata"
	"factorytune/internal/oracle"
	"factorytune/internal/policy"
	"factorytune/internal/rewrite"
	"factorytune/pkg/models"
)

// oracleTailBytes bounds how much oracle output a reverted report carries.
const oracleTailBytes = 2048

// Config contains the engine's construction parameters.
type Config struct {
	// Oracle describes how to run the verification suite.
	Oracle oracle.Spec
	// DefaultGranularity applies when neither the caller, the sidecar nor
	// the file text resolves one. Invalid or empty values fall back to
	// integration, the conservative choice.
	DefaultGranularity models.Granularity
	// ScratchRoot hosts per-run transaction directories. Empty means the
	// system temp dir.
	ScratchRoot string
}

// Input is one file to optimize. Text is authoritative: the engine never
// re-reads the path, and owns the path for the duration of the run.
type Input struct {
	// Path is the file on disk to rewrite and verify.
	Path string
	// Text is the file's current content.
	Text string
	// Granularity, when set, pins the granularity and skips the sidecar
	// and the classifier.
	Granularity models.Granularity
	// Timeout, when set, overrides the configured oracle timeout for this
	// file only.
	Timeout time.Duration
}

// Outcome is the result of one run.
type Outcome struct {
	// Text is the file content after the run: the candidate when committed,
	// the original otherwise.
	Text string
	// Report is the full account of the run, one decision per site.
	Report *models.Report
}

// Engine drives the pipeline: classify, extract, detect, decide, rewrite,
// verify, report.
type Engine struct {
	cfg        Config
	classifier *granularity.Classifier
	detectors  *detect.Set
	runner     oracle.Runner
	logger     *DebugLogger
	newID      func() string
}

// New creates an Engine. Defaults: subprocess oracle runner, built-in
// detector vocabulary, no-op logger, uuid run IDs.
func New(cfg Config, opts ...Option) *Engine {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.runner == nil {
		options.runner = oracle.NewExecRunner()
	}
	if options.detectors == nil {
		options.detectors = detect.DefaultSet(nil)
	}
	if options.logger == nil {
		options.logger = NopLogger()
	}
	if options.newID == nil {
		options.newID = func() string { return uuid.New().String()[:8] }
	}
	setPackageLogger(options.logger)

	return &Engine{
		cfg:        cfg,
		classifier: granularity.New(cfg.DefaultGranularity),
		detectors:  options.detectors,
		runner:     options.runner,
		logger:     options.logger,
		newID:      options.newID,
	}
}

// Optimize runs the full pipeline and commits verified rewrites to disk.
// The report is always complete whatever happens; the error is non-nil
// only when the run could not be meaningfully attempted for this file
// (oracle unavailable, non-text input, transaction failure).
func (e *Engine) Optimize(ctx context.Context, in Input) (*Outcome, error) {
	return e.run(ctx, in, false)
}

// Analyze runs classification, extraction and the decision policy without
// touching disk or invoking the oracle. Proposed rewrites appear in the
// decisions with Applied false.
func (e *Engine) Analyze(ctx context.Context, in Input) (*Outcome, error) {
	return e.run(ctx, in, true)
}

// Close releases the engine's debug log file, if one was attached.
func (e *Engine) Close() error {
	return e.logger.Close()
}

func (e *Engine) run(ctx context.Context, in Input, dryRun bool) (*Outcome, error) {
	started := time.Now()
	rep := &models.Report{
		Path:   in.Path,
		RunID:  e.newID(),
		Status: models.StatusClean,
	}
	out := &Outcome{Text: in.Text, Report: rep}
	defer func() {
		rep.Duration = time.Since(started)
	}()

	resolution := e.resolveGranularity(in, rep)
	rep.Granularity = resolution.Granularity
	rep.GranularitySource = resolution.Source
	rep.Notes = append(rep.Notes, resolution.Notes...)

	sites, err := extract.Scan(in.Text)
	if err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, err.Error())
		return out, err
	}
	e.logger.Log("%s: run %s, granularity %s (%s), %d sites",
		in.Path, rep.RunID, rep.Granularity, rep.GranularitySource, len(sites))

	decisions, notes := e.decide(resolution.Granularity, sites, in.Text)
	rep.Decisions = decisions
	rep.Notes = append(rep.Notes, notes...)

	patches := buildPatches(sites, decisions)
	if len(patches) == 0 {
		return out, nil
	}

	if dryRun {
		rep.Notes = append(rep.Notes, fmt.Sprintf("dry run: %d rewrites proposed, none applied", len(patches)))
		return out, nil
	}

	return e.applyAndVerify(ctx, in, out, patches)
}

// resolveGranularity picks the explicit granularity from the input or the
// generator sidecar, then lets the classifier settle it against the text.
func (e *Engine) resolveGranularity(in Input, rep *models.Report) granularity.Resolution {
	explicit := in.Granularity
	if explicit == "" && in.Path != "" {
		sidecar, err := metadata.Load(in.Path)
		if err != nil {
			rep.Notes = append(rep.Notes, fmt.Sprintf("metadata sidecar ignored: %v", err))
		} else if sidecar != nil && sidecar.Granularity != "" {
			explicit = models.Granularity(sidecar.Granularity)
		}
	}
	return e.classifier.Resolve(in.Text, explicit)
}

// decide evaluates detectors and the policy for every site. Unparseable
// sites skip detection; the policy leaves them untouched and the parse
// error lands in the notes.
func (e *Engine) decide(g models.Granularity, sites []models.CallSite, text string) ([]models.Decision, []string) {
	decisions := make([]models.Decision, 0, len(sites))
	var notes []string
	for _, site := range sites {
		signal := models.SignalNoEvidence
		var evidence []models.Evidence
		if site.Parsed() {
			signal, evidence = e.detectors.Evaluate(site, text)
		} else {
			notes = append(notes, fmt.Sprintf("%s: %s", site.ID, site.ParseErr))
		}
		decisions = append(decisions, policy.Decide(g, signal, evidence, site))
	}
	return decisions, notes
}

// applyAndVerify is the transactional tail of the pipeline. Oracle
// availability is checked before the file is touched; after SwapIn every
// path either commits or restores the original bytes.
func (e *Engine) applyAndVerify(ctx context.Context, in Input, out *Outcome, patches []rewrite.Patch) (*Outcome, error) {
	rep := out.Report
	spec := e.oracleSpec(in)

	if err := e.runner.Check(spec); err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, err.Error())
		return out, err
	}

	candidate, err := rewrite.Apply(in.Text, patches)
	if err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, err.Error())
		return out, fmt.Errorf("build candidate: %w", err)
	}

	tx, err := rewrite.Begin(e.cfg.ScratchRoot, in.Path, []byte(in.Text), []byte(candidate), rep.RunID)
	if err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, err.Error())
		return out, fmt.Errorf("open transaction: %w", err)
	}
	defer tx.Close()

	if err := tx.SwapIn(); err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, err.Error())
		return out, fmt.Errorf("swap in candidate: %w", err)
	}

	rep.VerificationAttempted = true
	e.logger.Log("%s: verifying %d rewrites (timeout %s)", in.Path, len(patches), spec.Timeout)
	result := e.runner.Verify(ctx, spec, in.Path)

	if result.Passed() {
		if err := tx.Commit(); err != nil {
			// The candidate is verified and already on disk; only the
			// scratch sweep failed.
			rep.Notes = append(rep.Notes, fmt.Sprintf("scratch cleanup failed: %v", err))
		}
		for i := range rep.Decisions {
			if !rep.Decisions[i].NoOp() {
				rep.Decisions[i].Applied = true
			}
		}
		out.Text = candidate
		rep.Status = models.StatusOptimized
		e.logger.Log("%s: verification passed in %s, committed", in.Path, result.Duration.Round(time.Millisecond))
		return out, nil
	}

	if err := tx.Rollback(); err != nil {
		rep.Status = models.StatusError
		rep.Notes = append(rep.Notes, fmt.Sprintf("rollback failed: %v", err))
		return out, fmt.Errorf("rollback: %w", err)
	}
	rep.Status = models.StatusReverted
	rep.Notes = append(rep.Notes, verificationNote(result))
	if tail := oracle.Tail(result.Output, oracleTailBytes); tail != "" {
		rep.Notes = append(rep.Notes, "oracle output:\n"+tail)
	}
	e.logger.Log("%s: verification %s, rolled back", in.Path, result.Status)
	return out, nil
}

// oracleSpec resolves the effective spec for one input, including the
// per-file timeout override.
func (e *Engine) oracleSpec(in Input) oracle.Spec {
	spec := e.cfg.Oracle
	if in.Timeout > 0 {
		spec.Timeout = in.Timeout
	}
	if spec.Timeout <= 0 {
		spec.Timeout = oracle.DefaultTimeout
	}
	return spec
}

// buildPatches pairs each non-no-op decision with its site's span. Sites
// and decisions are index-aligned, both in document order.
func buildPatches(sites []models.CallSite, decisions []models.Decision) []rewrite.Patch {
	var patches []rewrite.Patch
	for i, d := range decisions {
		if d.NoOp() {
			continue
		}
		site := sites[i]
		replacement := rewrite.Render(site, d.To)
		debugLog("%s: %s %s -> %q", site.ID, site.SchemaName, site.Span, replacement)
		patches = append(patches, rewrite.Patch{Span: site.Span, Replacement: replacement})
	}
	return patches
}

func verificationNote(result *oracle.Result) string {
	if result.Status == oracle.StatusTimeout {
		return fmt.Sprintf("verification timed out after %s", result.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("verification failed after %s", result.Duration.Round(time.Millisecond))
}
