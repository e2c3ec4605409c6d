package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"factorytune/internal/baseline"
	"factorytune/internal/batch"
	"factorytune/internal/config"
	"factorytune/internal/detect"
	"factorytune/internal/engine"
	"factorytune/internal/history"
	"factorytune/internal/oracle"
	"factorytune/internal/report"
	"factorytune/pkg/models"
)

var (
	optimizeGranularity   string
	optimizeDryRun        bool
	optimizeHeadless      bool
	optimizeJSON          bool
	optimizeWorkers       int
	optimizeOracleCmd     string
	optimizeOracleTimeout time.Duration
	optimizeScratchDir    string
	optimizeBaseline      bool
	optimizeRulesFile     string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <path>...",
	Short: "Rewrite factory call sites to cheaper construction variants",
	Long: `Optimize factory construction in generated RSpec files.

Each file is classified by granularity, scanned for factory call sites,
and analyzed for persistence requirements. Call sites that never need a
database row are rewritten to cheaper variants:

  create(...) -> build_stubbed(...) -> build(...)

Every rewritten file is verified by running its tests. Files whose tests
fail after rewriting are restored byte-for-byte; a run never leaves a
file in a worse state than it found it.

Granularity resolution order (first match wins):
  1. --granularity flag
  2. generator sidecar (<file>.meta.yaml)
  3. RSpec metadata in the file (type: :model, type: :request, ...)
  4. configured default

Only unit-granularity files are downgraded. Integration, request and
end_to_end files keep persisted construction untouched.

Examples:
  factorytune optimize spec/                    # Optimize a whole tree
  factorytune optimize spec/models/user_spec.rb # Optimize one file
  factorytune optimize spec/ --dry-run          # Report without touching files
  factorytune optimize spec/ --json > report.json
  factorytune optimize spec/ --granularity unit # Pin granularity for all files`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeGranularity, "granularity", "", "Pin granularity for all files: unit, integration, request, or end_to_end")
	optimizeCmd.Flags().BoolVar(&optimizeDryRun, "dry-run", false, "Report rewrite decisions without touching files")
	optimizeCmd.Flags().BoolVar(&optimizeHeadless, "headless", false, "Print progress lines instead of the TUI")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "Write the full report as JSON to stdout")
	optimizeCmd.Flags().IntVar(&optimizeWorkers, "workers", 0, "Concurrent file runs (0 uses the configured value)")
	optimizeCmd.Flags().StringVar(&optimizeOracleCmd, "oracle-cmd", "", "Verification command template; {file} expands to the file under test")
	optimizeCmd.Flags().DurationVar(&optimizeOracleTimeout, "oracle-timeout", 0, "Verification timeout per file (0 uses the configured value)")
	optimizeCmd.Flags().StringVar(&optimizeScratchDir, "scratch-dir", "", "Directory for rewrite transactions (default system temp)")
	optimizeCmd.Flags().BoolVar(&optimizeBaseline, "baseline-check", false, "Skip files whose recorded baseline run already fails")
	optimizeCmd.Flags().StringVar(&optimizeRulesFile, "rules", "", "Extra detector rules file (YAML)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOptimizeFlags(cmd, cfg)

	if optimizeGranularity != "" && !models.Granularity(optimizeGranularity).Valid() {
		return fmt.Errorf("invalid granularity %q: must be unit, integration, request, or end_to_end", optimizeGranularity)
	}

	files, err := batch.Discover(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no spec files found under %s", strings.Join(args, ", "))
	}

	// Fail fast when the suite command cannot run at all. Dry runs never
	// verify, so they work without one.
	if !optimizeDryRun {
		if err := CheckOracle(cfg); err != nil {
			return err
		}
	}

	eng := buildEngine(cfg)
	defer eng.Close()

	runnerCfg := batch.Config{
		Workers:     cfg.Optimize.Workers,
		DryRun:      optimizeDryRun,
		Granularity: models.Granularity(optimizeGranularity),
	}

	if optimizeBaseline || cfg.Optimize.BaselineCheck {
		store, err := baseline.OpenProject(".")
		if err != nil {
			fmt.Printf("Warning: baseline store unavailable: %v\n", err)
		} else {
			defer store.Close()
			runnerCfg.Baseline = store
		}
	}

	if cfg.History.Enabled && !optimizeDryRun {
		store, err := history.OpenProject(".")
		if err != nil {
			fmt.Printf("Warning: history store unavailable: %v\n", err)
		} else {
			defer store.Close()
			runnerCfg.History = store
		}
	}

	runner := batch.NewRunner(eng, runnerCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	var reports []models.Report
	if useTUI() {
		reports, err = runWithTUI(ctx, cancel, runner, files)
	} else {
		reports, err = runHeadlessMode(ctx, runner, files)
	}
	if err != nil {
		cmd.SilenceUsage = true
		return err
	}

	if ctx.Err() != nil {
		// Cancelled mid-run; the final frame already said so.
		return nil
	}

	if optimizeJSON {
		if err := report.WriteJSON(os.Stdout, reports); err != nil {
			return err
		}
	}

	summary := report.Summarize(reports)
	if summary.Failed() {
		cmd.SilenceUsage = true
		return fmt.Errorf("%d of %d files ended in error", summary.Errors, summary.Files)
	}
	return nil
}

// applyOptimizeFlags folds command-line overrides into the loaded config.
func applyOptimizeFlags(cmd *cobra.Command, cfg *config.Config) {
	if optimizeOracleCmd != "" {
		cfg.Oracle.Command = optimizeOracleCmd
	}
	if cmd.Flags().Changed("oracle-timeout") && optimizeOracleTimeout > 0 {
		cfg.Oracle.Timeout = optimizeOracleTimeout
	}
	if optimizeWorkers > 0 {
		cfg.Optimize.Workers = optimizeWorkers
	}
	if optimizeScratchDir != "" {
		cfg.Optimize.ScratchDir = optimizeScratchDir
	}
	if optimizeRulesFile != "" {
		cfg.Detectors.RulesFile = optimizeRulesFile
	}
}

// buildEngine assembles the per-file engine from configuration.
func buildEngine(cfg *config.Config) *engine.Engine {
	engCfg := engine.Config{
		Oracle: oracle.Spec{
			Command: cfg.Oracle.Command,
			Timeout: cfg.Oracle.Timeout,
			WorkDir: cfg.Oracle.WorkDir,
		},
		DefaultGranularity: models.Granularity(cfg.Optimize.DefaultGranularity),
		ScratchRoot:        cfg.Optimize.ScratchDir,
	}

	var opts []engine.Option
	if rootDebug {
		opts = append(opts, engine.WithLogger(engine.NewDebugLoggerForDir(".")))
	}
	if cfg.Detectors.RulesFile != "" {
		rules, err := detect.LoadRules(cfg.Detectors.RulesFile)
		if err != nil {
			fmt.Printf("Warning: detector rules not loaded: %v\n", err)
		} else {
			opts = append(opts, engine.WithDetectors(detect.DefaultSet(rules)))
		}
	}

	return engine.New(engCfg, opts...)
}
