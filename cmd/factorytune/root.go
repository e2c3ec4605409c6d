package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"factorytune/internal/config"
	"factorytune/internal/oracle"
)

var (
	rootConfigPath string
	rootDebug      bool
)

// CheckOracle verifies that the configured verification command can be
// invoked. Returns an error with configuration instructions if not.
func CheckOracle(cfg *config.Config) error {
	spec := oracle.Spec{
		Command: cfg.Oracle.Command,
		Timeout: cfg.Oracle.Timeout,
		WorkDir: cfg.Oracle.WorkDir,
	}
	if err := oracle.NewExecRunner().Check(spec); err != nil {
		return fmt.Errorf("%v\n\n"+
			"factorytune runs your test suite to verify every rewrite.\n\n"+
			"Set the command in .factorytune.yaml:\n"+
			"  oracle:\n"+
			"    command: \"bundle exec rspec {file}\"\n\n"+
			"or via the FACTORYTUNE_ORACLE_COMMAND environment variable.", err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "factorytune",
	Short: "Test-construction optimizer for generated RSpec suites",
	Long: `Factorytune rewrites factory call sites in generated RSpec files to
cheaper construction variants and verifies every change by running the
tests themselves.

Construction variants, cheapest first:
  transient      build(...)            no database row
  stub_persisted build_stubbed(...)    fake persistence, no row
  persisted      create(...)           real database row

Only call sites whose file and code demand nothing more are downgraded.
Files whose tests fail after rewriting are restored byte-for-byte.

Core capabilities:
- Classifies files by test granularity (unit, integration, request, end_to_end)
- Detects persistence requirements per call site
- Applies rewrites transactionally with full-file verification
- Records run history and pristine baselines per project`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Config file path (skips the search paths)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Write a debug log to .factorytune/logs/")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if rootConfigPath != "" {
		cfg, err = config.LoadFromPath(rootConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
