package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"factorytune/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify factorytune configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/factorytune/config.yaml
Project-specific overrides can be placed in .factorytune.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values with their sources.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("# user config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("# project config: %s\n", project)
	}
	fmt.Printf("oracle.command: %s\n", cfg.Oracle.Command)
	fmt.Printf("oracle.timeout: %s\n", cfg.Oracle.Timeout)
	fmt.Printf("oracle.workdir: %s\n", displayString(cfg.Oracle.WorkDir))
	fmt.Printf("optimize.default_granularity: %s\n", cfg.Optimize.DefaultGranularity)
	fmt.Printf("optimize.workers: %d\n", cfg.Optimize.Workers)
	fmt.Printf("optimize.scratch_dir: %s\n", displayString(cfg.Optimize.ScratchDir))
	fmt.Printf("optimize.baseline_check: %t\n", cfg.Optimize.BaselineCheck)
	fmt.Printf("detectors.rules_file: %s\n", displayString(cfg.Detectors.RulesFile))
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("watch.settle: %s\n", cfg.Watch.Settle)
	fmt.Printf("watch.poll: %s\n", cfg.Watch.Poll)
}

// displayString renders empty optional values readably.
func displayString(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "oracle.command":
		return cfg.Oracle.Command, nil
	case "oracle.timeout":
		return cfg.Oracle.Timeout.String(), nil
	case "oracle.workdir":
		return displayString(cfg.Oracle.WorkDir), nil
	case "optimize.default_granularity":
		return cfg.Optimize.DefaultGranularity, nil
	case "optimize.workers":
		return strconv.Itoa(cfg.Optimize.Workers), nil
	case "optimize.scratch_dir":
		return displayString(cfg.Optimize.ScratchDir), nil
	case "optimize.baseline_check":
		return strconv.FormatBool(cfg.Optimize.BaselineCheck), nil
	case "detectors.rules_file":
		return displayString(cfg.Detectors.RulesFile), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "watch.settle":
		return cfg.Watch.Settle.String(), nil
	case "watch.poll":
		return cfg.Watch.Poll.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "oracle.command":
		cfg.Oracle.Command = value
	case "oracle.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for oracle.timeout: %w", err)
		}
		cfg.Oracle.Timeout = d
	case "oracle.workdir":
		cfg.Oracle.WorkDir = value
	case "optimize.default_granularity":
		cfg.Optimize.DefaultGranularity = value
	case "optimize.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for optimize.workers: %w", err)
		}
		cfg.Optimize.Workers = n
	case "optimize.scratch_dir":
		cfg.Optimize.ScratchDir = value
	case "optimize.baseline_check":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for optimize.baseline_check: %w", err)
		}
		cfg.Optimize.BaselineCheck = b
	case "detectors.rules_file":
		cfg.Detectors.RulesFile = value
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "watch.settle":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for watch.settle: %w", err)
		}
		cfg.Watch.Settle = d
	case "watch.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for watch.poll: %w", err)
		}
		cfg.Watch.Poll = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
