// Package config handles configuration loading and management for
// factorytune. It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"factorytune/pkg/models"
)

// ProjectConfigName is the project-level config file searched for upward
// from the working directory.
const ProjectConfigName = ".factorytune.yaml"

// Config holds all configuration for factorytune.
type Config struct {
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Optimize  OptimizeConfig  `mapstructure:"optimize"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	History   HistoryConfig   `mapstructure:"history"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// OracleConfig holds verification command settings.
type OracleConfig struct {
	// Command is the shell-quoted suite template. Every {file} token
	// expands to the file under test.
	Command string `mapstructure:"command"`
	// Timeout bounds one verification run.
	Timeout time.Duration `mapstructure:"timeout"`
	// WorkDir is where the suite runs. Empty means the current directory.
	WorkDir string `mapstructure:"workdir"`
}

// OptimizeConfig holds optimization pass settings.
type OptimizeConfig struct {
	// DefaultGranularity applies to files where nothing else resolves one.
	DefaultGranularity string `mapstructure:"default_granularity"`
	// Workers bounds concurrent file runs.
	Workers int `mapstructure:"workers"`
	// ScratchDir hosts transaction directories. Empty means the system
	// temp dir.
	ScratchDir string `mapstructure:"scratch_dir"`
	// BaselineCheck consults the baseline store before each file.
	BaselineCheck bool `mapstructure:"baseline_check"`
}

// DetectorsConfig holds detector vocabulary settings.
type DetectorsConfig struct {
	// RulesFile extends the built-in detector vocabulary.
	RulesFile string `mapstructure:"rules_file"`
}

// HistoryConfig holds run journaling settings.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	// Settle is how long a file must stay quiet before it is enqueued.
	Settle time.Duration `mapstructure:"settle"`
	// Poll is the fallback scan interval when inotify is unavailable.
	Poll time.Duration `mapstructure:"poll"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FACTORYTUNE_*)
// 2. Project config (.factorytune.yaml in current directory or parent)
// 3. User config (~/.config/factorytune/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("oracle.command", "FACTORYTUNE_ORACLE_COMMAND")
	v.BindEnv("oracle.timeout", "FACTORYTUNE_ORACLE_TIMEOUT")
	v.BindEnv("oracle.workdir", "FACTORYTUNE_ORACLE_WORKDIR")
	v.BindEnv("optimize.default_granularity", "FACTORYTUNE_DEFAULT_GRANULARITY")
	v.BindEnv("optimize.workers", "FACTORYTUNE_WORKERS")
	v.BindEnv("optimize.scratch_dir", "FACTORYTUNE_SCRATCH_DIR")
	v.BindEnv("detectors.rules_file", "FACTORYTUNE_RULES_FILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Oracle.Command = expandEnv(cfg.Oracle.Command)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, skipping the
// search paths. Used by the --config flag and tests.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Oracle.Command = expandEnv(cfg.Oracle.Command)

	return cfg, nil
}

// Validate clamps nonsensical values and rejects unusable ones.
func (c *Config) Validate() error {
	if c.Optimize.Workers < 1 {
		c.Optimize.Workers = 1
	}
	if c.Oracle.Timeout <= 0 {
		c.Oracle.Timeout = 5 * time.Minute
	}
	if c.Watch.Settle <= 0 {
		c.Watch.Settle = 500 * time.Millisecond
	}
	if c.Watch.Poll <= 0 {
		c.Watch.Poll = 2 * time.Second
	}
	if !models.Granularity(c.Optimize.DefaultGranularity).Valid() {
		c.Optimize.DefaultGranularity = string(models.GranularityIntegration)
	}
	if strings.TrimSpace(c.Oracle.Command) == "" {
		return fmt.Errorf("oracle.command must not be empty")
	}
	return nil
}

// Save writes configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("oracle.command", cfg.Oracle.Command)
	v.Set("oracle.timeout", cfg.Oracle.Timeout.String())
	v.Set("oracle.workdir", cfg.Oracle.WorkDir)
	v.Set("optimize.default_granularity", cfg.Optimize.DefaultGranularity)
	v.Set("optimize.workers", cfg.Optimize.Workers)
	v.Set("optimize.scratch_dir", cfg.Optimize.ScratchDir)
	v.Set("optimize.baseline_check", cfg.Optimize.BaselineCheck)
	v.Set("detectors.rules_file", cfg.Detectors.RulesFile)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("watch.settle", cfg.Watch.Settle.String())
	v.Set("watch.poll", cfg.Watch.Poll.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Oracle defaults
	v.SetDefault("oracle.command", "bundle exec rspec {file}")
	v.SetDefault("oracle.timeout", "5m")
	v.SetDefault("oracle.workdir", "")

	// Optimization defaults
	v.SetDefault("optimize.default_granularity", "integration")
	v.SetDefault("optimize.workers", 4)
	v.SetDefault("optimize.scratch_dir", "")
	v.SetDefault("optimize.baseline_check", false)

	// Detector defaults
	v.SetDefault("detectors.rules_file", "")

	// History defaults
	v.SetDefault("history.enabled", true)

	// Watch defaults
	v.SetDefault("watch.settle", "500ms")
	v.SetDefault("watch.poll", "2s")
}

// getUserConfigDir returns the XDG config directory for factorytune.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "factorytune")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "factorytune")
	}
	return filepath.Join(home, ".config", "factorytune")
}

// findProjectConfig searches for .factorytune.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Command: "bundle exec rspec {file}",
			Timeout: 5 * time.Minute,
		},
		Optimize: OptimizeConfig{
			DefaultGranularity: string(models.GranularityIntegration),
			Workers:            4,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Settle: 500 * time.Millisecond,
			Poll:   2 * time.Second,
		},
	}
}
