package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Oracle.Command != "bundle exec rspec {file}" {
		t.Errorf("expected default oracle command, got %q", cfg.Oracle.Command)
	}

	if cfg.Oracle.Timeout != 5*time.Minute {
		t.Errorf("expected oracle timeout 5m, got %v", cfg.Oracle.Timeout)
	}

	if cfg.Optimize.DefaultGranularity != "integration" {
		t.Errorf("expected default granularity 'integration', got %q", cfg.Optimize.DefaultGranularity)
	}

	if cfg.Optimize.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Optimize.Workers)
	}

	if !cfg.History.Enabled {
		t.Error("expected history.enabled to be true")
	}

	if cfg.Watch.Settle != 500*time.Millisecond {
		t.Errorf("expected watch settle 500ms, got %v", cfg.Watch.Settle)
	}

	if cfg.Watch.Poll != 2*time.Second {
		t.Errorf("expected watch poll 2s, got %v", cfg.Watch.Poll)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
oracle:
  command: bin/rails test {file}
  timeout: 2m
  workdir: /srv/app
optimize:
  default_granularity: unit
  workers: 8
  scratch_dir: /tmp/ft
  baseline_check: true
detectors:
  rules_file: .factorytune-rules.yaml
history:
  enabled: false
watch:
  settle: 250ms
  poll: 5s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Oracle.Command != "bin/rails test {file}" {
		t.Errorf("expected oracle command 'bin/rails test {file}', got %q", cfg.Oracle.Command)
	}

	if cfg.Oracle.Timeout != 2*time.Minute {
		t.Errorf("expected oracle timeout 2m, got %v", cfg.Oracle.Timeout)
	}

	if cfg.Oracle.WorkDir != "/srv/app" {
		t.Errorf("expected oracle workdir '/srv/app', got %q", cfg.Oracle.WorkDir)
	}

	if cfg.Optimize.DefaultGranularity != "unit" {
		t.Errorf("expected granularity 'unit', got %q", cfg.Optimize.DefaultGranularity)
	}

	if cfg.Optimize.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Optimize.Workers)
	}

	if !cfg.Optimize.BaselineCheck {
		t.Error("expected baseline_check to be true")
	}

	if cfg.Detectors.RulesFile != ".factorytune-rules.yaml" {
		t.Errorf("expected rules file, got %q", cfg.Detectors.RulesFile)
	}

	if cfg.History.Enabled {
		t.Error("expected history.enabled to be false")
	}

	if cfg.Watch.Settle != 250*time.Millisecond {
		t.Errorf("expected watch settle 250ms, got %v", cfg.Watch.Settle)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("FACTORYTUNE_ORACLE_COMMAND", "rake test {file}")
	t.Setenv("FACTORYTUNE_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Oracle.Command != "rake test {file}" {
		t.Errorf("expected env oracle command, got %q", cfg.Oracle.Command)
	}

	if cfg.Optimize.Workers != 2 {
		t.Errorf("expected 2 workers from env, got %d", cfg.Optimize.Workers)
	}
}

func TestLoad_ProjectConfigOverridesUser(t *testing.T) {
	userDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userDir)
	if err := os.MkdirAll(filepath.Join(userDir, "factorytune"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	userConfig := "optimize:\n  workers: 2\n  default_granularity: unit\n"
	if err := os.WriteFile(filepath.Join(userDir, "factorytune", "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatalf("writing user config: %v", err)
	}

	projectDir := t.TempDir()
	projectConfig := "optimize:\n  workers: 7\n"
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(projectConfig), 0644); err != nil {
		t.Fatalf("writing project config: %v", err)
	}
	t.Chdir(projectDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Optimize.Workers != 7 {
		t.Errorf("expected project workers 7, got %d", cfg.Optimize.Workers)
	}

	// Untouched user settings survive the merge.
	if cfg.Optimize.DefaultGranularity != "unit" {
		t.Errorf("expected user granularity 'unit', got %q", cfg.Optimize.DefaultGranularity)
	}
}

func TestValidate_ClampsNonsense(t *testing.T) {
	cfg := Default()
	cfg.Optimize.Workers = 0
	cfg.Oracle.Timeout = -time.Second
	cfg.Optimize.DefaultGranularity = "gigantic"
	cfg.Watch.Settle = 0
	cfg.Watch.Poll = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Optimize.Workers != 1 {
		t.Errorf("expected workers clamped to 1, got %d", cfg.Optimize.Workers)
	}

	if cfg.Oracle.Timeout != 5*time.Minute {
		t.Errorf("expected timeout clamped to 5m, got %v", cfg.Oracle.Timeout)
	}

	if cfg.Optimize.DefaultGranularity != "integration" {
		t.Errorf("expected granularity clamped to 'integration', got %q", cfg.Optimize.DefaultGranularity)
	}

	if cfg.Watch.Settle != 500*time.Millisecond {
		t.Errorf("expected settle clamped to 500ms, got %v", cfg.Watch.Settle)
	}

	if cfg.Watch.Poll != 2*time.Second {
		t.Errorf("expected poll clamped to 2s, got %v", cfg.Watch.Poll)
	}
}

func TestValidate_EmptyOracleCommand(t *testing.T) {
	cfg := Default()
	cfg.Oracle.Command = "   "

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty oracle command")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/factorytune"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
