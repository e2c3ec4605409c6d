package main

import (
	"testing"
	"time"

	"factorytune/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Detectors.RulesFile = "rules.yaml"

	tests := []struct {
		key      string
		expected string
	}{
		{"oracle.command", "bundle exec rspec {file}"},
		{"oracle.timeout", "5m0s"},
		{"oracle.workdir", "(not set)"},
		{"optimize.default_granularity", "integration"},
		{"optimize.workers", "4"},
		{"optimize.scratch_dir", "(not set)"},
		{"optimize.baseline_check", "false"},
		{"detectors.rules_file", "rules.yaml"},
		{"history.enabled", "true"},
		{"watch.settle", "500ms"},
		{"watch.poll", "2s"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v", tt.key, err)
			}
			if got != tt.expected {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestGetConfigValue_CaseInsensitive(t *testing.T) {
	cfg := config.Default()

	got, err := getConfigValue(cfg, "Oracle.Command")
	if err != nil {
		t.Fatalf("getConfigValue error = %v", err)
	}
	if got != "bundle exec rspec {file}" {
		t.Errorf("getConfigValue(\"Oracle.Command\") = %q", got)
	}
}

func TestGetConfigValue_UnknownKey(t *testing.T) {
	cfg := config.Default()
	if _, err := getConfigValue(cfg, "no.such.key"); err == nil {
		t.Error("getConfigValue with unknown key = nil error, want error")
	}
}

func TestSetConfigValue(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "oracle.command", "rake spec SPEC={file}"); err != nil {
		t.Fatalf("set oracle.command: %v", err)
	}
	if cfg.Oracle.Command != "rake spec SPEC={file}" {
		t.Errorf("oracle.command = %q", cfg.Oracle.Command)
	}

	if err := setConfigValue(cfg, "oracle.timeout", "90s"); err != nil {
		t.Fatalf("set oracle.timeout: %v", err)
	}
	if cfg.Oracle.Timeout != 90*time.Second {
		t.Errorf("oracle.timeout = %v, want 90s", cfg.Oracle.Timeout)
	}

	if err := setConfigValue(cfg, "optimize.workers", "8"); err != nil {
		t.Fatalf("set optimize.workers: %v", err)
	}
	if cfg.Optimize.Workers != 8 {
		t.Errorf("optimize.workers = %d, want 8", cfg.Optimize.Workers)
	}

	if err := setConfigValue(cfg, "optimize.baseline_check", "true"); err != nil {
		t.Fatalf("set optimize.baseline_check: %v", err)
	}
	if !cfg.Optimize.BaselineCheck {
		t.Error("optimize.baseline_check = false, want true")
	}

	if err := setConfigValue(cfg, "history.enabled", "false"); err != nil {
		t.Fatalf("set history.enabled: %v", err)
	}
	if cfg.History.Enabled {
		t.Error("history.enabled = true, want false")
	}

	if err := setConfigValue(cfg, "watch.settle", "250ms"); err != nil {
		t.Fatalf("set watch.settle: %v", err)
	}
	if cfg.Watch.Settle != 250*time.Millisecond {
		t.Errorf("watch.settle = %v, want 250ms", cfg.Watch.Settle)
	}
}

func TestSetConfigValue_InvalidValues(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "oracle.timeout", "banana"},
		{"bad int", "optimize.workers", "many"},
		{"bad bool", "optimize.baseline_check", "sometimes"},
		{"bad poll", "watch.poll", "soon"},
		{"unknown key", "no.such.key", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) = nil error, want error", tt.key, tt.value)
			}
		})
	}
}
