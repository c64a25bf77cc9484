// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/mempool"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "securemem.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Pool.MinAllocation != 16 || cfg.Pool.MaxAllocation != 4096 {
		t.Errorf("expected allocation bounds 16..4096, got %d..%d", cfg.Pool.MinAllocation, cfg.Pool.MaxAllocation)
	}
	if cfg.Pool.AlignmentBits != 4 {
		t.Errorf("expected alignment_bits=4, got %d", cfg.Pool.AlignmentBits)
	}
	if cfg.Pool.MaxLockedBytes != 512*1024 {
		t.Errorf("expected max_locked_bytes=524288, got %d", cfg.Pool.MaxLockedBytes)
	}
	if cfg.Pool.RequireLocked {
		t.Error("expected require_locked=false for development")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresBureauConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when BUREAU_CONFIG not set, got nil")
	}

	expectedMsg := "BUREAU_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithBureauConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
pool:
  max_locked_bytes: 65536
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Pool.MaxLockedBytes != 65536 {
		t.Errorf("expected max_locked_bytes=65536, got %d", cfg.Pool.MaxLockedBytes)
	}
	// Unset keys keep their defaults.
	if cfg.Pool.MaxAllocation != 4096 {
		t.Errorf("expected default max_allocation=4096, got %d", cfg.Pool.MaxAllocation)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

pool:
  min_allocation: 32
  max_allocation: 8192
  alignment_bits: 6
  max_locked_bytes: 1048576
  require_locked: true

metrics:
  textfile_path: /var/lib/node_exporter/securemem.prom
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	expected := PoolConfig{
		MinAllocation:  32,
		MaxAllocation:  8192,
		AlignmentBits:  6,
		MaxLockedBytes: 1048576,
		RequireLocked:  true,
	}
	if cfg.Pool != expected {
		t.Errorf("pool = %+v, want %+v", cfg.Pool, expected)
	}
	if cfg.Metrics.TextfilePath != "/var/lib/node_exporter/securemem.prom" {
		t.Errorf("expected textfile_path from file, got %s", cfg.Metrics.TextfilePath)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: expected os.ErrNotExist, got %v", err)
	}

	configPath := writeConfig(t, "pool: [not, a, mapping]\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Error("malformed file: expected error, got nil")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

pool:
  alignment_bits: 4
  max_locked_bytes: 524288

production:
  pool:
    alignment_bits: 0
    max_locked_bytes: 2097152
  metrics:
    textfile_path: /prod/securemem.prom

staging:
  pool:
    max_locked_bytes: 4096
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Pool.MaxLockedBytes != 2097152 {
		t.Errorf("expected max_locked_bytes=2097152 from production override, got %d", cfg.Pool.MaxLockedBytes)
	}
	// An explicit zero in an override applies.
	if cfg.Pool.AlignmentBits != 0 {
		t.Errorf("expected alignment_bits=0 from production override, got %d", cfg.Pool.AlignmentBits)
	}
	if cfg.Metrics.TextfilePath != "/prod/securemem.prom" {
		t.Errorf("expected textfile_path from production override, got %s", cfg.Metrics.TextfilePath)
	}
	// An explicit production section replaces the production defaults.
	if cfg.Pool.RequireLocked {
		t.Error("expected require_locked=false: the production section does not set it")
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !cfg.Pool.RequireLocked {
		t.Error("expected require_locked=true by default in production")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("BUREAU_ENVIRONMENT", "staging")
	t.Setenv("BUREAU_POOL_MAX_LOCKED_BYTES", "1")

	configPath := writeConfig(t, `
environment: development
pool:
  max_locked_bytes: 65536
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}
	if cfg.Pool.MaxLockedBytes != 65536 {
		t.Errorf("expected max_locked_bytes=65536 from file, got %d (env vars should not override)", cfg.Pool.MaxLockedBytes)
	}
}

func TestTextfilePathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/operator")

	configPath := writeConfig(t, `
metrics:
  textfile_path: ${HOME}/metrics/securemem.prom
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Metrics.TextfilePath != "/home/operator/metrics/securemem.prom" {
		t.Errorf("expected expanded path, got %s", cfg.Metrics.TextfilePath)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/bureau",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/bureau",
		},
		{
			input:    "${SECUREMEM_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*Config)
		wantErr    bool
		wantInPool bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "zero minimum allocation",
			modify: func(c *Config) {
				c.Pool.MinAllocation = 0
			},
			wantErr:    true,
			wantInPool: true,
		},
		{
			name: "minimum above maximum",
			modify: func(c *Config) {
				c.Pool.MinAllocation = 8192
			},
			wantErr:    true,
			wantInPool: true,
		},
		{
			name: "alignment out of range",
			modify: func(c *Config) {
				c.Pool.AlignmentBits = 12
			},
			wantErr:    true,
			wantInPool: true,
		},
		{
			name: "negative locked ceiling",
			modify: func(c *Config) {
				c.Pool.MaxLockedBytes = -1
			},
			wantErr: true,
		},
		{
			name: "zero locked ceiling",
			modify: func(c *Config) {
				c.Pool.MaxLockedBytes = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantInPool && !errors.Is(err, mempool.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want it to wrap mempool.ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Environment = "invalid"
	cfg.Pool.MaxLockedBytes = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, fragment := range []string{"invalid environment", "max_locked_bytes"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %q", err, fragment)
		}
	}
}

func TestAllocatorConfig(t *testing.T) {
	logger := slog.Default()
	pool := PoolConfig{MinAllocation: 8, MaxAllocation: 256, AlignmentBits: 3, MaxLockedBytes: 8192}

	got := pool.AllocatorConfig(logger)
	want := lockalloc.Config{MinAllocation: 8, MaxAllocation: 256, AlignmentBits: 3, MaxLockedBytes: 8192, Logger: logger}
	if got != want {
		t.Errorf("AllocatorConfig = %+v, want %+v", got, want)
	}
}

func TestEnsureMetricsDirectory(t *testing.T) {
	cfg := Default()
	if err := cfg.EnsureMetricsDirectory(); err != nil {
		t.Fatalf("EnsureMetricsDirectory with no path failed: %v", err)
	}

	directory := filepath.Join(t.TempDir(), "node_exporter", "textfiles")
	cfg.Metrics.TextfilePath = filepath.Join(directory, "securemem.prom")
	if err := cfg.EnsureMetricsDirectory(); err != nil {
		t.Fatalf("EnsureMetricsDirectory failed: %v", err)
	}

	info, err := os.Stat(directory)
	if err != nil {
		t.Fatalf("directory %s not created: %v", directory, err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", directory)
	}
}

func TestLoadFile_ZeroMaxLockedBytesRejected(t *testing.T) {
	path := writeConfig(t, "pool:\n  max_locked_bytes: 0\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max_locked_bytes must be positive") {
		t.Errorf("Validate() error = %v, want max_locked_bytes rejected", err)
	}
}
