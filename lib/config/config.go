// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/mempool"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "BUREAU_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the secure-memory configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Pool configures the locked allocation pool.
	Pool PoolConfig `yaml:"pool"`

	// Metrics configures Prometheus textfile output.
	Metrics MetricsConfig `yaml:"metrics"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// PoolConfig configures the locked allocation pool.
type PoolConfig struct {
	// MinAllocation is the smallest request served from the pool.
	// Default: 16
	MinAllocation int `yaml:"min_allocation"`

	// MaxAllocation is the largest request served from the pool.
	// Default: 4096
	MaxAllocation int `yaml:"max_allocation"`

	// AlignmentBits is the allocation alignment exponent.
	// Default: 4 (16 bytes)
	AlignmentBits int `yaml:"alignment_bits"`

	// MaxLockedBytes caps the locked region and must be positive. The
	// operating system limit and BUREAU_MLOCK_POOL_SIZE can lower it
	// further; set BUREAU_MLOCK_POOL_SIZE=0 to run without locking.
	// Default: 524288
	MaxLockedBytes int `yaml:"max_locked_bytes"`

	// RequireLocked makes commands fail rather than run with secrets on
	// the heap when no memory can be locked.
	// Default: false (development), true (production)
	RequireLocked bool `yaml:"require_locked"`
}

// MetricsConfig configures Prometheus textfile output.
type MetricsConfig struct {
	// TextfilePath is where commands write a node_exporter textfile
	// when they finish. Empty disables the output. ${HOME} and
	// ${VAR:-default} are expanded.
	TextfilePath string `yaml:"textfile_path"`
}

// Overrides contains fields that can be overridden per environment.
// Unset fields keep the base value.
type Overrides struct {
	Pool    *PoolOverrides `yaml:"pool,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// PoolOverrides mirrors PoolConfig with every field optional.
type PoolOverrides struct {
	MinAllocation  *int  `yaml:"min_allocation,omitempty"`
	MaxAllocation  *int  `yaml:"max_allocation,omitempty"`
	AlignmentBits  *int  `yaml:"alignment_bits,omitempty"`
	MaxLockedBytes *int  `yaml:"max_locked_bytes,omitempty"`
	RequireLocked  *bool `yaml:"require_locked,omitempty"`
}

// Default returns the default configuration, used as the base before
// the config file is merged over it.
func Default() *Config {
	return &Config{
		Environment: Development,
		Pool: PoolConfig{
			MinAllocation:  lockalloc.DefaultMinAllocation,
			MaxAllocation:  lockalloc.DefaultMaxAllocation,
			AlignmentBits:  lockalloc.DefaultAlignmentBits,
			MaxLockedBytes: lockalloc.DefaultMaxLockedBytes,
		},
	}
}

// Load loads configuration from the file named by BUREAU_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Environment
// variables do not override config values; the only expansion is
// ${VAR} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: never keep secrets on the heap silently.
		if overrides == nil {
			requireLocked := true
			overrides = &Overrides{
				Pool: &PoolOverrides{RequireLocked: &requireLocked},
			}
		}
	}

	if overrides == nil {
		return
	}

	if pool := overrides.Pool; pool != nil {
		if pool.MinAllocation != nil {
			c.Pool.MinAllocation = *pool.MinAllocation
		}
		if pool.MaxAllocation != nil {
			c.Pool.MaxAllocation = *pool.MaxAllocation
		}
		if pool.AlignmentBits != nil {
			c.Pool.AlignmentBits = *pool.AlignmentBits
		}
		if pool.MaxLockedBytes != nil {
			c.Pool.MaxLockedBytes = *pool.MaxLockedBytes
		}
		if pool.RequireLocked != nil {
			c.Pool.RequireLocked = *pool.RequireLocked
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.TextfilePath != "" {
		c.Metrics.TextfilePath = overrides.Metrics.TextfilePath
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Metrics.TextfilePath = expandVars(c.Metrics.TextfilePath, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	pool := mempool.Config{
		MinAllocation: c.Pool.MinAllocation,
		MaxAllocation: c.Pool.MaxAllocation,
		AlignmentBits: c.Pool.AlignmentBits,
	}
	if err := pool.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pool: %w", err))
	}

	if c.Pool.MaxLockedBytes <= 0 {
		errs = append(errs, fmt.Errorf("pool.max_locked_bytes must be positive, got %d", c.Pool.MaxLockedBytes))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AllocatorConfig converts the pool section to an allocator
// configuration that logs to logger.
func (p PoolConfig) AllocatorConfig(logger *slog.Logger) lockalloc.Config {
	return lockalloc.Config{
		MinAllocation:  p.MinAllocation,
		MaxAllocation:  p.MaxAllocation,
		AlignmentBits:  p.AlignmentBits,
		MaxLockedBytes: p.MaxLockedBytes,
		Logger:         logger,
	}
}

// EnsureMetricsDirectory creates the directory holding the metrics
// textfile if one is configured.
func (c *Config) EnsureMetricsDirectory() error {
	if c.Metrics.TextfilePath == "" {
		return nil
	}
	directory := filepath.Dir(c.Metrics.TextfilePath)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
