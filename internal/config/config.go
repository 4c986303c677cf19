package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all reqtrace configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Scanner configuration
	Scan ScanConfig `yaml:"scan"`

	// Requirement definition sources
	Requirements RequirementsConfig `yaml:"requirements"`

	// Correlation kernel configuration
	Kernel KernelConfig `yaml:"kernel"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// CI gate thresholds
	Check CheckConfig `yaml:"check"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ScanConfig configures the workspace scanner.
type ScanConfig struct {
	// Root is the workspace directory to scan. Relative paths are
	// resolved against the current working directory.
	Root string `yaml:"root"`

	// Concurrency bounds the scanner worker pool.
	Concurrency int `yaml:"concurrency"`

	// IncludeTests controls whether test files are scanned for tags.
	IncludeTests bool `yaml:"include_tests"`

	// ExcludeDirs are directory names skipped during the walk, in
	// addition to the built-in hidden-directory policy.
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// RequirementsConfig locates requirement definition documents.
type RequirementsConfig struct {
	// Paths are YAML files or directories containing requirement
	// definitions, relative to the workspace root.
	Paths []string `yaml:"paths"`
}

// KernelConfig configures the Mangle correlation kernel.
type KernelConfig struct {
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
}

// StoreConfig configures the SQLite trace store.
type StoreConfig struct {
	// DatabasePath is relative to the workspace root unless absolute.
	DatabasePath string `yaml:"database_path"`
}

// CheckConfig configures the CI gate.
type CheckConfig struct {
	// FailOnOrphans fails the check when a tag references an undefined
	// requirement.
	FailOnOrphans bool `yaml:"fail_on_orphans"`

	// FailOnUntraced fails the check when a defined requirement has no
	// tag anywhere in the workspace.
	FailOnUntraced bool `yaml:"fail_on_untraced"`

	// MinCoverage is the minimum covered/defined ratio for --strict
	// checks, in [0,1].
	MinCoverage float64 `yaml:"min_coverage"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text
	DebugMode bool   `yaml:"debug_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reqtrace",
		Version: "1.0.0",

		Scan: ScanConfig{
			Root:         ".",
			Concurrency:  20,
			IncludeTests: true,
		},

		Requirements: RequirementsConfig{
			Paths: []string{"requirements.yaml"},
		},

		Kernel: KernelConfig{
			FactLimit:    100000,
			QueryTimeout: "30s",
		},

		Store: StoreConfig{
			DatabasePath: ".reqtrace/trace.db",
		},

		Check: CheckConfig{
			FailOnOrphans:  true,
			FailOnUntraced: true,
			MinCoverage:    1.0,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("REQTRACE_WORKSPACE"); root != "" {
		c.Scan.Root = root
	}
	if level := os.Getenv("REQTRACE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("REQTRACE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetQueryTimeout returns the kernel query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Kernel.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// DatabasePath resolves the store path against the workspace root.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Store.DatabasePath) {
		return c.Store.DatabasePath
	}
	return filepath.Join(c.Scan.Root, c.Store.DatabasePath)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be >= 1, got %d", c.Scan.Concurrency)
	}
	if c.Check.MinCoverage < 0 || c.Check.MinCoverage > 1 {
		return fmt.Errorf("check.min_coverage must be in [0,1], got %f", c.Check.MinCoverage)
	}
	if len(c.Requirements.Paths) == 0 {
		return fmt.Errorf("requirements.paths must name at least one definition source")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
