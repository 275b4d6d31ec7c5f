package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gauntlet configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// MCP server surface
	Server ServerConfig `yaml:"server"`

	// Test case synthesis
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Sandboxed execution
	Arena ArenaConfig `yaml:"arena"`

	// Analyzer orchestration
	Review ReviewConfig `yaml:"review"`

	// Generated artifact output
	Output OutputConfig `yaml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the MCP server surface.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"` // empty means stdio only
}

// SynthesisConfig configures test case synthesis.
type SynthesisConfig struct {
	// Categories enabled for synthesis, in canonical order.
	Categories []string `yaml:"categories"`

	// IncludeUnexported also models lowercase callables.
	IncludeUnexported bool `yaml:"include_unexported"`
}

// ArenaConfig configures the sandboxed executor.
type ArenaConfig struct {
	// BaseDir for arena directories; empty uses the system temp dir.
	BaseDir string `yaml:"base_dir"`

	// Wall-clock bound for the test run itself.
	DefaultTimeout string `yaml:"default_timeout"`

	// Bound for the compile phase (not charged to the caller's timeout).
	CompileTimeout string `yaml:"compile_timeout"`

	// Concurrent sandbox runs.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Cap per captured output stream.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// GOMEMLIMIT handed to workers, e.g. "256MiB". Empty disables.
	MemoryLimit string `yaml:"memory_limit"`

	// Safety policy knobs for submitted source.
	AllowNetwork bool `yaml:"allow_network"`
	AllowExec    bool `yaml:"allow_exec"`

	// Environment variables workers may inherit beyond the Go base set.
	AllowedEnvVars []string `yaml:"allowed_env_vars"`

	// Go toolchain binary.
	GoBinary string `yaml:"go_binary"`
}

// ReviewConfig configures the external analyzer orchestration.
type ReviewConfig struct {
	Analyzers []string `yaml:"analyzers"`
	Timeout   string   `yaml:"timeout"`
}

// OutputConfig configures where saved artifacts land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// ValidCategories lists the synthesis categories in canonical order.
var ValidCategories = []string{"happy", "edge", "exception", "type_validation"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "gauntlet",
		Version: "0.4.0",

		Server: ServerConfig{
			HTTPAddr: "",
		},

		Synthesis: SynthesisConfig{
			Categories:        append([]string{}, ValidCategories...),
			IncludeUnexported: false,
		},

		Arena: ArenaConfig{
			BaseDir:        "",
			DefaultTimeout: "30s",
			CompileTimeout: "60s",
			MaxConcurrent:  4,
			MaxOutputBytes: 1 << 20,
			MemoryLimit:    "512MiB",
			AllowNetwork:   false,
			AllowExec:      false,
			AllowedEnvVars: []string{},
			GoBinary:       "go",
		},

		Review: ReviewConfig{
			Analyzers: []string{"gofmt", "vet", "safety", "structure"},
			Timeout:   "30s",
		},

		Output: OutputConfig{
			Dir: "gauntlet-tests",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "gauntlet.log",
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

	// Override with environment variables
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
	if addr := os.Getenv("GAUNTLET_HTTP_ADDR"); addr != "" {
		c.Server.HTTPAddr = addr
	}
	if dir := os.Getenv("GAUNTLET_ARENA_DIR"); dir != "" {
		c.Arena.BaseDir = dir
	}
	if bin := os.Getenv("GAUNTLET_GO_BIN"); bin != "" {
		c.Arena.GoBinary = bin
	}
	if dir := os.Getenv("GAUNTLET_OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if n := os.Getenv("GAUNTLET_MAX_CONCURRENT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			c.Arena.MaxConcurrent = v
		}
	}
	if timeout := os.Getenv("GAUNTLET_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			c.Arena.DefaultTimeout = timeout
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Arena.DefaultTimeout); err != nil {
		return fmt.Errorf("invalid arena default_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Arena.CompileTimeout); err != nil {
		return fmt.Errorf("invalid arena compile_timeout: %w", err)
	}
	if c.Arena.MaxConcurrent < 1 {
		return fmt.Errorf("arena max_concurrent must be at least 1, got %d", c.Arena.MaxConcurrent)
	}
	if c.Arena.MaxOutputBytes < 1024 {
		return fmt.Errorf("arena max_output_bytes must be at least 1024, got %d", c.Arena.MaxOutputBytes)
	}

	valid := make(map[string]bool, len(ValidCategories))
	for _, cat := range ValidCategories {
		valid[cat] = true
	}
	for _, cat := range c.Synthesis.Categories {
		if !valid[cat] {
			return fmt.Errorf("invalid synthesis category: %s (valid: %v)", cat, ValidCategories)
		}
	}

	return nil
}

// GetDefaultTimeout returns the arena run timeout as a duration.
func (c *Config) GetDefaultTimeout() time.Duration {
	d, err := time.ParseDuration(c.Arena.DefaultTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCompileTimeout returns the arena compile timeout as a duration.
func (c *Config) GetCompileTimeout() time.Duration {
	d, err := time.ParseDuration(c.Arena.CompileTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetReviewTimeout returns the per-analyzer timeout as a duration.
func (c *Config) GetReviewTimeout() time.Duration {
	d, err := time.ParseDuration(c.Review.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
