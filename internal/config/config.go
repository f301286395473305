// Package config loads persistent defaults for the search command from a
// YAML file. CLI flags always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that points at a config file.
const EnvPath = "SEARCH_CONFIG"

// Config holds the settings that may be persisted between runs.
type Config struct {
	// Threads is the worker count (0 = host parallelism)
	Threads int `yaml:"threads"`

	// Procs caps the kernel threads running workers (0 = runtime default)
	Procs int `yaml:"procs"`

	// IgnoreExts lists file extensions never scanned for content
	IgnoreExts []string `yaml:"ignore_exts"`

	// Mute suppresses non-fatal error output
	Mute bool `yaml:"mute"`

	// Sort orders results before printing
	Sort bool `yaml:"sort"`

	// SkipHidden skips dot-prefixed entries while listing directories
	SkipHidden bool `yaml:"skip_hidden"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads path and merges its values over the defaults. A missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath resolves the config file location: $SEARCH_CONFIG, then
// $XDG_CONFIG_HOME/search/config.yaml, then ~/.config/search/config.yaml.
// Returns "" when no home directory can be determined.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "search", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "search", "config.yaml")
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", c.Threads)
	}
	if c.Procs < 0 {
		return fmt.Errorf("procs must be >= 0, got %d", c.Procs)
	}
	return nil
}

// MergeWithFlags overlays explicitly-set CLI flags. Non-nil values win;
// extra ignore extensions are appended to the file's list.
func (c *Config) MergeWithFlags(threads, procs *int, mute, sort, skipHidden *bool, ignoreExts []string) {
	if threads != nil {
		c.Threads = *threads
	}
	if procs != nil {
		c.Procs = *procs
	}
	if mute != nil {
		c.Mute = *mute
	}
	if sort != nil {
		c.Sort = *sort
	}
	if skipHidden != nil {
		c.SkipHidden = *skipHidden
	}
	c.IgnoreExts = append(c.IgnoreExts, ignoreExts...)
}
