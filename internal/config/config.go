/*
PURPOSE:
  Defines the configuration structure and loading logic for the analyzer
  and the bandwidth probe.

REQUIREMENTS:
  User-specified:
  - Allow configuration of the top-K size and the bandwidth size threshold.
  - Defaults: 10 entries, 1 MiB.

  Implementation-discovered:
  - Log file names, the API prefix and the JSON listing marker vary
    between client versions, so they are configurable too.
  - Needs to support YAML parsing.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/probe
  - Dependencies: gopkg.in/yaml.v3

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default file is not an error; defaults are used.
  - Validate() wraps ErrInvalid for out-of-range values.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Static parameters only; nothing here is derived from input.

USAGE:
  cfg, err := config.Load("analyze.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/analyze.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by Validate for unusable values.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the full configuration.
type Config struct {
	TopCount          int    `yaml:"top_count"`
	RateSizeThreshold int64  `yaml:"rate_size_threshold"`
	SMBLog            string `yaml:"smb_log"`
	HTTPLog           string `yaml:"http_log"`
	APIPrefix         string `yaml:"api_prefix"`
	JSONListingMarker string `yaml:"json_listing_marker"`
	// NotificationCommands are server-pushed SMB commands that never have a begin entry.
	NotificationCommands []string  `yaml:"notification_commands"`
	TopKPolicy           string    `yaml:"topk_policy"`
	Percentiles          []float64 `yaml:"percentiles"`
	Probe                Probe     `yaml:"probe"`
}

// Probe configures the bandwidth probe.
type Probe struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	OutputDir  string        `yaml:"output_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TopCount:             10,
		RateSizeThreshold:    1024 * 1024,
		SMBLog:               "smb-cmd.log",
		HTTPLog:              "smb-request.log",
		APIPrefix:            "/api/assets",
		JSONListingMarker:    ".json?limit=",
		NotificationCommands: []string{"nt_transact_notify_change", "change_notify"},
		TopKPolicy:           "best-delta",
		Percentiles:          []float64{0.5, 0.95},
		Probe: Probe{
			Timeout:    5 * time.Minute,
			MaxRetries: 1,
			RetryDelay: 2 * time.Second,
			OutputDir:  ".",
		},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"analyze-performance.yaml", "analyze.yaml", ".analyze-performance.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values the analysis cannot work with.
func (c *Config) Validate() error {
	if c.TopCount < 1 {
		return fmt.Errorf("%w: top_count must be at least 1, got %d", ErrInvalid, c.TopCount)
	}
	if c.RateSizeThreshold < 0 {
		return fmt.Errorf("%w: rate_size_threshold must not be negative, got %d", ErrInvalid, c.RateSizeThreshold)
	}
	switch c.TopKPolicy {
	case "", "best-delta", "last-exceeded":
	default:
		return fmt.Errorf("%w: unknown topk_policy %q", ErrInvalid, c.TopKPolicy)
	}
	for _, q := range c.Percentiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("%w: percentile %v outside (0,1)", ErrInvalid, q)
		}
	}
	if c.SMBLog == "" && c.HTTPLog == "" {
		return fmt.Errorf("%w: no log names configured", ErrInvalid)
	}
	return nil
}

// IsNotification reports whether an SMB command name is server-pushed.
func (c *Config) IsNotification(command string) bool {
	for _, n := range c.NotificationCommands {
		if n == command {
			return true
		}
	}
	return false
}
