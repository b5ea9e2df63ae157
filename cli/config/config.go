package config

import (
	"fmt"
	"slices"
	"time"
)

// Config represents a pngdoctor.yaml configuration file.
// All values are optional and act as defaults for pngdoctor validate flags.
// CLI flags always override config values.
type Config struct {
	Source      string        `yaml:"source"`
	Mode        string        `yaml:"mode"`
	Policy      string        `yaml:"policy"`
	Parallel    int           `yaml:"parallel"`
	MaxFileSize int64         `yaml:"max_file_size"`
	Records     bool          `yaml:"records"`
	LogLevel    string        `yaml:"log_level"`
	Storage     StorageConfig `yaml:"storage"`
	Adapter     AdapterConfig `yaml:"adapter"`
}

// Validation modes accepted by the mode key.
const (
	ModeFailFast   = "fail-fast"
	ModeCollectAll = "collect-all"
)

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values. Empty values are left to flag defaults.
func (c *Config) Validate() error {
	if c.Mode != "" && c.Mode != ModeFailFast && c.Mode != ModeCollectAll {
		return fmt.Errorf("invalid mode %q (must be %s or %s)", c.Mode, ModeFailFast, ModeCollectAll)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("invalid parallel %d (must be >= 0)", c.Parallel)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("invalid max_file_size %d (must be >= 0)", c.MaxFileSize)
	}
	if c.Storage.Backend != "" && !slices.Contains([]string{"fs", "s3"}, c.Storage.Backend) {
		return fmt.Errorf("invalid storage.backend %q (must be fs or s3)", c.Storage.Backend)
	}
	if c.Adapter.Type != "" && !slices.Contains([]string{"webhook", "redis"}, c.Adapter.Type) {
		return fmt.Errorf("invalid adapter.type %q (must be webhook or redis)", c.Adapter.Type)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("invalid adapter.retries %d (must be >= 0)", *c.Adapter.Retries)
	}
	return nil
}
