package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validLogLevels lists the values Server.LogLevel may take.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values: root, db and
// rulebase are required; server.log_level, if set, must be one of
// validLogLevels; server.worker_concurrency must not be negative.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Root == "" {
		errs = append(errs, fmt.Errorf("root is required"))
	}
	if cfg.DB == "" {
		errs = append(errs, fmt.Errorf("db is required"))
	}
	if cfg.RuleBase == "" {
		errs = append(errs, fmt.Errorf("rulebase is required"))
	}
	if cfg.Server.LogLevel != "" && !slices.Contains(validLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: %v", cfg.Server.LogLevel, validLogLevels))
	}
	if cfg.Server.WorkerConcurrency < 0 {
		errs = append(errs, fmt.Errorf("server.worker_concurrency must be >= 0, got %d", cfg.Server.WorkerConcurrency))
	}

	return errors.Join(errs...)
}
