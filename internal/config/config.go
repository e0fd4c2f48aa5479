// Package config loads harness settings from an optional YAML file.
//
// Values are layered: built-in defaults, then the file, then command-line
// flags (applied by the caller). Durations are written as Go duration
// strings ("45s", "2m").
//
//	driver: tests/regtest/regtest.sh
//	timeout: 45s
//	catalog: regtest.cue
//	db: .lnharness/history.db
//	metrics_file: /var/lib/node_exporter/lnharness.prom
//	log_level: info
//	trace: false
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lnharness/internal/logging"
	"github.com/roach88/lnharness/internal/shell"
)

// Config holds harness settings.
type Config struct {
	// Driver is the regtest driver executable.
	Driver string `mapstructure:"driver"`

	// WorkDir is the working directory of driver processes.
	WorkDir string `mapstructure:"workdir"`

	// Timeout bounds each driver command.
	Timeout time.Duration `mapstructure:"timeout"`

	// Catalog is a YAML or CUE catalog file. Empty selects the built-in
	// groups.
	Catalog string `mapstructure:"catalog"`

	// DB is the SQLite history file. Empty disables history.
	DB string `mapstructure:"db"`

	// MetricsFile receives a Prometheus textfile after each run.
	MetricsFile string `mapstructure:"metrics_file"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`

	// Trace exports OpenTelemetry spans to stderr.
	Trace bool `mapstructure:"trace"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Driver:   shell.DefaultDriverPath,
		Timeout:  shell.DefaultTimeout,
		LogLevel: "warn",
	}
}

// Load reads path on top of Default. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays the YAML document data onto cfg and validates the
// result.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver must not be empty")
	}
	if c.Timeout < time.Millisecond {
		return fmt.Errorf("timeout %s is too short (durations need a unit, e.g. 30s)", c.Timeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
