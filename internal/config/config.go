// Package config loads stmtdiff settings from defaults, an optional config
// file, STMTDIFF_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config is the full configuration.
type Config struct {
	Output       OutputConfig `mapstructure:"output" json:"output"`
	Batch        BatchConfig  `mapstructure:"batch" json:"batch"`
	Log          LogConfig    `mapstructure:"log" json:"log"`
	FailOnChange bool         `mapstructure:"fail_on_change" json:"fail_on_change"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format string `mapstructure:"format" json:"format"`
	Color  bool   `mapstructure:"color" json:"color"`
}

// BatchConfig controls directory-pair runs.
type BatchConfig struct {
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
	Workers int      `mapstructure:"workers" json:"workers"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: FormatText,
			Color:  true,
		},
		Batch: BatchConfig{
			Include: []string{"**/*.py"},
			Exclude: []string{},
			Workers: 0,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var problems []string

	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		problems = append(problems, fmt.Sprintf("output.format must be text, json or yaml, got %q", c.Output.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Batch.Workers < 0 {
		problems = append(problems, fmt.Sprintf("batch.workers must not be negative, got %d", c.Batch.Workers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
	return level, nil
}
