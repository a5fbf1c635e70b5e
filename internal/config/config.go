// Package config loads the stereossim YAML configuration and provides
// default values for every setting.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/stereossim"
)

// ReducerAuto selects the best available reducer.
const ReducerAuto = "auto"

// Config is the application configuration.
type Config struct {
	// Reducer is "auto", "gpu" or "software".
	Reducer string `yaml:"reducer"`

	// TargetSize is the side of the reduction targets, a power of two.
	TargetSize int `yaml:"targetSize"`

	// Threshold is the SSIM at or above which a layout passes.
	Threshold float64 `yaml:"threshold"`

	// Verify also computes the unquantized reference SSIM.
	Verify bool `yaml:"verify"`

	Capture struct {
		// Dir enables mip-level dumps when non-empty.
		Dir string `yaml:"dir"`
		// Format is "raw" or "tiff".
		Format string `yaml:"format"`
	} `yaml:"capture"`

	Log struct {
		// Level is debug, info, warn or error.
		Level string `yaml:"level"`
		// Format is text or json.
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		Reducer:    ReducerAuto,
		TargetSize: stereossim.DefaultTargetSize,
		Threshold:  stereossim.DefaultThreshold,
	}
	cfg.Capture.Format = "raw"
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig reads path over the defaults. A missing file is not an
// error: the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Reducer) {
	case ReducerAuto, stereossim.ReducerGPU, stereossim.ReducerSoftware:
	default:
		return fmt.Errorf("%w: reducer %q", stereossim.ErrInvalidArgument, c.Reducer)
	}
	if !stereossim.IsPowerOfTwo(c.TargetSize) {
		return fmt.Errorf("%w: targetSize %d is not a power of two > 1", stereossim.ErrInvalidArgument, c.TargetSize)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %g outside [-1, 1]", stereossim.ErrInvalidArgument, c.Threshold)
	}
	switch strings.ToLower(c.Capture.Format) {
	case "", "raw", "y", "tiff", "tif":
	default:
		return fmt.Errorf("%w: capture.format %q", stereossim.ErrInvalidArgument, c.Capture.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", stereossim.ErrInvalidArgument, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", stereossim.ErrInvalidArgument, c.Log.Format)
	}
	return nil
}
