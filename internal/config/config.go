// Package config loads shrinkowners settings from a .shrinkowners.yaml
// file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory when
// no explicit path is given.
const FileName = ".shrinkowners.yaml"

// ErrInvalidConfig is returned when a config value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full set of settings.
type Config struct {
	Compress CompressConfig `yaml:"compress"`
	Cache    CacheConfig    `yaml:"cache"`
	Files    FilesConfig    `yaml:"files"`
}

// CompressConfig controls the budget compressor.
type CompressConfig struct {
	Lossy1 float64 `yaml:"lossy1"`
	Lossy2 float64 `yaml:"lossy2"`
	Budget int     `yaml:"budget"`
	Globs  bool    `yaml:"globs"`
}

// CacheConfig controls the on-disk ownership tree cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// FilesConfig controls how the file list is gathered when no list is
// given explicitly.
type FilesConfig struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns the default thresholds and a 100000 byte budget,
// with caching in the working directory.
func DefaultConfig() *Config {
	return &Config{
		Compress: CompressConfig{
			Lossy1: 0.8,
			Lossy2: 0.5,
			Budget: 100000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".",
		},
		Files: FilesConfig{
			Root:    ".",
			Include: []string{"**"},
			Exclude: []string{".git/**"},
		},
	}
}

// Load reads path over the defaults. An empty path tries FileName and
// falls back to the defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Compress.Lossy1 < 0 || c.Compress.Lossy1 > 1:
		return fmt.Errorf("%w: lossy1 must be in [0, 1], got %g", ErrInvalidConfig, c.Compress.Lossy1)
	case c.Compress.Lossy2 < 0:
		return fmt.Errorf("%w: lossy2 must not be negative, got %g", ErrInvalidConfig, c.Compress.Lossy2)
	case c.Compress.Budget < 0:
		return fmt.Errorf("%w: budget must not be negative, got %d", ErrInvalidConfig, c.Compress.Budget)
	}
	return nil
}
