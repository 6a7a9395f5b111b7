// Package config loads the scan configuration file. Everything has a
// default; a missing file is not an error, so the CLI works out of the box
// on any source tree.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the scan root when no --config flag is set.
const DefaultFileName = ".archscan.yaml"

// Config represents the top-level scan configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Scan    ScanConfig    `yaml:"scan"`
	Output  OutputConfig  `yaml:"output"`
	History HistoryConfig `yaml:"history"`
}

// ProjectConfig names the scanned project in the produced model.
type ProjectConfig struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Repositories []string `yaml:"repositories"`
}

// ScanConfig selects and tunes scanner plugins. An empty Scanners list
// enables every registered plugin; Options carries per-plugin overrides
// keyed by plugin id then option name.
type ScanConfig struct {
	Scanners []string                     `yaml:"scanners"`
	Options  map[string]map[string]string `yaml:"options"`
}

// OutputConfig controls where and how the model is written.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // json or markdown
}

// HistoryConfig controls the scan-history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:    "project",
			Version: "unknown",
		},
		Output: OutputConfig{
			Dir:    "archscan-out",
			Format: "json",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    ".archscan.db",
		},
	}
}

// Load reads a configuration file and overlays it on the defaults. A path
// that does not exist returns the defaults unchanged; a file that exists but
// does not parse is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "json", "markdown":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
}
