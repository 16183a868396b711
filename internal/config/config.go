// Package config provides configuration loading for docref.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete docref configuration.
type Config struct {
	Docs    DocsConfig    `yaml:"docs"`
	Index   IndexConfig   `yaml:"index"`
	Sources SourcesConfig `yaml:"sources"`
	Terms   TermsConfig   `yaml:"terms"`
}

// DocsConfig locates the documentation collections.
type DocsConfig struct {
	// Dir is the documentation root, relative to the project root.
	Dir string `yaml:"dir"`
	// Features, Interfaces and Shared are subdirectories of Dir.
	Features   string `yaml:"features"`
	Interfaces string `yaml:"interfaces"`
	Shared     string `yaml:"shared"`
}

// IndexConfig configures the persisted reference index.
type IndexConfig struct {
	// Path is where the snapshot is written, relative to the project root.
	Path string `yaml:"path"`
}

// SourcesConfig configures source enumeration and parsing.
type SourcesConfig struct {
	// Exclude holds doublestar patterns matched against root-relative paths.
	Exclude []string `yaml:"exclude,omitempty"`
	// ConfigFiles are additional file names always classified as config.
	ConfigFiles []string `yaml:"config_files,omitempty"`
	// MaxFileSize skips parsing files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// CacheSize bounds the number of cached parse results.
	CacheSize int `yaml:"cache_size"`
}

// TermsConfig configures term validation.
type TermsConfig struct {
	// SimilarityThreshold flags two definitions as duplicates when their
	// similarity score is at or above this value.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Docs: DocsConfig{
			Dir:        "docs",
			Features:   "features",
			Interfaces: "interfaces",
			Shared:     "shared",
		},
		Index: IndexConfig{
			Path: ".docref/reference-index.json",
		},
		Sources: SourcesConfig{
			MaxFileSize: 1_000_000,
			CacheSize:   4096,
		},
		Terms: TermsConfig{
			SimilarityThreshold: 0.8,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, p := range map[string]string{
		"docs.dir":        c.Docs.Dir,
		"docs.features":   c.Docs.Features,
		"docs.interfaces": c.Docs.Interfaces,
		"docs.shared":     c.Docs.Shared,
		"index.path":      c.Index.Path,
	} {
		if p == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, name)
		}
		if !isLocal(p) {
			return fmt.Errorf("%w: %s must be a path inside the project root, got %q", ErrInvalid, name, p)
		}
	}
	if c.Terms.SimilarityThreshold <= 0 || c.Terms.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: terms.similarity_threshold must be in (0, 1]", ErrInvalid)
	}
	if c.Sources.CacheSize < 0 {
		return fmt.Errorf("%w: sources.cache_size must not be negative", ErrInvalid)
	}
	return nil
}

// FeaturesDir returns the slash-separated features collection path.
func (c *Config) FeaturesDir() string { return path.Join(c.Docs.Dir, c.Docs.Features) }

// InterfacesDir returns the slash-separated interfaces collection path.
func (c *Config) InterfacesDir() string { return path.Join(c.Docs.Dir, c.Docs.Interfaces) }

// SharedDir returns the slash-separated shared-types collection path.
func (c *Config) SharedDir() string { return path.Join(c.Docs.Dir, c.Docs.Shared) }

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge copies non-zero values from other into c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Docs.Dir != "" {
		c.Docs.Dir = other.Docs.Dir
	}
	if other.Docs.Features != "" {
		c.Docs.Features = other.Docs.Features
	}
	if other.Docs.Interfaces != "" {
		c.Docs.Interfaces = other.Docs.Interfaces
	}
	if other.Docs.Shared != "" {
		c.Docs.Shared = other.Docs.Shared
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}

	if len(other.Sources.Exclude) > 0 {
		c.Sources.Exclude = other.Sources.Exclude
	}
	if len(other.Sources.ConfigFiles) > 0 {
		c.Sources.ConfigFiles = other.Sources.ConfigFiles
	}
	if other.Sources.MaxFileSize != 0 {
		c.Sources.MaxFileSize = other.Sources.MaxFileSize
	}
	if other.Sources.CacheSize != 0 {
		c.Sources.CacheSize = other.Sources.CacheSize
	}

	if other.Terms.SimilarityThreshold != 0 {
		c.Terms.SimilarityThreshold = other.Terms.SimilarityThreshold
	}
}

func isLocal(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
