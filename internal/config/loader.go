package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = "docref.yaml"
	// EnvFile is read from the project root for DOCREF_* overrides.
	EnvFile = ".env"
)

// Environment variables consulted by the loader.
const (
	EnvDocsDir             = "DOCREF_DOCS_DIR"
	EnvIndexPath           = "DOCREF_INDEX_PATH"
	EnvSimilarityThreshold = "DOCREF_SIMILARITY_THRESHOLD"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
	getenv func(string) string
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, getenv: os.Getenv}
}

// Load resolves configuration for the project at root:
//  1. defaults
//  2. explicit file, or docref.yaml in root
//  3. .env in root
//  4. process environment (wins over .env)
func (l *Loader) Load(root, explicitPath string) (*Config, error) {
	config := DefaultConfig()

	path := explicitPath
	if path == "" {
		path = filepath.Join(root, ProjectConfigFile)
	}
	fileConfig, err := LoadFromFile(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded project config", slog.String("path", path))
		config.Merge(fileConfig)
	case explicitPath == "" && errors.Is(err, fs.ErrNotExist):
		l.logger.Debug("No project config found", slog.String("path", path))
	default:
		return nil, err
	}

	env, err := godotenv.Read(filepath.Join(root, EnvFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to read env file", slog.String("path", filepath.Join(root, EnvFile)), slog.String("error", err.Error()))
	}
	lookup := func(key string) string {
		if v := l.getenv(key); v != "" {
			return v
		}
		return env[key]
	}

	if err := applyEnv(config, lookup); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config, lookup func(string) string) error {
	if v := lookup(EnvDocsDir); v != "" {
		c.Docs.Dir = v
	}
	if v := lookup(EnvIndexPath); v != "" {
		c.Index.Path = v
	}
	if v := lookup(EnvSimilarityThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvSimilarityThreshold, v, err)
		}
		c.Terms.SimilarityThreshold = f
	}
	return nil
}
