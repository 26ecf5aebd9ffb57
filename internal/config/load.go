package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// FileSystem abstracts file access for config loading so tests can
// substitute failing or in-memory implementations.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real filesystem.
type OSFS struct{}

// ReadFile reads a file from the OS filesystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the default filesystem implementation.
func DefaultFS() FileSystem {
	return OSFS{}
}

// ParseError describes a failure to parse a config file.
type ParseError struct {
	// Path is the file that failed to parse.
	Path string

	// Err is the underlying parse error.
	Err error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads configuration from the TOML file at path, applies
// environment variable overrides, and validates the result. An empty
// path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	return LoadWithFS(DefaultFS(), path)
}

// LoadWithFS is Load with an explicit filesystem.
func LoadWithFS(fsys FileSystem, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := fsys.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Missing file is fine; defaults plus environment apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, &ParseError{Path: path, Err: err}
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
