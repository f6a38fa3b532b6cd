package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are the configuration file names looked up in the working
// directory, in order, when no explicit path is given.
var DefaultFiles = []string{
	"dockerbuild.yml",
	"dockerbuild.yaml",
	"dockerbuild.toml",
}

const defaultBuilder = "docker"

// ErrNotFound is returned by Load when no configuration file exists.
var ErrNotFound = errors.New("configuration file not found")

// Format selects the document syntax of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file extension. Anything that is not
// .toml is treated as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Config is the parsed dockerbuild configuration.
type Config struct {
	// Version is the schema version. Optional; must be 1 when set.
	Version int `yaml:"version" toml:"version"`

	// Requires is a semver constraint the running tool must satisfy,
	// e.g. ">= 0.2.0".
	Requires string `yaml:"requires" toml:"requires"`

	// Builder is the build tool executable. Default: docker.
	Builder string `yaml:"builder" toml:"builder"`

	// Ignore lists directory globs skipped during discovery. "**" matches
	// any number of path segments; patterns without "/" match base names.
	Ignore []string `yaml:"ignore" toml:"ignore"`

	// GitIgnore also skips paths ignored by the repository's .gitignore files.
	GitIgnore bool `yaml:"gitignore" toml:"gitignore"`

	// EnvFile is read for ${VAR} expansion in args and build_args.
	// Default: .env next to the config file, optional.
	EnvFile string `yaml:"env_file" toml:"env_file"`

	// Images is the ordered list of image entries.
	Images []Entry `yaml:"images" toml:"images"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-" toml:"-"`

	// Dir is the directory the configuration was loaded from.
	Dir string `yaml:"-" toml:"-"`

	warnings []string
}

// ValidationError reports a malformed or invalid configuration document.
// Each problem is prefixed with the offending field path where known.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Find returns the first default configuration file present in dir.
func Find(dir string) (string, error) {
	for _, name := range DefaultFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q does not exist", ErrNotFound, DefaultFiles[0])
}

// Load reads, parses and validates a configuration file.
// If path is empty, the default files are looked up in the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		path, err = Find(wd)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q does not exist", ErrNotFound, path)
		}
		return nil, err
	}

	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs
	cfg.Dir = filepath.Dir(abs)

	warnings, err := Validate(cfg)
	if err != nil {
		return nil, err
	}
	cfg.warnings = warnings
	return cfg, nil
}

// Parse decodes a configuration document. Unknown keys and type mismatches
// are rejected with a *ValidationError. Parse does not run Validate.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, decodeError(err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &ValidationError{Problems: []string{"document is empty"}}
			}
			return nil, decodeError(err)
		}
	}

	if cfg.Builder == "" {
		cfg.Builder = defaultBuilder
	}
	return cfg, nil
}

// decodeError converts a decoder failure into a ValidationError, keeping the
// per-field detail the decoders provide.
func decodeError(err error) error {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Problems: typeErr.Errors}
	}

	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return &ValidationError{Problems: []string{strings.TrimSpace(strictErr.String())}}
	}

	var tomlErr *toml.DecodeError
	if errors.As(err, &tomlErr) {
		row, col := tomlErr.Position()
		return &ValidationError{Problems: []string{fmt.Sprintf("line %d, column %d: %s", row, col, tomlErr.Error())}}
	}

	return &ValidationError{Problems: []string{err.Error()}}
}

// Warnings returns the soft issues found while loading.
func (c *Config) Warnings() []string {
	return c.warnings
}
