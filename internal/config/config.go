// Package config loads the optional dbtsel.yml project configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "dbtsel.yml"

	// EnvVar, when set, is the full path to the config file.
	EnvVar = "DBTSEL_CONFIG"
)

// Evaluation backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the project configuration.
//
// Relative paths are resolved against the directory of the file they were
// read from.
type Config struct {
	// Source is the absolute path of the loaded file, empty for defaults.
	Source string

	Manifest          string
	Selectors         string
	IndirectSelection selector.IndirectSelection
	Backend           string
	Database          string
}

// file is the on-disk shape. Unknown keys are rejected.
type file struct {
	Manifest          string `yaml:"manifest"`
	Selectors         string `yaml:"selectors"`
	IndirectSelection string `yaml:"indirect_selection"`
	Backend           string `yaml:"backend"`
	Database          string `yaml:"database"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		IndirectSelection: selector.DefaultIndirectSelection,
		Backend:           BackendMemory,
	}
}

// Load reads the config at path. An empty path looks up DBTSEL_CONFIG, then
// ./dbtsel.yml; when neither exists the defaults are returned.
func Load(path string) (Config, error) {
	if path == "" {
		found, err := locate()
		if err != nil {
			return Config{}, err
		}
		if found == "" {
			log.Debugf("no %s found, using defaults", FileName)
			return Default(), nil
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}
	cfg.Source = abs
	cfg.resolve(filepath.Dir(abs))
	log.Debugf("using config file: %s", abs)
	return cfg, nil
}

// Parse decodes config YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var raw file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Manifest = raw.Manifest
	cfg.Selectors = raw.Selectors
	cfg.Database = raw.Database
	if raw.Backend != "" {
		cfg.Backend = raw.Backend
	}
	if raw.IndirectSelection != "" {
		mode, err := selector.ParseIndirectSelection(raw.IndirectSelection)
		if err != nil {
			return Config{}, fmt.Errorf("indirect_selection: %w", err)
		}
		cfg.IndirectSelection = mode
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field combinations.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Database == "" {
			return fmt.Errorf("backend %q requires database", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendMemory, BackendSQLite)
	}
	return nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Manifest, &c.Selectors, &c.Database} {
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// locate returns the config path from DBTSEL_CONFIG or the working
// directory, or "" when there is none.
func locate() (string, error) {
	if cfgPath := os.Getenv(EnvVar); cfgPath != "" {
		info, err := os.Stat(cfgPath)
		if err != nil {
			return "", fmt.Errorf("config file not found at %s path: %s", EnvVar, cfgPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s points to a directory: %s", EnvVar, cfgPath)
		}
		return cfgPath, nil
	}

	if info, err := os.Stat(FileName); err == nil && !info.IsDir() {
		return FileName, nil
	}
	return "", nil
}
