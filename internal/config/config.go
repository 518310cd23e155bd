// Package config loads folio settings from a YAML file on top of defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Progress backends.
const (
	BackendBolt = "bolt"
	BackendFile = "file"
)

// Config holds every tunable setting.
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	PageSize int      `yaml:"page_size"`
	User     string   `yaml:"user"`
	Log      Log      `yaml:"log"`
	PDF      PDF      `yaml:"pdf"`
	EPUB     EPUB     `yaml:"epub"`
	Progress Progress `yaml:"progress"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// PDF holds the baseline gaps used to rebuild paragraphs.
type PDF struct {
	ParagraphGap float64 `yaml:"paragraph_gap"`
	LineGap      float64 `yaml:"line_gap"`
}

type EPUB struct {
	Workers int `yaml:"workers"`
}

type Progress struct {
	Backend string `yaml:"backend"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  StateDir(),
		PageSize: 1000,
		User:     defaultUser(),
		Log:      Log{Level: "info", Format: "console"},
		PDF:      PDF{ParagraphGap: 10, LineGap: 1},
		EPUB:     EPUB{Workers: 4},
		Progress: Progress{Backend: BackendBolt},
	}
}

// Load reads path over the defaults. An empty path means DefaultPath, which
// is allowed not to exist; an explicit path must.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, nil
	case err != nil:
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

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data_dir is required")
	case c.PageSize < 1:
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	case c.EPUB.Workers < 1:
		return fmt.Errorf("epub.workers must be positive, got %d", c.EPUB.Workers)
	case c.PDF.LineGap <= 0 || c.PDF.ParagraphGap <= 0:
		// The assembler treats zero as "use the default".
		return errors.New("pdf gaps must be positive")
	case c.PDF.LineGap >= c.PDF.ParagraphGap:
		return fmt.Errorf("pdf.line_gap (%g) must be below pdf.paragraph_gap (%g)", c.PDF.LineGap, c.PDF.ParagraphGap)
	}
	switch c.Progress.Backend {
	case BackendBolt, BackendFile:
	default:
		return fmt.Errorf("unknown progress.backend %q", c.Progress.Backend)
	}
	return nil
}

// DBPath is the bbolt database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "folio.db")
}

// UploadDir is where raw uploads wait until extraction consumes them.
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// StateDir returns XDG_STATE_HOME/folio or ~/.local/state/folio
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "folio")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "folio")
}

// DefaultPath returns XDG_CONFIG_HOME/folio/config.yaml or
// ~/.config/folio/config.yaml
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "folio", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "folio", "config.yaml")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
