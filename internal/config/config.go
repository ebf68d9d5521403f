// Package config loads docindex settings from defaults, an optional
// .docindex.toml in the root, .env files and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

// ConfigFilename is the optional per-root config file
const ConfigFilename = ".docindex.toml"

// Store backends
const (
	StoreCSV    = storage.BackendCSV
	StoreSQLite = storage.BackendSQLite
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting. Fields without a toml key can only come from
// the environment.
type Config struct {
	Root string `toml:"-" ignored:"true"`

	DocxConverter  string        `toml:"docx_converter" envconfig:"DOCINDEX_DOCX_CONVERTER"`
	Store          string        `toml:"store" envconfig:"DOCINDEX_STORE"`
	Workers        int           `toml:"workers" envconfig:"DOCINDEX_WORKERS"`
	Exclude        []string      `toml:"exclude" envconfig:"DOCINDEX_EXCLUDE"`
	Policy         string        `toml:"failed_conversion_policy" envconfig:"DOCINDEX_FAILED_CONVERSION_POLICY"`
	KeepUnreadable bool          `toml:"keep_unreadable" envconfig:"DOCINDEX_KEEP_UNREADABLE"`
	Encoding       string        `toml:"encoding" envconfig:"DOCINDEX_ENCODING"`
	LogLevel       string        `toml:"log_level" envconfig:"DOCINDEX_LOG_LEVEL"`
	WatchDebounce  time.Duration `toml:"-" envconfig:"DOCINDEX_WATCH_DEBOUNCE"`

	// Converter commands
	MarkitdownCommand []string `toml:"markitdown_command" envconfig:"DOCINDEX_MARKITDOWN_COMMAND"`
	SuperdocScript    string   `toml:"superdoc_script" envconfig:"DOCINDEX_SUPERDOC_SCRIPT"`

	// Netdocs
	MattersDB   string `toml:"-" envconfig:"MATTERS_DB"`
	NDAPIKey    string `toml:"-" envconfig:"ND_API_KEY"`
	NDHelperURL string `toml:"-" envconfig:"NDHELPER_URL"`
	DownloadDir string `toml:"download_dir" envconfig:"DOCINDEX_DOWNLOAD_DIR"`

	// Artifact removal
	ArtifactAPIToken string `toml:"-" envconfig:"ARTIFACT_API_TOKEN"`
	ArtifactURL      string `toml:"-" envconfig:"ARTIFACT_URL"`
}

// Default returns the built-in settings for root
func Default(root string) *Config {
	return &Config{
		Root:          root,
		DocxConverter: string(types.DefaultDocxConverter),
		Store:         StoreCSV,
		Workers:       runtime.NumCPU(),
		Policy:        "advance",
		Encoding:      "cl100k_base",
		LogLevel:      "info",
		WatchDebounce: 2 * time.Second,
		DownloadDir:   ".",
	}
}

// Load layers defaults, a TOML file, .env files and the environment, then
// validates the result. An empty path selects root/.docindex.toml, which may
// be absent; an explicit path must exist. Command-line flags are applied by
// the caller.
func Load(root, path string) (*Config, error) {
	cfg := Default(root)

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	} else if err := cfg.LoadFile(filepath.Join(root, ConfigFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Missing .env files are fine; variables may come from the shell
	_ = godotenv.Load(filepath.Join(root, ".env"))
	if abs, err := filepath.Abs(root); err == nil {
		if cwd, err := os.Getwd(); err == nil && cwd != abs {
			_ = godotenv.Load(".env")
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks enumerated values and ranges
func (c *Config) Validate() error {
	if _, err := types.ParseDocxConverter(c.DocxConverter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Store {
	case StoreCSV, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store %q (want %s or %s)", ErrInvalidConfig, c.Store, StoreCSV, StoreSQLite)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	switch c.Policy {
	case "", "advance", "retry":
	default:
		return fmt.Errorf("%w: unknown failed_conversion_policy %q", ErrInvalidConfig, c.Policy)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("%w: watch debounce must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Converter returns the parsed DOCX converter
func (c *Config) Converter() types.DocxConverter {
	conv, err := types.ParseDocxConverter(c.DocxConverter)
	if err != nil {
		return types.DefaultDocxConverter
	}
	return conv
}

// ParseLevel maps debug, info, warn or error to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger returns a text logger on w at the configured level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
