package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/finledger/internal/logger"
)

// FileName is the config file at the root of a project.
const FileName = "finledger.yaml"

// Storage drivers. The in-memory store is not offered: every command runs
// in its own process, so nothing it recorded would survive.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// MaxBatchSize bounds import.batch_size.
const MaxBatchSize = 100_000

const (
	defaultBatchSize = 500
	defaultUploadDir = "uploads"
	defaultCSVPath   = "data"
	defaultDBPath    = "finledger.db"
)

// Config represents the top-level finledger.yaml configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Import  ImportConfig  `yaml:"import"`
	Log     LogConfig     `yaml:"log"`
	Git     GitConfig     `yaml:"git"`
}

// ProjectConfig identifies the ledger.
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// StorageConfig selects the store adapter. Path is a directory for csv and
// a database file for sqlite, relative to the project root.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// UploadConfig locates the directory import files are read from.
type UploadConfig struct {
	Directory string `yaml:"directory"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	BatchSize        int  `yaml:"batch_size"`
	EnforceOverdraft bool `yaml:"enforce_overdraft"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a finledger.yaml file from disk, fills unset fields with
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(name string) *Config {
	cfg := &Config{
		Project: ProjectConfig{Name: name},
		Storage: StorageConfig{Driver: DriverCSV},
		Log:     LogConfig{Level: "info"},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "finledger",
			AuthorEmail: "finledger@localhost",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. The storage path default depends on
// the driver.
func (c *Config) ApplyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverCSV
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case DriverCSV:
			c.Storage.Path = defaultCSVPath
		case DriverSQLite:
			c.Storage.Path = defaultDBPath
		}
	}
	if c.Upload.Directory == "" {
		c.Upload.Directory = defaultUploadDir
	}
	if c.Import.BatchSize == 0 {
		c.Import.BatchSize = defaultBatchSize
	}
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverCSV, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Import.BatchSize < 0 {
		return errors.New("import.batch_size: must not be negative")
	}
	if c.Import.BatchSize > MaxBatchSize {
		return fmt.Errorf("import.batch_size: must not exceed %d", MaxBatchSize)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Resolve returns p joined to root unless p is absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
