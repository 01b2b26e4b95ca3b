package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for austage. Everything here is a
// default: command-line switches override config values, and both override
// what a staging URL carries.
type Config struct {
	LogDir  string        `toml:"log_dir"`
	Stage   StageConfig   `toml:"stage"`
	Backup  BackupConfig  `toml:"backup"`
	Package PackageConfig `toml:"package"`
	Exclude []string      `toml:"exclude"`
}

// StageConfig holds defaults for the staging endpoint.
type StageConfig struct {
	URL            string `toml:"url,omitempty"`
	Protocol       string `toml:"protocol,omitempty"`
	Host           string `toml:"host,omitempty"`
	Port           int    `toml:"port,omitempty"`
	User           string `toml:"user,omitempty"`
	BaseDir        string `toml:"base_dir,omitempty"`
	Subdirectory   string `toml:"subdirectory,omitempty"`
	Identity       string `toml:"identity,omitempty"`
	Authentication string `toml:"authentication,omitempty"`
	KnownHosts     string `toml:"known_hosts,omitempty"`
}

// BackupConfig holds the root directory under which pre-overwrite backups
// are collected.
type BackupConfig struct {
	Root string `toml:"root"`
}

// PackageConfig describes the preservation package being staged.
type PackageConfig struct {
	Title      string      `toml:"title,omitempty"`
	Manifest   string      `toml:"manifest,omitempty"`
	Parameters []Parameter `toml:"parameters,omitempty"`
}

// Parameter is one plugin parameter default recorded with the package.
type Parameter struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// NewConfig creates a new Config rooted at baseDir with default locations
// for logs and backups.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir: filepath.Join(baseDir, "log"),
		Backup: BackupConfig{
			Root: filepath.Join(baseDir, "backup"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. A missing file
// is not an error: every setting has a command-line switch, so the file is
// optional.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
