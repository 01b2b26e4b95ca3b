package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - AUSTAGE_CONFIG_PATH: config file location (default: ~/.config/austage.toml)
//   - AUSTAGE_HOME: base directory for austage data (default: ~/.local/share/austage)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"backup_root": filepath.Join(baseDir, "backup"),
	}, nil
}

// getConfigPath returns the config file path, checking AUSTAGE_CONFIG_PATH
// env var first, then falling back to the default ~/.config/austage.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("AUSTAGE_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "austage.toml"), nil
}

// getBaseDir returns the base directory for austage data, checking
// AUSTAGE_HOME env var first, then falling back to the XDG default
// ~/.local/share/austage.
func getBaseDir() (string, error) {
	if path := os.Getenv("AUSTAGE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "austage"), nil
}
