package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".sitebridge"
	configFileName = "config.yaml"
	tokenDirName   = "tokens"
)

// ConfigDir returns the sitebridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadLocal loads configuration from the local config file.
// Values in the file win; environment variables fill fields the file leaves empty, then defaults apply.
func LoadLocal(ctx context.Context) (*Settings, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	return loadFile(ctx, configPath, envconfig.OsLookuper())
}

// loadFile reads the config file at path and completes it through lookuper.
func loadFile(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s (run 'sitebridge init' to create)", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// TokenDir returns the directory holding per-provider refresh token files.
func TokenDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenDirName), nil
}
