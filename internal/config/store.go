package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "nanrtt"
	configFile = "config.yaml"
)

// fileMutex serialises writes to config files.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/nanrtt or $HOME/.config/nanrtt
//   - macOS: $HOME/.config/nanrtt
//   - Windows: %LOCALAPPDATA%\nanrtt
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the default configuration file. A missing file yields the
// defaults.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile reads, defaults and validates the configuration at path. A
// missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &c, nil
}

// Save writes c to the default configuration file.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo writes c to path atomically, creating the directory if needed.
func (c *Config) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte(`# nanrtt configuration file
#
# anchors maps device names to fixed positions in metres. A subscribing
# node locates itself from the distances to the anchors it can range.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// CreateDefaultConfig writes a configuration with three example anchors to
// path.
func CreateDefaultConfig(path string) (*Config, error) {
	c := NewConfig()
	c.SetDefaultAnchors()
	if err := c.SaveTo(path); err != nil {
		return nil, err
	}
	return c, nil
}
