// Package config provides configuration management for connectctl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir is the configuration directory name.
const ConfigDir = "connectctl"

// getConfigDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\connectctl
//   - Unix: ~/.config/connectctl (XDG standard)
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return "config"
	}
	return filepath.Join(configDir, "config")
}

// GetDefaultTokenPath returns the default token file path.
// This is where 'config init' saves the API key.
func GetDefaultTokenPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "token")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	configDir := getConfigDir()
	if configDir == "" {
		return fmt.Errorf("could not determine config directory")
	}
	return os.MkdirAll(configDir, 0700)
}

// LogDirectory returns the directory for log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\connectctl\logs
//   - Unix: ~/.config/connectctl/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "connectctl-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, ConfigDir, "logs")
	}

	if configDir := getConfigDir(); configDir != "" {
		return filepath.Join(configDir, "logs")
	}
	return filepath.Join(os.TempDir(), "connectctl-logs")
}

// DefaultLogFile returns the log file used when logging to file is enabled
// without an explicit path.
func DefaultLogFile() string {
	return filepath.Join(LogDirectory(), "connectctl.log")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
