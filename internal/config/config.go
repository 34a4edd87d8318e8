// Package config provides configuration file support for sonda.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the sonda configuration file structure.
type Config struct {
	// Defaults are applied when flags or command options are not
	// specified
	Defaults Defaults `yaml:"defaults"`
}

// Defaults holds default values for engine and probe parameters.
type Defaults struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Output
	Report  bool `yaml:"report"`
	NoColor bool `yaml:"no_color"`

	// Probe parameters used when a send-probe command omits them
	TTL        int           `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	PacketSize int           `yaml:"packet_size"`

	// Destination ports used when a send-probe command omits them
	UDPPort int `yaml:"udp_port"`
	TCPPort int `yaml:"tcp_port"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			LogLevel:   "warning",
			Report:     false,
			NoColor:    false,
			TTL:        64,
			Timeout:    10 * time.Second,
			PacketSize: 64,
			UDPPort:    33434, // classic traceroute base port
			TCPPort:    80,
		},
	}
}

// Load reads configuration from the default config file locations.
// It searches in order:
//  1. ./sonda.yaml (current directory)
//  2. ~/.config/sonda/config.yaml (Linux/macOS)
//  3. %APPDATA%\sonda\config.yaml (Windows)
//
// If no config file is found, returns default configuration.
func Load() (*Config, error) {
	paths := getConfigPaths()

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to the default user config path.
func (c *Config) Save() error {
	return c.SaveTo(getUserConfigPath())
}

// SaveTo writes the configuration to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// getConfigPaths returns the list of config file paths to search.
func getConfigPaths() []string {
	paths := []string{
		"sonda.yaml",
		"sonda.yml",
		".sonda.yaml",
		".sonda.yml",
	}

	userPath := getUserConfigPath()
	if userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

// getUserConfigPath returns the user-specific config file path.
func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "sonda", "config.yaml")
		}
	default: // Linux, macOS, etc.
		home, err := os.UserHomeDir()
		if err == nil {
			xdgConfig := os.Getenv("XDG_CONFIG_HOME")
			if xdgConfig != "" {
				return filepath.Join(xdgConfig, "sonda", "config.yaml")
			}
			return filepath.Join(home, ".config", "sonda", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the path where user config would be saved.
func GetConfigPath() string {
	return getUserConfigPath()
}

// GenerateExample generates an example configuration file content.
func GenerateExample() string {
	return `# sonda Configuration File
# Location: ~/.config/sonda/config.yaml (Linux/macOS)
#           ./sonda.yaml (current directory)

defaults:
  # Logging level: debug, info, warning, error
  log_level: warning

  # Print a session summary table to stderr on exit
  report: false

  # Disable colored summary output
  no_color: false

  # Probe parameters applied when a send-probe command omits them
  ttl: 64
  timeout: 10s
  packet_size: 64

  # Destination ports applied when a send-probe command omits them
  udp_port: 33434
  tcp_port: 80
`
}
