package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the chat client configuration loaded from a TOML file.
type Config struct {
	Server ServerConfig `toml:"server"`
	Chat   ChatConfig   `toml:"chat"`
	UI     UIConfig     `toml:"ui"`
}

// ServerConfig contains connection settings for the MusicCRS backend.
type ServerConfig struct {
	URL            string `toml:"url"`
	ConnectTimeout int    `toml:"connect_timeout_seconds"`
}

// ChatConfig contains the local chat identity.
type ChatConfig struct {
	Username string `toml:"username"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	ShowCounts bool   `toml:"show_counts"`
	LogLevel   string `toml:"log_level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
