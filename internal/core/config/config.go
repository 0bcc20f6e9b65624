// Package config handles configuration loading and validation for mqview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Bridge BridgeConfig `yaml:"bridge"`
	Client ClientConfig `yaml:"client"`
	// Brokers are connected on bridge start in addition to the brokers
	// remembered in the data directory.
	Brokers []string `yaml:"brokers"`
	DataDir string   `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the bridge HTTP listener.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
	Metrics   bool   `yaml:"metrics"`
}

// BridgeConfig configures MQTT connections held by the bridge.
type BridgeConfig struct {
	KeepAlive       time.Duration `yaml:"keep_alive"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxPayloadBytes int           `yaml:"max_payload_bytes"`
	HistoryLimit    int           `yaml:"history_limit"`
	AutoReconnect   bool          `yaml:"auto_reconnect"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:  "127.0.0.1:3030",
			Metrics: true,
		},
		Bridge: BridgeConfig{
			KeepAlive:       5 * time.Second,
			ConnectTimeout:  10 * time.Second,
			MaxPayloadBytes: 1_000_000,
			HistoryLimit:    100,
			AutoReconnect:   true,
		},
		Client: ClientConfig{
			URL: "ws://127.0.0.1:3030/ws",
		},
		Brokers: []string{},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
	if c.Bridge.KeepAlive == 0 {
		c.Bridge.KeepAlive = defaults.Bridge.KeepAlive
	}
	if c.Bridge.ConnectTimeout == 0 {
		c.Bridge.ConnectTimeout = defaults.Bridge.ConnectTimeout
	}
	if c.Bridge.MaxPayloadBytes == 0 {
		c.Bridge.MaxPayloadBytes = defaults.Bridge.MaxPayloadBytes
	}
	if c.Client.URL == "" {
		c.Client.URL = defaults.Client.URL
	}
}

// Validate checks that the configuration is usable. It returns
// criterio.FieldErrors describing every invalid field.
func (c *Config) Validate() error {
	return c.fieldErrors().ToError()
}

// BrokersFile returns the path to the remembered brokers list.
func (c *Config) BrokersFile() string {
	return filepath.Join(c.DataDir, "brokers.json")
}

// CommandsDir returns the directory holding saved publish commands.
func (c *Config) CommandsDir() string {
	return filepath.Join(c.DataDir, "commands")
}

// PipelinesDir returns the directory holding saved pipelines.
func (c *Config) PipelinesDir() string {
	return filepath.Join(c.DataDir, "pipelines")
}
