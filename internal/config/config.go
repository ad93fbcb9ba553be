package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Relay   RelayConfig   `yaml:"relay"`
	Storage StorageConfig `yaml:"storage"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RelayConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReapInterval      time.Duration `yaml:"reap_interval"`
	SessionRetention  time.Duration `yaml:"session_retention"`
	SendQueueSize     int           `yaml:"send_queue_size"`
	ObserverQueueSize int           `yaml:"observer_queue_size"`
	// 0 means no limit.
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	// Empty disables navigation recording.
	RecordDir string `yaml:"record_dir"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Relay: RelayConfig{
			HeartbeatInterval: 30 * time.Second,
			ReapInterval:      30 * time.Minute,
			SessionRetention:  2 * time.Hour,
			SendQueueSize:     256,
			ObserverQueueSize: 1024,
		},
		Storage: StorageConfig{
			DBPath: ":memory:",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, but an empty path or a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides settings from PORT, DB_PATH and RECORD_DIR.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := getenv("RECORD_DIR"); v != "" {
		c.Storage.RecordDir = v
	}
	return c.Validate()
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.Relay.ReapInterval <= 0 || c.Relay.SessionRetention <= 0 {
		return fmt.Errorf("reap_interval and session_retention must be positive")
	}
	if c.Relay.SendQueueSize <= 0 {
		return fmt.Errorf("send_queue_size must be positive")
	}
	if c.Relay.ObserverQueueSize <= 0 {
		return fmt.Errorf("observer_queue_size must be positive")
	}
	if c.Relay.MaxArtifactBytes < 0 {
		return fmt.Errorf("max_artifact_bytes must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
