package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when QMS_CONFIG_PATH is unset and the file exists.
const DefaultPath = ".qms/config.yaml"

// Config defines qms configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Transport TransportConfig   `yaml:"transport"`
	Auth      AuthConfig        `yaml:"auth"`
	DB        DBConfig          `yaml:"db"`
	Log       LogConfig         `yaml:"log"`
	Agents    AgentsConfig      `yaml:"agents"`
	Users     map[string]string `yaml:"users"`
	// DefaultUser acts for MCP calls that name no user when auth is off.
	DefaultUser string `yaml:"default_user"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type AgentsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		DB: DBConfig{
			Path: ".qms/qms.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Agents: AgentsConfig{
			Dir: ".claude/agents",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv("QMS_CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := loadFromFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("QMS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("QMS_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid QMS_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("QMS_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = strings.ToLower(mode)
	}
	if enabled := os.Getenv("QMS_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid QMS_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if dbPath := os.Getenv("QMS_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("QMS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("QMS_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if dir := os.Getenv("QMS_AGENTS_DIR"); dir != "" {
		cfg.Agents.Dir = dir
	}
	if user := os.Getenv("QMS_USER"); user != "" {
		cfg.DefaultUser = user
	}
	return nil
}

// Validate checks values that env parsing cannot.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q: want stdio or http", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
