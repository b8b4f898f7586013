package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AgentSpec names one agent the supervisor should spawn.
type AgentSpec struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Kind string `json:"kind" yaml:"kind" toml:"kind"`
}

// RedisConfig enables the bus relay and bridge when Addr is set.
type RedisConfig struct {
	Addr   string `json:"addr" yaml:"addr" toml:"addr"`
	Prefix string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Config holds runtime parameters.
type Config struct {
	LogLevel       string      `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogConsole     bool        `json:"log_console" yaml:"log_console" toml:"log_console"`
	Addr           string      `json:"addr" yaml:"addr" toml:"addr"`
	AllowedOrigins []string    `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	Redis          RedisConfig `json:"redis" yaml:"redis" toml:"redis"`
	Agents         []AgentSpec `json:"agents" yaml:"agents" toml:"agents"`
	// Events lists types bound to the default logging handler in addition
	// to click and submit.
	Events []string `json:"events" yaml:"events" toml:"events"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Addr:     ":8080",
		Redis:    RedisConfig{Prefix: "ezagent.events"},
		Agents:   []AgentSpec{{ID: "observer", Kind: "log"}},
	}
}

// Load reads a configuration file based on its extension and applies it over
// Default. Supports .yaml/.yml, .json and .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks agent ids are present and unique.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" || a.Kind == "" {
			return fmt.Errorf("agents[%d]: id and kind are required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}
	if c.Redis.Addr != "" && c.Redis.Prefix == "" {
		return fmt.Errorf("redis.prefix is required when redis.addr is set")
	}
	return nil
}
