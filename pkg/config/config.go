package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before any file or environment overrides.
const (
	DefaultListen         = ":8080"
	DefaultRequestTimeout = 120 * time.Second
	DefaultEventTimeout   = 60 * time.Second
	DefaultMaxBodyBytes   = 1 << 20 // 1 MiB
	DefaultRateLimit      = 10.0
	DefaultRateBurst      = 20
	DefaultMaxInFlight    = 64
	DefaultLogDir         = "logs"
	DefaultLogLevel       = "info"
)

// Config holds the relay service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Flow    FlowConfig    `yaml:"flow"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener and its protection limits.
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	MaxInFlight    int           `yaml:"max_in_flight"`
}

// FlowConfig identifies the Bedrock flow the relay fronts.
type FlowConfig struct {
	Region       string        `yaml:"region"`
	FlowID       string        `yaml:"flow_id"`
	FlowAliasID  string        `yaml:"flow_alias_id"`
	EventTimeout time.Duration `yaml:"event_timeout"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns a config populated with defaults only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         DefaultListen,
			RequestTimeout: DefaultRequestTimeout,
			MaxBodyBytes:   DefaultMaxBodyBytes,
			RateLimit:      DefaultRateLimit,
			RateBurst:      DefaultRateBurst,
			MaxInFlight:    DefaultMaxInFlight,
		},
		Flow: FlowConfig{
			EventTimeout: DefaultEventTimeout,
		},
		Logging: LoggingConfig{
			Dir:   DefaultLogDir,
			Level: DefaultLogLevel,
		},
	}
}

// Load builds the effective config: defaults, then the YAML file at
// path if it exists, then environment overrides. An empty path skips
// the file step entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadAndMerge(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and limits are sane.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Flow.FlowID == "" {
		return fmt.Errorf("flow.flow_id is required (set RELAY_FLOW_ID or flow.flow_id)")
	}
	if c.Flow.FlowAliasID == "" {
		return fmt.Errorf("flow.flow_alias_id is required (set RELAY_FLOW_ALIAS_ID or flow.flow_alias_id)")
	}
	if c.Flow.Region == "" {
		return fmt.Errorf("flow.region is required (set AWS_REGION or flow.region)")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Flow.EventTimeout <= 0 {
		return fmt.Errorf("flow.event_timeout must be positive, got %s", c.Flow.EventTimeout)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.MaxInFlight <= 0 {
		return fmt.Errorf("server.max_in_flight must be positive, got %d", c.Server.MaxInFlight)
	}
	return nil
}

// loadAndMerge overlays the YAML file at path onto cfg. A missing
// file is not an error; a malformed one is.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
