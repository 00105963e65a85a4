package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal env to make Validate pass without a config file
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RELAY_FLOW_ID", "FLOW123456")
	t.Setenv("RELAY_FLOW_ALIAS_ID", "ALIAS12345")
	t.Setenv("AWS_REGION", "us-east-1")
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.Equal(t, DefaultEventTimeout, cfg.Flow.EventTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
}

func TestLoadFromFile(t *testing.T) {
	setRequiredEnv(t)

	path := writeConfigFile(t, `
server:
  listen: ":9090"
  request_timeout: 30s
flow:
  event_timeout: 15s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Flow.EventTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// unset fields keep defaults
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
}

func TestEnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RELAY_LISTEN", ":7070")
	t.Setenv("RELAY_EVENT_TIMEOUT", "5s")

	path := writeConfigFile(t, `
server:
  listen: ":9090"
flow:
  event_timeout: 15s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Flow.EventTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
}

func TestLoadMalformedFile(t *testing.T) {
	setRequiredEnv(t)

	path := writeConfigFile(t, "server: [not a map")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing flow id", func(c *Config) { c.Flow.FlowID = "" }, true},
		{"missing alias id", func(c *Config) { c.Flow.FlowAliasID = "" }, true},
		{"missing region", func(c *Config) { c.Flow.Region = "" }, true},
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, true},
		{"zero request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, true},
		{"negative event timeout", func(c *Config) { c.Flow.EventTimeout = -time.Second }, true},
		{"zero max body bytes", func(c *Config) { c.Server.MaxBodyBytes = 0 }, true},
		{"zero max in flight", func(c *Config) { c.Server.MaxInFlight = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Flow.FlowID = "FLOW123456"
			cfg.Flow.FlowAliasID = "ALIAS12345"
			cfg.Flow.Region = "us-east-1"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
