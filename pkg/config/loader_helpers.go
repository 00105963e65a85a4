package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies environment variables on top of the
// merged config. Environment always wins over file values.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Listen, "RELAY_LISTEN")
	setDuration(&cfg.Server.RequestTimeout, "RELAY_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "RELAY_MAX_BODY_BYTES")

	setString(&cfg.Flow.Region, "AWS_REGION")
	setString(&cfg.Flow.FlowID, "RELAY_FLOW_ID")
	setString(&cfg.Flow.FlowAliasID, "RELAY_FLOW_ALIAS_ID")
	setDuration(&cfg.Flow.EventTimeout, "RELAY_EVENT_TIMEOUT")

	setString(&cfg.Logging.Dir, "RELAY_LOG_DIR")
	setString(&cfg.Logging.Level, "RELAY_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
