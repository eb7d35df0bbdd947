package notify

import (
	"time"

	"audittracker/internal/config"
)

// Delivery defaults that rarely need tuning.
const (
	defaultMaxRetries       = 3
	defaultInitialBackoff   = 200 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultSource           = "audittracker"
)

// Config holds outcome notification configuration.
type Config struct {
	URLs        []string      // webhooks receiving outcome events; empty disables notifications
	SigningKey  string        // HMAC key for X-Signature-256 (optional)
	Source      string        // CloudEvents source attribute (default: audittracker)
	BufferSize  int           // pending events buffer (default: 1000)
	Workers     int           // concurrent delivery goroutines (default: 4)
	HTTPTimeout time.Duration // per-request timeout (default: 10s)
}

// Enabled reports whether any destination is configured.
func (c Config) Enabled() bool {
	return len(c.URLs) > 0
}

// LoadConfigFromEnv loads notification configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		URLs:        config.GetListEnv("NOTIFY_URL"),
		SigningKey:  config.GetSecretFile(config.GetEnv("NOTIFY_KEY_FILE", "")),
		Source:      config.GetEnv("NOTIFY_SOURCE", defaultSource),
		BufferSize:  config.GetIntEnv("NOTIFY_BUFFER_SIZE", 1000),
		Workers:     config.GetIntEnv("NOTIFY_WORKERS", 4),
		HTTPTimeout: config.GetDurationEnv("NOTIFY_HTTP_TIMEOUT", 10*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = defaultSource
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}
