package gateway

import (
	"time"

	"audittracker/internal/config"
)

// Config holds processor client configuration.
type Config struct {
	BaseURL           string        // processor base URL, e.g. http://processor:8000
	APIKey            string        // bearer token sent with every request (optional)
	Timeout           time.Duration // per-request HTTP timeout (default: 10s)
	RequestsPerSecond float64       // shared request rate across all jobs (default: 20, <0 = unlimited)
	Burst             int           // limiter burst (default: 10)
	BreakerThreshold  int           // consecutive failures before failing fast (default: 5)
	BreakerCooldown   time.Duration // time before a trial request (default: 15s)
}

// LoadConfigFromEnv loads client configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		BaseURL:           config.GetEnv("PROCESSOR_URL", ""),
		APIKey:            config.GetSecretFile(config.GetEnv("PROCESSOR_API_KEY_FILE", "")),
		Timeout:           config.GetDurationEnv("PROCESSOR_TIMEOUT", 10*time.Second),
		RequestsPerSecond: config.GetFloatEnv("PROCESSOR_RPS", 20),
		Burst:             config.GetIntEnv("PROCESSOR_BURST", 10),
		BreakerThreshold:  config.GetIntEnv("PROCESSOR_BREAKER_THRESHOLD", 5),
		BreakerCooldown:   config.GetDurationEnv("PROCESSOR_BREAKER_COOLDOWN", 15*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 15 * time.Second
	}
	return c
}
