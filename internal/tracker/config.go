package tracker

import (
	"time"

	"audittracker/internal/config"
	"audittracker/pkg/backoff"
)

// Poll defaults.
const (
	DefaultMaxAttempts         = 60
	DefaultFastAttempts        = 5
	DefaultFastInterval        = time.Second
	DefaultSlowInterval        = 3 * time.Second
	DefaultQueryTimeout        = 10 * time.Second
	DefaultRetention           = 15 * time.Minute
	DefaultMaintenanceInterval = time.Minute
)

// Config holds polling and bookkeeping configuration.
type Config struct {
	MaxAttempts  int           // status queries per job before Timeout
	FastAttempts int           // attempts polled at FastInterval
	FastInterval time.Duration // delay after each fast attempt
	SlowInterval time.Duration // delay after every later attempt
	QueryTimeout time.Duration // per-query deadline; expiry counts as a transport error

	Retention           time.Duration // how long finished progress stays queryable
	MaintenanceInterval time.Duration // how often finished progress is pruned (0 disables)
}

// LoadConfigFromEnv loads tracker configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxAttempts:         config.GetIntEnv("POLL_MAX_ATTEMPTS", DefaultMaxAttempts),
		FastAttempts:        config.GetIntEnv("POLL_FAST_ATTEMPTS", DefaultFastAttempts),
		FastInterval:        config.GetDurationEnv("POLL_FAST_INTERVAL", DefaultFastInterval),
		SlowInterval:        config.GetDurationEnv("POLL_SLOW_INTERVAL", DefaultSlowInterval),
		QueryTimeout:        config.GetDurationEnv("POLL_QUERY_TIMEOUT", DefaultQueryTimeout),
		Retention:           config.GetDurationEnv("TRACKER_RETENTION", DefaultRetention),
		MaintenanceInterval: config.GetDurationEnv("MAINTENANCE_INTERVAL", DefaultMaintenanceInterval),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
// MaintenanceInterval is left alone so zero can disable pruning.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.FastAttempts <= 0 {
		c.FastAttempts = DefaultFastAttempts
	}
	if c.FastInterval <= 0 {
		c.FastInterval = DefaultFastInterval
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = DefaultSlowInterval
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	return c
}

// Policy returns the interval schedule described by c.
func (c Config) Policy() backoff.Strategy {
	return &backoff.Tiered{
		FastAttempts: c.FastAttempts,
		Fast:         c.FastInterval,
		Slow:         c.SlowInterval,
	}
}
