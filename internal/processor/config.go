package processor

import (
	"time"

	"audittracker/internal/config"
)

// Config controls how simulated jobs progress.
type Config struct {
	MinSteps     int           // non-terminal status responses before a job settles (default: 3)
	MaxSteps     int           // upper bound, inclusive (default: 8)
	FailureRate  float64       // probability in [0,1] that a job ends failed (SIM_FAILURE_RATE default: 0.1)
	StepInterval time.Duration // advance one stage per interval; 0 advances one stage per query
	Retention    time.Duration // how long settled jobs stay queryable (default: 1h)
	Seed         uint64        // random seed; 0 seeds from the clock
}

// LoadConfigFromEnv loads simulator configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MinSteps:     config.GetIntEnv("SIM_MIN_STEPS", 3),
		MaxSteps:     config.GetIntEnv("SIM_MAX_STEPS", 8),
		FailureRate:  config.GetFloatEnv("SIM_FAILURE_RATE", 0.1),
		StepInterval: config.GetDurationEnv("SIM_STEP_INTERVAL", 2*time.Second),
		Retention:    config.GetDurationEnv("SIM_RETENTION", time.Hour),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults and clamps the rest.
func (c Config) withDefaults() Config {
	if c.MinSteps <= 0 {
		c.MinSteps = 3
	}
	if c.MaxSteps < c.MinSteps {
		c.MaxSteps = max(c.MinSteps, 8)
	}
	if c.FailureRate < 0 {
		c.FailureRate = 0
	}
	if c.FailureRate > 1 {
		c.FailureRate = 1
	}
	if c.StepInterval < 0 {
		c.StepInterval = 0
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	return c
}
