// Package backoff provides retry and poll delay calculation.
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before the next attempt.
// Attempt is the number of attempts already made (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Delay implements Strategy using Exponential.
func (c *Config) Delay(attempt int) time.Duration {
	return Exponential(attempt, c)
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxBackoff := 5 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// Tiered is a two-tier schedule: a fast interval for the first FastAttempts
// attempts, then a slow interval for every attempt after that. Zero values
// use the defaults (5 attempts, 1s, 3s).
type Tiered struct {
	FastAttempts int
	Fast         time.Duration
	Slow         time.Duration
}

// DefaultTiered returns the standard poll schedule: 1s for the first five
// attempts, 3s afterwards.
func DefaultTiered() *Tiered {
	return &Tiered{FastAttempts: 5, Fast: time.Second, Slow: 3 * time.Second}
}

// Delay returns Fast while attempt <= FastAttempts, otherwise Slow.
// Attempts below 1 are treated as the first attempt.
func (t *Tiered) Delay(attempt int) time.Duration {
	fastAttempts, fast, slow := 5, time.Second, 3*time.Second
	if t != nil {
		if t.FastAttempts > 0 {
			fastAttempts = t.FastAttempts
		}
		if t.Fast > 0 {
			fast = t.Fast
		}
		if t.Slow > 0 {
			slow = t.Slow
		}
	}

	if attempt <= fastAttempts {
		return fast
	}
	return slow
}

var (
	_ Strategy = (*Config)(nil)
	_ Strategy = (*Tiered)(nil)
)
