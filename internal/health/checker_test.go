package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func failing(msg string) ReadinessFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing() ReadinessFunc {
	return func(context.Context) error { return nil }
}

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker()

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_NoDependencies(t *testing.T) {
	t.Parallel()
	checker := NewChecker()

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}
	if _, ok := response.Checks["dependencies"]; !ok {
		t.Fatal("Expected dependencies check to be present")
	}
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		setup    func(c *Checker)
		expected Status
		serving  bool
	}{
		{
			name: "all healthy",
			setup: func(c *Checker) {
				c.Require("processor", passing())
				c.Optional("notifier", passing())
			},
			expected: StatusHealthy,
			serving:  true,
		},
		{
			name: "critical failure",
			setup: func(c *Checker) {
				c.Require("processor", failing("circuit breaker open"))
				c.Optional("notifier", passing())
			},
			expected: StatusUnhealthy,
		},
		{
			name: "optional failure degrades",
			setup: func(c *Checker) {
				c.Require("processor", passing())
				c.Optional("notifier", failing("webhook down"))
			},
			expected: StatusDegraded,
			serving:  true,
		},
		{
			name: "critical wins over optional",
			setup: func(c *Checker) {
				c.Optional("notifier", failing("webhook down"))
				c.Require("processor", failing("down"))
			},
			expected: StatusUnhealthy,
		},
		{
			name: "nil critical checker",
			setup: func(c *Checker) {
				c.Require("processor", nil)
			},
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			checker := NewChecker()
			tt.setup(checker)

			response := checker.Readiness(context.Background())
			if response.Status != tt.expected {
				t.Errorf("Expected %s, got %s (%v)", tt.expected, response.Status, response.Checks)
			}
			if response.IsServing() != tt.serving {
				t.Errorf("IsServing() = %v, want %v", response.IsServing(), tt.serving)
			}
		})
	}
}

func TestChecker_Readiness_ReportsMessage(t *testing.T) {
	t.Parallel()
	checker := NewChecker()
	checker.Require("processor", failing("processor unavailable: circuit breaker open"))

	response := checker.Readiness(context.Background())

	result := response.Checks["processor"]
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected processor check unhealthy, got %s", result.Status)
	}
	if result.Message != "processor unavailable: circuit breaker open" {
		t.Errorf("Unexpected message %q", result.Message)
	}
}

func TestChecker_Readiness_Cached(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	checker := NewChecker()
	checker.Require("processor", ReadinessFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	checker.Readiness(context.Background())
	checker.Readiness(context.Background())

	if calls.Load() != 1 {
		t.Errorf("Expected cached readiness to call the check once, got %d", calls.Load())
	}
}

func TestChecker_SetShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker()
	checker.Require("processor", passing())

	if !checker.Readiness(context.Background()).IsHealthy() {
		t.Fatal("Expected healthy before shutdown")
	}

	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())
	if response.IsHealthy() {
		t.Error("Expected unhealthy while shutting down")
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
		{"degraded", StatusDegraded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}
