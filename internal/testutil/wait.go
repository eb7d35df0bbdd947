// Package testutil provides testing utilities for polling and waiting on
// asynchronous outcomes.
package testutil

import (
	"testing"
	"time"
)

// WaitOptions configures WaitFor and Receive behavior.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for WaitFor and Receive.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 5s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the polling interval (default: 10ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

func resolve(opts []WaitOption) WaitOptions {
	o := WaitOptions{
		Timeout:  5 * time.Second,
		Interval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WaitFor polls until condition returns true or timeout is reached.
// Returns true if condition was met, false on timeout.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()
	o := resolve(opts)

	deadline := time.Now().Add(o.Timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(o.Interval)
	}
	return condition()
}

// MustWaitFor polls until condition returns true or fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// Receive waits for the next value on ch, failing the test on timeout or
// if ch is closed without a value.
func Receive[T any](tb testing.TB, ch <-chan T, opts ...WaitOption) T {
	tb.Helper()
	o := resolve(opts)

	timer := time.NewTimer(o.Timeout)
	defer timer.Stop()

	select {
	case v, ok := <-ch:
		if !ok {
			var zero T
			tb.Fatal("channel closed while waiting for a value")
			return zero
		}
		return v
	case <-timer.C:
		var zero T
		tb.Fatalf("timed out after %s waiting for a value", o.Timeout)
		return zero
	}
}

// Closed waits for ch to be closed, failing the test on timeout. Values
// received before the close are discarded.
func Closed[T any](tb testing.TB, ch <-chan T, opts ...WaitOption) {
	tb.Helper()
	o := resolve(opts)

	timer := time.NewTimer(o.Timeout)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			tb.Fatalf("timed out after %s waiting for channel to close", o.Timeout)
			return
		}
	}
}

// MustNotReceive fails the test if a value arrives on ch within d.
func MustNotReceive[T any](tb testing.TB, ch <-chan T, d time.Duration) {
	tb.Helper()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case v, ok := <-ch:
		if ok {
			tb.Fatalf("unexpected value received: %v", v)
		}
	case <-timer.C:
	}
}
