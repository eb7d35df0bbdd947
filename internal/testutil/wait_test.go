package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

// recorder captures failures without stopping the calling goroutine's test.
type recorder struct {
	testing.TB
	failed atomic.Bool
}

func (r *recorder) Helper() {}

func (r *recorder) Fatal(args ...any) {
	r.failed.Store(true)
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed.Store(true)
}

func TestWaitFor_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	result := WaitFor(t, func() bool {
		return true
	}, WithTimeout(time.Second))

	if !result {
		t.Error("expected WaitFor to return true for immediate success")
	}
}

func TestWaitFor_EventualSuccess(t *testing.T) {
	t.Parallel()
	counter := 0
	result := WaitFor(t, func() bool {
		counter++
		return counter >= 3
	}, WithTimeout(time.Second), WithInterval(time.Millisecond))

	if !result {
		t.Error("expected WaitFor to return true for eventual success")
	}
	if counter < 3 {
		t.Errorf("expected counter >= 3, got %d", counter)
	}
}

func TestWaitFor_Timeout(t *testing.T) {
	t.Parallel()
	result := WaitFor(t, func() bool {
		return false
	}, WithTimeout(30*time.Millisecond), WithInterval(5*time.Millisecond))

	if result {
		t.Error("expected WaitFor to return false on timeout")
	}
}

func TestMustWaitFor_Timeout(t *testing.T) {
	t.Parallel()
	r := &recorder{TB: t}

	MustWaitFor(r, func() bool { return false }, WithTimeout(20*time.Millisecond), WithInterval(5*time.Millisecond))

	if !r.failed.Load() {
		t.Error("expected MustWaitFor to fail the test")
	}
}

func TestReceive(t *testing.T) {
	t.Parallel()
	ch := make(chan int)
	go func() {
		time.Sleep(5 * time.Millisecond)
		ch <- 42
	}()

	if got := Receive(t, ch, WithTimeout(time.Second)); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestReceive_Timeout(t *testing.T) {
	t.Parallel()
	r := &recorder{TB: t}

	got := Receive(r, make(chan string), WithTimeout(10*time.Millisecond))

	if !r.failed.Load() {
		t.Error("expected Receive to fail the test")
	}
	if got != "" {
		t.Errorf("expected zero value, got %q", got)
	}
}

func TestReceive_Closed(t *testing.T) {
	t.Parallel()
	r := &recorder{TB: t}
	ch := make(chan int)
	close(ch)

	Receive(r, ch, WithTimeout(time.Second))

	if !r.failed.Load() {
		t.Error("expected Receive on a closed channel to fail the test")
	}
}

func TestClosed(t *testing.T) {
	t.Parallel()
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(ch)
	}()

	Closed(t, ch, WithTimeout(time.Second))
}

func TestMustNotReceive(t *testing.T) {
	t.Parallel()
	MustNotReceive(t, make(chan int), 10*time.Millisecond)

	r := &recorder{TB: t}
	ch := make(chan int, 1)
	ch <- 1
	MustNotReceive(r, ch, time.Second)
	if !r.failed.Load() {
		t.Error("expected MustNotReceive to fail when a value arrives")
	}
}
