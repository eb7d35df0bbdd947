package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audittracker/internal/apperrors"
	"audittracker/internal/testutil"
)

// step is one scripted status query response.
type step struct {
	status Status
	raw    string
	msg    string
	result *Result
	err    error
}

func processing() step { return step{status: StatusProcessing, raw: "queued"} }

func completed(r *Result) step { return step{status: StatusCompleted, raw: "completed", result: r} }

func failed(msg string) step { return step{status: StatusFailed, raw: "failed", msg: msg} }

func transportErr() step {
	return step{err: apperrors.Transport("gateway.query", context.DeadlineExceeded)}
}

// scriptedQuerier replays steps in order, then repeats fallback forever.
// It flags any overlapping calls.
type scriptedQuerier struct {
	mu       sync.Mutex
	steps    []step
	fallback step
	calls    int

	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newScript(steps ...step) *scriptedQuerier {
	return &scriptedQuerier{steps: steps, fallback: processing()}
}

func (q *scriptedQuerier) Query(_ context.Context, jobID string) (*StatusReport, error) {
	if q.inFlight.Add(1) > 1 {
		q.overlap.Store(true)
	}
	defer q.inFlight.Add(-1)

	q.mu.Lock()
	s := q.fallback
	if q.calls < len(q.steps) {
		s = q.steps[q.calls]
	}
	q.calls++
	q.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &StatusReport{JobID: jobID, Status: s.status, RawStatus: s.raw, Error: s.msg, Result: s.result}, nil
}

func (q *scriptedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// fakeTimer records requested delays. Instant timers fire immediately;
// otherwise the returned channel never fires.
type fakeTimer struct {
	mu      sync.Mutex
	delays  []time.Duration
	instant bool
}

func instantTimer() *fakeTimer { return &fakeTimer{instant: true} }

func stuckTimer() *fakeTimer { return &fakeTimer{} }

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if f.instant {
		ch <- time.Now()
	}
	return ch
}

func (f *fakeTimer) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

// outcomeRecorder counts terminal callbacks.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *outcomeRecorder) OnTerminal(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) All() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	polls, transportErrs, started, cancelled atomic.Int64

	mu       sync.Mutex
	finished []string
}

func (m *fakeMetrics) RecordPoll(_ context.Context, _ string, transportErr bool) {
	m.polls.Add(1)
	if transportErr {
		m.transportErrs.Add(1)
	}
}

func (m *fakeMetrics) RecordTrackingStarted(context.Context) { m.started.Add(1) }

func (m *fakeMetrics) RecordTrackingFinished(_ context.Context, outcome string, _ int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, outcome)
}

func (m *fakeMetrics) RecordTrackingCancelled(context.Context) { m.cancelled.Add(1) }

func (m *fakeMetrics) Finished() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.finished...)
}

func testJob(id string) Job {
	return Job{
		ID: id,
		Params: Params{
			ChannelName: "@gophers",
			Email:       "owner@example.com",
			Services:    []string{"1", "7"},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	testutil.Closed(t, done)
}

func repeatDelay(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}
