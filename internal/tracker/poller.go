package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"audittracker/internal/apperrors"
	"audittracker/pkg/backoff"
)

// errEmptyReport is the transport error used when a querier returns neither
// a report nor an error.
var errEmptyReport = errors.New("empty status report")

// MetricsRecorder is an optional interface for recording tracking metrics.
type MetricsRecorder interface {
	RecordPoll(ctx context.Context, status string, transportErr bool)
	RecordTrackingStarted(ctx context.Context)
	RecordTrackingFinished(ctx context.Context, outcome string, attempts int, durationSeconds float64)
	RecordTrackingCancelled(ctx context.Context)
}

// Progress is a point-in-time view of one tracked job.
type Progress struct {
	JobID      string     `json:"jobId"`
	State      State      `json:"state"`
	Attempts   int        `json:"attempts"`
	LastStatus string     `json:"lastStatus,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	NextPollIn string     `json:"nextPollIn,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the poller has stopped, by outcome or cancellation.
func (p Progress) Finished() bool {
	return p.FinishedAt != nil
}

// PollerConfig holds the collaborators and knobs of a Poller.
type PollerConfig struct {
	MaxAttempts  int
	Policy       backoff.Strategy
	QueryTimeout time.Duration
	Metrics      MetricsRecorder

	// After and Now default to time.After and time.Now.
	After func(time.Duration) <-chan time.Time
	Now   func() time.Time
}

// Poller drives status queries for a single job until a terminal state is
// reached, the attempt budget runs out, or it is cancelled.
//
// Queries never overlap: the next one is scheduled only after the previous
// response has been fully processed. onTerminal fires at most once, after
// the sink write for a successful job.
type Poller struct {
	job          Job
	querier      StatusQuerier
	sink         Sink
	machine      *Machine
	queryTimeout time.Duration
	metrics      MetricsRecorder
	after        func(time.Duration) <-chan time.Time
	now          func() time.Time
	logger       *slog.Logger

	started   atomic.Bool
	cancelled atomic.Bool
	cancelCh  chan struct{}
	cancelOne sync.Once
	done      chan struct{}

	mu       sync.RWMutex
	progress Progress
}

// NewPoller creates a poller for job. It does nothing until Start.
func NewPoller(job Job, querier StatusQuerier, sink Sink, cfg PollerConfig) *Poller {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Poller{
		job:          job,
		querier:      querier,
		sink:         sink,
		machine:      NewMachine(job.ID, cfg.MaxAttempts, cfg.Policy),
		queryTimeout: cfg.QueryTimeout,
		metrics:      cfg.Metrics,
		after:        cfg.After,
		now:          cfg.Now,
		logger:       slog.With("component", "poller", "jobId", job.ID),
		cancelCh:     make(chan struct{}),
		done:         make(chan struct{}),
		progress:     Progress{JobID: job.ID, State: StateSubmitting},
	}
}

// Start begins polling in a new goroutine; the first query is issued
// immediately. onTerminal may be nil. Cancelling ctx stops polling the
// same way Cancel does.
func (p *Poller) Start(ctx context.Context, onTerminal func(Outcome)) error {
	if p.job.ID == "" {
		return apperrors.Validation("jobId", "job ID is required")
	}
	if !p.started.CompareAndSwap(false, true) {
		return apperrors.Conflict("job", p.job.ID, "polling already started")
	}

	p.mu.Lock()
	p.progress.StartedAt = p.now()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordTrackingStarted(ctx)
	}
	p.logger.Info("Tracking started")

	go p.run(ctx, onTerminal)
	return nil
}

// Cancel stops the poller without invoking onTerminal. A response that
// arrives after Cancel is discarded. Safe to call more than once.
func (p *Poller) Cancel() {
	p.cancelOne.Do(func() {
		p.cancelled.Store(true)
		close(p.cancelCh)
	})
}

// Done is closed when the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Job returns the job being tracked.
func (p *Poller) Job() Job {
	return p.job
}

// Progress returns a snapshot of the poller's state.
func (p *Poller) Progress() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

func (p *Poller) run(ctx context.Context, onTerminal func(Outcome)) {
	defer close(p.done)

	for {
		if p.stopped(ctx) {
			p.abandon(ctx)
			return
		}

		p.machine.Issue()
		report, err := p.query(ctx)

		if p.stopped(ctx) {
			p.abandon(ctx)
			return
		}

		decision, err := p.observe(ctx, report, err)
		if err != nil {
			// Unreachable: the loop exits on the first terminal decision.
			p.logger.Error("Poller observed a terminal machine", "error", err)
			return
		}
		if !decision.Continue() {
			p.finish(ctx, *decision.Outcome, onTerminal)
			return
		}

		select {
		case <-ctx.Done():
			p.abandon(ctx)
			return
		case <-p.cancelCh:
			p.abandon(ctx)
			return
		case <-p.after(decision.Delay):
		}
	}
}

func (p *Poller) stopped(ctx context.Context) bool {
	return p.cancelled.Load() || ctx.Err() != nil
}

// query issues one status request under the per-query deadline.
func (p *Poller) query(ctx context.Context) (*StatusReport, error) {
	qctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	report, err := p.querier.Query(qctx, p.job.ID)
	if err == nil && report == nil {
		err = apperrors.Transport("tracker.query", errEmptyReport)
	}
	return report, err
}

// observe feeds a response to the machine and updates progress.
func (p *Poller) observe(ctx context.Context, report *StatusReport, queryErr error) (Decision, error) {
	decision, err := p.machine.Observe(report, queryErr)
	if err != nil {
		return decision, err
	}

	status := string(StatusProcessing)
	if queryErr == nil {
		status = string(report.Status)
	}
	if p.metrics != nil {
		p.metrics.RecordPoll(ctx, status, queryErr != nil)
	}

	attempts := p.machine.Attempts()
	if queryErr != nil {
		p.logger.Warn("Status query failed", "attempt", attempts, "error", queryErr)
	} else {
		p.logger.Debug("Status polled", "attempt", attempts, "status", report.RawStatus, "state", decision.State)
	}

	p.mu.Lock()
	p.progress.State = decision.State
	p.progress.Attempts = attempts
	p.progress.NextPollIn = ""
	if decision.Continue() {
		p.progress.NextPollIn = decision.Delay.String()
	}
	if queryErr != nil {
		p.progress.LastError = queryErr.Error()
	} else {
		p.progress.LastError = ""
		p.progress.LastStatus = report.RawStatus
		if p.progress.LastStatus == "" {
			p.progress.LastStatus = string(report.Status)
		}
	}
	p.mu.Unlock()

	return decision, nil
}

// finish records a successful result, then fires onTerminal.
func (p *Poller) finish(ctx context.Context, outcome Outcome, onTerminal func(Outcome)) {
	finishedAt := p.now()

	if outcome.Succeeded() {
		rec := NewReportRecord(p.job, outcome.Result, finishedAt)
		if !p.sink.Record(rec) {
			p.logger.Warn("Report already recorded, keeping existing entry")
		}
	}

	p.mu.Lock()
	p.progress.Outcome = &outcome
	p.progress.FinishedAt = &finishedAt
	startedAt := p.progress.StartedAt
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordTrackingFinished(ctx, string(outcome.Kind), outcome.Attempts, finishedAt.Sub(startedAt).Seconds())
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		p.logger.Info("Job completed", "attempts", outcome.Attempts)
	case OutcomeFailure:
		p.logger.Warn("Job failed", "attempts", outcome.Attempts, "message", outcome.Message)
	case OutcomeTimeout:
		p.logger.Warn("Job tracking timed out", "attempts", outcome.Attempts)
	}

	p.notify(outcome, onTerminal)
}

// notify runs onTerminal, containing any panic so the goroutine exits cleanly.
func (p *Poller) notify(outcome Outcome, onTerminal func(Outcome)) {
	if onTerminal == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Terminal callback panicked", "panic", r)
		}
	}()
	onTerminal(outcome)
}

// abandon marks the poller as cancelled without producing an outcome.
func (p *Poller) abandon(ctx context.Context) {
	p.cancelled.Store(true)
	finishedAt := p.now()

	p.mu.Lock()
	p.progress.State = StateCancelled
	p.progress.Cancelled = true
	p.progress.NextPollIn = ""
	p.progress.FinishedAt = &finishedAt
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordTrackingCancelled(context.WithoutCancel(ctx))
	}
	p.logger.Info("Tracking cancelled", "attempts", p.machine.Attempts())
}
