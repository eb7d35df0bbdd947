// Package tracker implements client-side tracking of long-running remote jobs.
//
// A Tracker owns one Poller per job. Each Poller queries the remote
// processor on a two-tier schedule, feeds every response to a Machine, and
// on completion writes exactly one ReportRecord to the shared Sink before
// firing the job's terminal callback.
//
// # Lifetime
//
// Pollers run on the Tracker's own context, not the caller's: a request
// that begins tracking may end long before the job does. Close cancels
// every active poller without firing terminal callbacks.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"audittracker/internal/apperrors"
)

// Tracker starts and supervises pollers for many jobs concurrently.
type Tracker struct {
	cfg     Config
	querier StatusQuerier
	sink    Sink
	metrics MetricsRecorder
	logger  *slog.Logger

	after func(time.Duration) <-chan time.Time
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	pollers map[string]*Poller
	closed  bool
}

// New creates a tracker. metrics may be nil. When cfg.MaintenanceInterval
// is positive, finished progress older than cfg.Retention is pruned in the
// background until Close.
func New(cfg Config, querier StatusQuerier, sink Sink, metrics MetricsRecorder) *Tracker {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	t := &Tracker{
		cfg:     cfg,
		querier: querier,
		sink:    sink,
		metrics: metrics,
		logger:  slog.With("component", "tracker"),
		after:   time.After,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pollers: make(map[string]*Poller),
	}

	if cfg.MaintenanceInterval > 0 {
		t.wg.Add(1)
		go t.maintain(cfg.MaintenanceInterval)
	}

	t.logger.Info("Tracker started",
		"maxAttempts", cfg.MaxAttempts,
		"fastAttempts", cfg.FastAttempts,
		"fastInterval", cfg.FastInterval,
		"slowInterval", cfg.SlowInterval,
	)
	return t
}

// Sink returns the result sink shared by all pollers.
func (t *Tracker) Sink() Sink {
	return t.sink
}

// BeginTracking starts polling jobID asynchronously. onTerminal (optional)
// fires exactly once with the final outcome, after any sink write.
//
// Returns a conflict error if jobID is already being polled. A job whose
// previous tracking finished (for example after a timeout) may be tracked
// again; its report, if any, is never duplicated.
func (t *Tracker) BeginTracking(jobID string, params Params, onTerminal func(Outcome)) error {
	if jobID == "" {
		return apperrors.Validation("jobId", "job ID is required")
	}

	job := Job{ID: jobID, Params: params, CreatedAt: t.now()}
	p := NewPoller(job, t.querier, t.sink, PollerConfig{
		MaxAttempts:  t.cfg.MaxAttempts,
		Policy:       t.cfg.Policy(),
		QueryTimeout: t.cfg.QueryTimeout,
		Metrics:      t.metrics,
		After:        t.after,
		Now:          t.now,
	})

	if err := t.reserve(p); err != nil {
		return err
	}

	t.wg.Add(1)
	if err := p.Start(t.ctx, onTerminal); err != nil {
		t.wg.Done()
		t.release(jobID, p)
		return err
	}
	go t.supervise(p)
	return nil
}

// reserve registers p unless an unfinished poller holds its job ID.
func (t *Tracker) reserve(p *Poller) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return apperrors.Unavailable("tracker", "shutting down")
	}
	id := p.Job().ID
	if existing, ok := t.pollers[id]; ok && !existing.Progress().Finished() {
		return apperrors.Conflict("job", id, "job is already being tracked")
	}
	t.pollers[id] = p
	return nil
}

// release removes p if it still owns its job ID.
func (t *Tracker) release(jobID string, p *Poller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollers[jobID] == p {
		delete(t.pollers, jobID)
	}
}

// supervise waits for p to exit. Finished pollers, cancelled or not, stay
// registered until pruned so their progress remains visible.
func (t *Tracker) supervise(p *Poller) {
	defer t.wg.Done()
	<-p.Done()
	t.logger.Debug("Poller exited", "jobId", p.Job().ID, "state", p.Progress().State)
}

// Cancel stops tracking jobID without firing its terminal callback.
func (t *Tracker) Cancel(jobID string) error {
	t.mu.RLock()
	p, ok := t.pollers[jobID]
	t.mu.RUnlock()

	if !ok || p.Progress().Finished() {
		return apperrors.NotFound("tracked job", jobID)
	}
	p.Cancel()
	return nil
}

// Progress returns the latest progress for jobID, including finished jobs
// within the retention window.
func (t *Tracker) Progress(jobID string) (Progress, bool) {
	t.mu.RLock()
	p, ok := t.pollers[jobID]
	t.mu.RUnlock()

	if !ok {
		return Progress{}, false
	}
	return p.Progress(), true
}

// Active returns the number of jobs still being polled.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, p := range t.pollers {
		if !p.Progress().Finished() {
			n++
		}
	}
	return n
}

// Ready returns an unavailable error once the tracker is closed.
func (t *Tracker) Ready(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return apperrors.Unavailable("tracker", "shutting down")
	}
	return nil
}

// Prune forgets finished jobs that finished more than olderThan ago.
// Returns the number of entries removed.
func (t *Tracker) Prune(olderThan time.Duration) int {
	cutoff := t.now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, p := range t.pollers {
		prog := p.Progress()
		if prog.Finished() && prog.FinishedAt.Before(cutoff) {
			delete(t.pollers, id)
			removed++
		}
	}
	return removed
}

func (t *Tracker) maintain(interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if n := t.Prune(t.cfg.Retention); n > 0 {
				t.logger.Debug("Pruned finished jobs", "count", n)
			}
		}
	}
}

// Close cancels all active pollers and waits for them to exit.
// The context deadline controls how long to wait.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.logger.Info("Tracker shutting down", "active", t.Active())
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Tracker shutdown complete")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Tracker shutdown timed out")
		return ctx.Err()
	}
}
