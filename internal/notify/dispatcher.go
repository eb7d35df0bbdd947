// Package notify announces terminal job outcomes as CloudEvents.
//
// Events are queued in a bounded channel and delivered to every configured
// webhook by a worker pool, with retry on 5xx and network errors and one
// circuit breaker per destination host. A full buffer or an open breaker
// drops the event; outcome delivery never blocks the poller that produced it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"audittracker/internal/tracker"
	"audittracker/pkg/backoff"
	"audittracker/pkg/circuitbreaker"
)

// Dispatch errors.
var (
	ErrBufferFull = errors.New("notification buffer full, event dropped")
	ErrClosed     = errors.New("notifier is closed")
)

// MetricsRecorder is an optional interface for recording delivery metrics.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, eventType string, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context, eventType string)
	RecordNotifyDropped(ctx context.Context, eventType string)
	RecordNotifyQueueSize(ctx context.Context, size int64)
}

// Stats holds dispatcher statistics.
type Stats struct {
	QueueDepth   int   `json:"queueDepth"`
	Queued       int64 `json:"queued"`
	Delivered    int64 `json:"delivered"`
	Failed       int64 `json:"failed"`
	Dropped      int64 `json:"dropped"`
	RetriesTotal int64 `json:"retriesTotal"`
	BreakersOpen int   `json:"breakersOpen"`
}

type delivery struct {
	event       *CloudEvent
	destination string
}

// Dispatcher delivers outcome events asynchronously.
type Dispatcher struct {
	cfg      Config
	queue    chan delivery
	sender   *Sender
	breakers *circuitbreaker.Registry
	retry    backoff.Strategy
	hosts    int
	metrics  MetricsRecorder
	logger   *slog.Logger

	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// New creates a dispatcher and starts its workers. metrics may be nil.
func New(cfg Config, metrics MetricsRecorder) *Dispatcher {
	cfg = cfg.withDefaults()
	logger := slog.With("component", "notify")

	d := &Dispatcher{
		cfg:    cfg,
		queue:  make(chan delivery, cfg.BufferSize),
		sender: NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("Webhook circuit breaker state changed", "from", from.String(), "to", to.String())
			},
		}),
		retry: &backoff.Config{
			Initial: defaultInitialBackoff,
			Max:     defaultMaxBackoff,
		},
		hosts:    countHosts(cfg.URLs),
		metrics:  metrics,
		logger:   logger,
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}
	if metrics != nil {
		go d.reportQueueSize()
	}

	d.logger.Info("Notifier started", "destinations", len(cfg.URLs), "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Notify announces a terminal outcome to every configured destination.
func (d *Dispatcher) Notify(params tracker.Params, outcome tracker.Outcome) error {
	return d.Dispatch(OutcomeEvent(d.cfg.Source, params, outcome))
}

// Dispatch queues event for every destination. Non-blocking: returns
// ErrBufferFull if any copy had to be dropped.
func (d *Dispatcher) Dispatch(event *CloudEvent) error {
	if d.closed.Load() {
		return ErrClosed
	}

	var err error
	for _, dest := range d.cfg.URLs {
		select {
		case d.queue <- delivery{event: event, destination: dest}:
			d.queued.Add(1)
		default:
			d.drop(event, dest, "buffer full")
			err = ErrBufferFull
		}
	}
	return err
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.queued.Load(),
		Delivered:    d.delivered.Load(),
		Failed:       d.failed.Load(),
		Dropped:      d.dropped.Load(),
		RetriesTotal: d.retriesTotal.Load(),
		BreakersOpen: d.breakers.Stats().Open,
	}
}

// Ready fails while the notifier is closed, the buffer is full, or every
// destination's breaker is open.
func (d *Dispatcher) Ready(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if len(d.queue) == cap(d.queue) {
		return ErrBufferFull
	}
	if rejecting := d.breakers.Stats().Rejecting; rejecting > 0 && rejecting >= d.hosts {
		return fmt.Errorf("all %d webhook circuit breakers open", rejecting)
	}
	return nil
}

// Close stops accepting events and delivers what is already queued.
// The context deadline controls how long to wait.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("Notifier shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notifier shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Notifier shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *Dispatcher) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.metrics.RecordNotifyQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			d.drainQueue()
			return
		case item := <-d.queue:
			d.deliver(item)
		}
	}
}

func (d *Dispatcher) drainQueue() {
	for {
		select {
		case item := <-d.queue:
			d.deliver(item)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(item delivery) {
	host := extractHost(item.destination)
	breaker := d.breakers.Get(host)

	if !breaker.Allow() {
		d.drop(item.event, item.destination, "circuit open")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := d.sendWithRetry(ctx, item); err != nil {
		breaker.RecordFailure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyFailed(ctx, item.event.Type)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", item.event.Type, "jobId", item.event.Subject, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyDelivered(ctx, item.event.Type, time.Since(start).Seconds())
	}
	d.logger.Debug("Outcome delivered", "destination", host, "type", item.event.Type, "jobId", item.event.Subject)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, item delivery) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			d.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retry.Delay(attempt)):
			}
		}

		lastErr = d.sender.Send(ctx, item.destination, item.event, d.cfg.SigningKey)
		if lastErr == nil || IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (d *Dispatcher) drop(event *CloudEvent, destination, reason string) {
	d.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyDropped(context.Background(), event.Type)
	}
	d.logger.Warn("Event dropped", "reason", reason, "destination", extractHost(destination), "type", event.Type, "jobId", event.Subject)
}

func countHosts(urls []string) int {
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		seen[extractHost(u)] = struct{}{}
	}
	return len(seen)
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
