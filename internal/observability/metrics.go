package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: HTTP request time, time from submission to terminal outcome
// - Traffic: requests, submissions, status polls
// - Errors: failed submissions, transport errors, failed/timed out jobs
// - Saturation: jobs being tracked, notification queue depth
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Submission metrics (Traffic, Errors)
	SubmissionsTotal      metric.Int64Counter
	SubmissionErrorsTotal metric.Int64Counter

	// Tracking metrics (Latency, Traffic, Errors, Saturation)
	PollsTotal          metric.Int64Counter
	PollTransportErrors metric.Int64Counter
	TrackingDuration    metric.Float64Histogram
	TrackingAttempts    metric.Int64Histogram
	TrackingOutcomes    metric.Int64Counter
	TrackingCancelled   metric.Int64Counter
	TrackingActive      metric.Int64UpDownCounter

	// Notification metrics (Latency, Traffic, Errors, Saturation)
	NotifyDuration  metric.Float64Histogram
	NotifyDelivered metric.Int64Counter
	NotifyFailed    metric.Int64Counter
	NotifyDropped   metric.Int64Counter
	NotifyQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("audittracker")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Submission metrics
	m.SubmissionsTotal, err = meter.Int64Counter(
		"audit_submissions_total",
		metric.WithDescription("Total number of audit submissions"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionErrorsTotal, err = meter.Int64Counter(
		"audit_submission_errors_total",
		metric.WithDescription("Total number of rejected or failed submissions"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Tracking metrics
	m.PollsTotal, err = meter.Int64Counter(
		"tracker_polls_total",
		metric.WithDescription("Total number of status queries by reported status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollTransportErrors, err = meter.Int64Counter(
		"tracker_poll_transport_errors_total",
		metric.WithDescription("Total number of status queries that failed in transport"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TrackingDuration, err = meter.Float64Histogram(
		"tracker_duration_seconds",
		metric.WithDescription("Time from start of tracking to terminal outcome in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 30, 60, 90, 120, 180, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TrackingAttempts, err = meter.Int64Histogram(
		"tracker_attempts",
		metric.WithDescription("Status queries issued per tracked job"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 10, 20, 30, 45, 60),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TrackingOutcomes, err = meter.Int64Counter(
		"tracker_outcomes_total",
		metric.WithDescription("Total number of terminal outcomes by kind"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TrackingCancelled, err = meter.Int64Counter(
		"tracker_cancelled_total",
		metric.WithDescription("Total number of trackings stopped without an outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TrackingActive, err = meter.Int64UpDownCounter(
		"tracker_active",
		metric.WithDescription("Number of jobs currently being polled (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Notification metrics
	m.NotifyDuration, err = meter.Float64Histogram(
		"notify_duration_seconds",
		metric.WithDescription("Notification delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDelivered, err = meter.Int64Counter(
		"notify_delivered_total",
		metric.WithDescription("Total notifications successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyFailed, err = meter.Int64Counter(
		"notify_failed_total",
		metric.WithDescription("Total notifications failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDropped, err = meter.Int64Counter(
		"notify_dropped_total",
		metric.WithDescription("Total notifications dropped (buffer full or circuit open)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyQueueSize, err = meter.Int64Gauge(
		"notify_queue_size",
		metric.WithDescription("Current number of notifications waiting for delivery (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSubmission records an audit submission attempt.
func (m *Metrics) RecordSubmission(ctx context.Context, success bool) {
	attrs := metric.WithAttributes(successAttr(success))
	m.SubmissionsTotal.Add(ctx, 1, attrs)
	if !success {
		m.SubmissionErrorsTotal.Add(ctx, 1)
	}
}

// RecordPoll records one status query. status is the normalised status;
// transport failures are counted separately.
func (m *Metrics) RecordPoll(ctx context.Context, status string, transportErr bool) {
	m.PollsTotal.Add(ctx, 1, metric.WithAttributes(pollStatusAttr(status), transportErrAttr(transportErr)))
	if transportErr {
		m.PollTransportErrors.Add(ctx, 1)
	}
}

// RecordTrackingStarted records a job entering the poll loop.
func (m *Metrics) RecordTrackingStarted(ctx context.Context) {
	m.TrackingActive.Add(ctx, 1)
}

// RecordTrackingFinished records a terminal outcome.
func (m *Metrics) RecordTrackingFinished(ctx context.Context, outcome string, attempts int, durationSeconds float64) {
	attrs := metric.WithAttributes(outcomeAttr(outcome))
	m.TrackingOutcomes.Add(ctx, 1, attrs)
	m.TrackingDuration.Record(ctx, durationSeconds, attrs)
	m.TrackingAttempts.Record(ctx, int64(attempts), attrs)
	m.TrackingActive.Add(ctx, -1)
}

// RecordTrackingCancelled records a job that stopped polling without an outcome.
func (m *Metrics) RecordTrackingCancelled(ctx context.Context) {
	m.TrackingCancelled.Add(ctx, 1)
	m.TrackingActive.Add(ctx, -1)
}

// RecordNotifyDelivered records a successful notification with its duration.
func (m *Metrics) RecordNotifyDelivered(ctx context.Context, eventType string, durationSeconds float64) {
	attrs := metric.WithAttributes(eventTypeAttr(eventType))
	m.NotifyDelivered.Add(ctx, 1, attrs)
	m.NotifyDuration.Record(ctx, durationSeconds, attrs)
}

// RecordNotifyFailed records a notification that failed after retries.
func (m *Metrics) RecordNotifyFailed(ctx context.Context, eventType string) {
	m.NotifyFailed.Add(ctx, 1, metric.WithAttributes(eventTypeAttr(eventType)))
}

// RecordNotifyDropped records a dropped notification.
func (m *Metrics) RecordNotifyDropped(ctx context.Context, eventType string) {
	m.NotifyDropped.Add(ctx, 1, metric.WithAttributes(eventTypeAttr(eventType)))
}

// RecordNotifyQueueSize records the current queue size.
func (m *Metrics) RecordNotifyQueueSize(ctx context.Context, size int64) {
	m.NotifyQueueSize.Record(ctx, size)
}
