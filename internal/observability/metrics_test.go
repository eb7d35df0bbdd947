package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/livez", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/audits", 202, 0.050)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/audits/abc123", 200, 0.010)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/reports/xyz789", 404, 0.005)
	metrics.RecordHTTPRequest(ctx, "DELETE", "/v1/audits/abc123", 204, 0.100)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/audits", 502, 0.001)
}

func TestRecordTrackingMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordSubmission(ctx, true)
	metrics.RecordSubmission(ctx, false)
	metrics.RecordTrackingStarted(ctx)
	metrics.RecordTrackingStarted(ctx)
	metrics.RecordPoll(ctx, "processing", false)
	metrics.RecordPoll(ctx, "processing", true)
	metrics.RecordPoll(ctx, "completed", false)
	metrics.RecordTrackingFinished(ctx, "success", 3, 4.2)
	metrics.RecordTrackingCancelled(ctx)
}

func TestRecordNotifyMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordNotifyDelivered(ctx, "audittracker.job.completed", 0.02)
	metrics.RecordNotifyFailed(ctx, "audittracker.job.failed")
	metrics.RecordNotifyDropped(ctx, "audittracker.job.timeout")
	metrics.RecordNotifyQueueSize(ctx, 7)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"/livez", "/livez"},
		{"/metrics", "/metrics"},
		{"/v1/audits", "/v1/audits"},
		{"/v1/audits/", "/v1/audits/"},
		{"/v1/audits/abc123", "/v1/audits/{jobId}"},
		{"/v1/reports/xyz-789-def", "/v1/reports/{jobId}"},
		{"/v1/reports", "/v1/reports"},
		{"/v1/modules", "/v1/modules"},
		{"/other/path", "/other/path"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
