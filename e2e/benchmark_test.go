//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audittracker/internal/api"
	"audittracker/internal/audit"
	"audittracker/internal/health"
	"audittracker/internal/notify"
	"audittracker/internal/observability"
	"audittracker/internal/processor"
	"audittracker/internal/testutil"
	"audittracker/internal/tracker"
)

// BenchmarkSubmitAudits stress tests submission with every audit tracked to completion.
// Run with: go test -tags=e2e -run=^$ -bench=BenchmarkSubmitAudits -benchtime=10s ./e2e/
func BenchmarkSubmitAudits(b *testing.B) {
	var events atomic.Int64
	callbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer callbackServer.Close()

	server, cleanup := createBenchServer(b, []string{callbackServer.URL})
	defer cleanup()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			if _, err := postAudit(server, fmt.Sprintf("@bench-%d-%d", time.Now().UnixNano(), i)); err != nil {
				b.Error(err)
			}
		}
	})

	b.StopTimer()
	b.ReportMetric(float64(events.Load()), "events")
}

// TestNotifierThroughput measures how many outcome events the notifier can deliver.
func TestNotifierThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping throughput test in short mode")
	}

	const (
		numEvents   = 10000
		concurrency = 100
	)

	var received atomic.Int64
	callbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer callbackServer.Close()

	d := notify.New(notify.Config{
		URLs:        []string{callbackServer.URL},
		BufferSize:  numEvents,
		Workers:     concurrency,
		HTTPTimeout: 5 * time.Second,
	}, nil)
	defer d.Close(context.Background())

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	dispatchStart := time.Now()
	for i := range numEvents {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(id int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := tracker.Outcome{JobID: fmt.Sprintf("job-%d", id), Kind: tracker.OutcomeTimeout, Attempts: 60, Message: tracker.TimeoutMessage}
			if err := d.Notify(tracker.Params{ChannelName: "@bench"}, outcome); err != nil {
				t.Logf("Notify error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	dispatchDuration := time.Since(dispatchStart)

	testutil.WaitFor(t, func() bool {
		return received.Load() >= numEvents
	}, testutil.WithTimeout(30*time.Second))
	totalDuration := time.Since(dispatchStart)

	stats := d.Stats()
	receivedCount := received.Load()

	t.Logf("=== Notifier Throughput Test ===")
	t.Logf("Queued:        %d events in %v", numEvents, dispatchDuration)
	t.Logf("Received:      %d/%d events", receivedCount, numEvents)
	t.Logf("Delivered:     %d", stats.Delivered)
	t.Logf("Failed:        %d", stats.Failed)
	t.Logf("Dropped:       %d", stats.Dropped)
	t.Logf("Throughput:    %.0f events/sec", float64(receivedCount)/totalDuration.Seconds())

	if receivedCount < int64(numEvents*0.99) {
		t.Errorf("Expected at least 99%% delivery, got %.1f%%", float64(receivedCount)/float64(numEvents)*100)
	}
}

// TestTrackerUnderLoad tracks many audits at once, each to exactly one outcome event.
func TestTrackerUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	const (
		numAudits   = 200
		concurrency = 20
	)

	var mu sync.Mutex
	perJob := make(map[string]int)
	callbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		perJob[r.Header.Get("Ce-Subject")]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer callbackServer.Close()

	server, cleanup := createBenchServer(t, []string{callbackServer.URL})
	defer cleanup()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)
	var created, failed atomic.Int64

	start := time.Now()
	for i := range numAudits {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(id int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := postAudit(server, fmt.Sprintf("@load-%d", id)); err != nil {
				failed.Add(1)
				return
			}
			created.Add(1)
		}(i)
	}
	wg.Wait()
	createDuration := time.Since(start)

	testutil.WaitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return int64(len(perJob)) >= created.Load()
	}, testutil.WithTimeout(60*time.Second))

	mu.Lock()
	defer mu.Unlock()

	t.Logf("=== Tracker Load Test ===")
	t.Logf("Audits created: %d/%d in %v", created.Load(), numAudits, createDuration)
	t.Logf("Audits failed:  %d", failed.Load())
	t.Logf("Outcomes:       %d", len(perJob))

	if created.Load() < int64(numAudits*0.9) {
		t.Errorf("Expected at least 90%% submission success, got %d/%d", created.Load(), numAudits)
	}
	if int64(len(perJob)) < created.Load() {
		t.Errorf("Expected an outcome event for every audit, got %d/%d", len(perJob), created.Load())
	}
	for id, n := range perJob {
		if n != 1 {
			t.Errorf("Audit %s produced %d outcome events, want 1", id, n)
		}
	}
}

func createBenchServer(tb testing.TB, notifyURLs []string) (string, func()) {
	// If E2E_API_URL is set, use external server
	if url := os.Getenv("E2E_API_URL"); url != "" {
		tb.Logf("Using external API: %s", url)
		return url, func() {}
	}

	ctx := context.Background()

	metrics, _, err := observability.NewMetrics(ctx)
	if err != nil {
		tb.Fatalf("Failed to create metrics: %v", err)
	}

	sim := processor.NewSimulator(processor.Config{MinSteps: 1, MaxSteps: 3, FailureRate: 0.2})
	reports := tracker.NewMemorySink()
	jobTracker := tracker.New(tracker.Config{
		FastInterval: 5 * time.Millisecond,
		SlowInterval: 10 * time.Millisecond,
	}, sim, reports, metrics)

	dispatcher := notify.New(notify.Config{
		URLs:        notifyURLs,
		BufferSize:  10000,
		Workers:     50,
		HTTPTimeout: 5 * time.Second,
	}, metrics)

	healthChecker := health.NewChecker()
	healthChecker.Require("processor", sim)
	healthChecker.Require("tracker", jobTracker)
	healthChecker.Optional("notifier", dispatcher)

	router := api.NewRouter(api.RouterConfig{
		AuditService:  audit.NewService(sim, jobTracker, reports, dispatcher, metrics),
		Metrics:       metrics,
		HealthChecker: healthChecker,
	})
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		jobTracker.Close(context.Background())
		dispatcher.Close(context.Background())
	}

	return server.URL, cleanup
}
