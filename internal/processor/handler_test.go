package processor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittracker/internal/apperrors"
	"audittracker/internal/gateway"
	"audittracker/internal/tracker"
)

func TestHandler_ServesGatewayContract(t *testing.T) {
	t.Parallel()
	sim := NewSimulator(Config{MinSteps: 1, MaxSteps: 1, Seed: 1})
	server := httptest.NewServer(NewHandler(sim))
	t.Cleanup(server.Close)

	client, err := gateway.New(gateway.Config{BaseURL: server.URL, RequestsPerSecond: -1})
	require.NoError(t, err)

	id, err := client.Submit(context.Background(), testParams)
	require.NoError(t, err)

	report, err := client.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusProcessing, report.Status)
	assert.Equal(t, StageQueued, report.RawStatus)

	report, err = client.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusCompleted, report.Status)
	require.NotNil(t, report.Result)
	assert.Len(t, report.Result.Videos, 3)
	assert.NotEmpty(t, report.Result.Report["summary"])
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(NewHandler(NewSimulator(Config{})))
	t.Cleanup(server.Close)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		substr string
	}{
		{"malformed body", http.MethodPost, "/submit", "{", http.StatusBadRequest, "Invalid request body"},
		{"missing channel", http.MethodPost, "/submit", `{"email":"a@b.c","services":["1"]}`, http.StatusBadRequest, "channel name is required"},
		{"unknown job", http.MethodGet, "/job/nope", "", http.StatusNotFound, "Job not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := http.NewRequestWithContext(context.Background(), tt.method, server.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.substr)
		})
	}
}

func TestHandler_UnknownJobIsTransportErrorForClient(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(NewHandler(NewSimulator(Config{})))
	t.Cleanup(server.Close)

	client, err := gateway.New(gateway.Config{BaseURL: server.URL, RequestsPerSecond: -1})
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrTransport)
}
