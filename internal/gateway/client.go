// Package gateway is the HTTP client for the remote audit processor.
//
// All jobs share one Client, so its rate limiter paces the combined poll
// traffic and its circuit breaker fails every query fast while the
// processor is down. A failed query is still an attempt for the job that
// issued it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"audittracker/internal/apperrors"
	"audittracker/internal/tracker"
	"audittracker/pkg/circuitbreaker"
)

const maxResponseBytes = 8 << 20

// StatusError is a non-2xx processor response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("processor returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("processor returned HTTP %d: %s", e.Code, e.Message)
}

// Client talks to the processor over HTTP.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// New creates a client. cfg.BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, apperrors.Validation("processorUrl", fmt.Sprintf("invalid processor URL %q", cfg.BaseURL))
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond < 0 {
		limit = rate.Inf
	}

	logger := slog.With("component", "gateway", "processor", base.Host)
	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("Processor circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// Submit hands a new audit to the processor and returns its job ID.
// Every failure is a submission error.
func (c *Client) Submit(ctx context.Context, params tracker.Params) (string, error) {
	var resp SubmitResponse
	if err := c.call(ctx, http.MethodPost, "/submit", newSubmitRequest(params), &resp); err != nil {
		return "", apperrors.Submission(err)
	}
	if resp.JobID == "" {
		return "", apperrors.Submission(errors.New("processor returned no job ID"))
	}
	c.logger.Debug("Job submitted", "jobId", resp.JobID)
	return resp.JobID, nil
}

// Query fetches the current status of a job. Every failure, including an
// unknown job ID, is a transport error.
func (c *Client) Query(ctx context.Context, jobID string) (*tracker.StatusReport, error) {
	var resp JobResponse
	if err := c.call(ctx, http.MethodGet, "/job/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, apperrors.Transport("gateway.query", err)
	}
	if resp.JobID == "" {
		resp.JobID = jobID
	}
	return resp.Report(), nil
}

// Ready fails while the circuit breaker is rejecting calls.
func (c *Client) Ready(context.Context) error {
	if c.breaker.Rejecting() {
		return apperrors.Unavailable("processor", "circuit breaker open")
	}
	return nil
}

// call performs one request under the rate limiter and circuit breaker and
// decodes a 2xx JSON body into out. Only network errors and 5xx responses
// count against the breaker.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body []byte
	var statusErr *StatusError
	err := c.breaker.Execute(func() error {
		code, payload, err := c.send(ctx, method, path, in)
		if err != nil {
			return err
		}
		if code < 200 || code >= 300 {
			statusErr = &StatusError{Code: code, Message: errorMessage(payload)}
			if code >= 500 {
				return statusErr
			}
			return nil
		}
		body = payload
		return nil
	})
	if err != nil {
		return err
	}
	if statusErr != nil {
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

// errorMessage extracts {"error": ...} or {"detail": ...} from a failed
// response body, falling back to the raw text.
func errorMessage(payload []byte) string {
	var er ErrorResponse
	if json.Unmarshal(payload, &er) == nil {
		if msg := er.Message(); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

var _ tracker.Gateway = (*Client)(nil)
