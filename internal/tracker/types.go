package tracker

import (
	"time"
)

// Params are the submission parameters of an audit job.
type Params struct {
	ChannelName string   `json:"channelName"`
	Email       string   `json:"email"`
	Services    []string `json:"services"`
}

// Job is a submitted unit of remote work. Immutable once created.
type Job struct {
	ID        string    `json:"id"`
	Params    Params    `json:"params"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is the remote processor's view of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// NormalizeStatus folds the processor's intermediate stages (queued,
// channel_resolved, videos_fetched, ...) into StatusProcessing.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// Video is one analysed video in a completed audit.
type Video struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Statistics  map[string]any `json:"statistics,omitempty"`
}

// Result is the payload returned with a completed job.
type Result struct {
	ChannelID   string         `json:"channelId,omitempty"`
	ChannelName string         `json:"channelName,omitempty"`
	Videos      []Video        `json:"videos,omitempty"`
	Report      map[string]any `json:"aiReport,omitempty"`
}

// StatusReport is a single status query response.
type StatusReport struct {
	JobID     string  `json:"jobId"`
	Status    Status  `json:"status"`
	RawStatus string  `json:"rawStatus,omitempty"` // status as reported, before normalisation
	Error     string  `json:"error,omitempty"`
	Result    *Result `json:"result,omitempty"`
}

// OutcomeKind tags a terminal Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeTimeout OutcomeKind = "timeout"
)

// Default user-facing messages for non-success outcomes.
const (
	DefaultFailureMessage = "Job processing failed"
	TimeoutMessage        = "Job processing timed out. Please check back later."
)

// Outcome is the single finalized result of tracking one job.
type Outcome struct {
	JobID    string      `json:"jobId"`
	Kind     OutcomeKind `json:"kind"`
	Result   *Result     `json:"result,omitempty"`  // set for OutcomeSuccess
	Message  string      `json:"message,omitempty"` // set for OutcomeFailure and OutcomeTimeout
	Attempts int         `json:"attempts"`
}

// Succeeded reports whether the outcome carries a result.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}
