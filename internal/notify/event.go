package notify

import (
	"time"

	"github.com/google/uuid"

	"audittracker/internal/tracker"
)

// Event types, one per outcome kind.
const (
	EventTypeCompleted = "audittracker.job.completed"
	EventTypeFailed    = "audittracker.job.failed"
	EventTypeTimeout   = "audittracker.job.timeout"
)

// CloudEvent represents a CloudEvents 1.0 specification event
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// NewEvent creates a CloudEvent with a random ID, stamped now.
func NewEvent(eventType, source, subject string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// EventType maps an outcome kind to its event type.
func EventType(kind tracker.OutcomeKind) string {
	switch kind {
	case tracker.OutcomeSuccess:
		return EventTypeCompleted
	case tracker.OutcomeFailure:
		return EventTypeFailed
	default:
		return EventTypeTimeout
	}
}

// OutcomeEvent builds the event announcing a job's terminal outcome. The
// subject is the job ID; the data carries who asked for the audit and, on
// success, the report itself.
func OutcomeEvent(source string, params tracker.Params, outcome tracker.Outcome) *CloudEvent {
	data := map[string]any{
		"jobId":       outcome.JobID,
		"outcome":     string(outcome.Kind),
		"attempts":    outcome.Attempts,
		"channelName": params.ChannelName,
		"email":       params.Email,
		"services":    params.Services,
	}
	if outcome.Message != "" {
		data["message"] = outcome.Message
	}
	if r := outcome.Result; r != nil {
		if r.ChannelName != "" {
			data["channelName"] = r.ChannelName
		}
		if r.ChannelID != "" {
			data["channelId"] = r.ChannelID
		}
		if r.Report != nil {
			data["aiReport"] = r.Report
		}
		data["videoCount"] = len(r.Videos)
	}
	return NewEvent(EventType(outcome.Kind), source, outcome.JobID, data)
}
