package gateway

import (
	"encoding/json"
	"strings"

	"audittracker/internal/tracker"
)

// SubmitRequest is the body of POST /submit.
type SubmitRequest struct {
	Email       string   `json:"email"`
	ChannelName string   `json:"channelName"`
	Services    []string `json:"services"`
}

// SubmitResponse is the body returned by POST /submit.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// JobResponse is the body returned by GET /job/{id}.
type JobResponse struct {
	JobID       string          `json:"jobId"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	ChannelID   string          `json:"channelId,omitempty"`
	ChannelName string          `json:"channelName,omitempty"`
	Videos      []tracker.Video `json:"videos,omitempty"`
	AIReport    map[string]any  `json:"aiReport,omitempty"`
}

// ErrorResponse is the body of a non-2xx processor response. Processors
// built on FastAPI reply with {"detail": ...} instead, where detail is a
// string or a list of validation issues.
type ErrorResponse struct {
	Error  string          `json:"error,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Message returns the human-readable error, preferring Error over Detail.
func (e ErrorResponse) Message() string {
	if e.Error != "" {
		return e.Error
	}
	if len(e.Detail) == 0 {
		return ""
	}

	var text string
	if json.Unmarshal(e.Detail, &text) == nil {
		return text
	}
	var issues []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(e.Detail, &issues) == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg != "" {
				msgs = append(msgs, issue.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(e.Detail)
}

// Report converts the wire response into a tracker status report.
// The result payload is attached only to completed jobs.
func (r *JobResponse) Report() *tracker.StatusReport {
	report := &tracker.StatusReport{
		JobID:     r.JobID,
		Status:    tracker.NormalizeStatus(r.Status),
		RawStatus: r.Status,
		Error:     r.Error,
	}
	if report.Status == tracker.StatusCompleted {
		report.Result = &tracker.Result{
			ChannelID:   r.ChannelID,
			ChannelName: r.ChannelName,
			Videos:      r.Videos,
			Report:      r.AIReport,
		}
	}
	return report
}

func newSubmitRequest(p tracker.Params) SubmitRequest {
	return SubmitRequest{
		Email:       p.Email,
		ChannelName: p.ChannelName,
		Services:    p.Services,
	}
}
