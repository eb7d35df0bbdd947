// Package audit is the application service for channel audits: it
// validates requests, submits them to the processor, tracks them to a
// terminal outcome and fans that outcome out to notifications.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"audittracker/internal/apperrors"
	"audittracker/internal/tracker"
)

// Notifier announces terminal outcomes.
type Notifier interface {
	Notify(params tracker.Params, outcome tracker.Outcome) error
}

// MetricsRecorder is an optional interface for recording submission metrics.
type MetricsRecorder interface {
	RecordSubmission(ctx context.Context, success bool)
}

// ReportStore is the result sink plus the lookups the API needs.
type ReportStore interface {
	tracker.Sink
	Get(jobID string) (tracker.ReportRecord, bool)
	Delete(jobID string) bool
}

// Request is the body of an audit submission.
type Request struct {
	ChannelName string   `json:"channelName"`
	Email       string   `json:"email"`
	Services    []string `json:"services"`
}

// SubmitResponse is returned once the processor has accepted an audit.
type SubmitResponse struct {
	JobID       string        `json:"jobId"`
	State       tracker.State `json:"state"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

// StatusResponse describes an audit: its tracking progress and, once
// completed, its report.
type StatusResponse struct {
	JobID      string                `json:"jobId"`
	State      tracker.State         `json:"state"`
	Attempts   int                   `json:"attempts"`
	LastStatus string                `json:"lastStatus,omitempty"`
	NextPollIn string                `json:"nextPollIn,omitempty"`
	Message    string                `json:"message,omitempty"`
	Cancelled  bool                  `json:"cancelled,omitempty"`
	StartedAt  *time.Time            `json:"startedAt,omitempty"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty"`
	Report     *tracker.ReportRecord `json:"report,omitempty"`
}

// Service coordinates submission and tracking of audits.
type Service struct {
	submitter tracker.Submitter
	tracker   *tracker.Tracker
	reports   ReportStore
	notifier  Notifier
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewService creates an audit service. notifier and metrics may be nil.
// reports must be the sink the tracker writes to.
func NewService(submitter tracker.Submitter, tr *tracker.Tracker, reports ReportStore, notifier Notifier, metrics MetricsRecorder) *Service {
	return &Service{
		submitter: submitter,
		tracker:   tr,
		reports:   reports,
		notifier:  notifier,
		metrics:   metrics,
		logger:    slog.With("component", "audit"),
	}
}

// Submit validates req, hands it to the processor and begins tracking the
// returned job. It returns as soon as tracking has started.
func (s *Service) Submit(ctx context.Context, req *Request) (*SubmitResponse, error) {
	return s.SubmitAndTrack(ctx, req, nil)
}

// SubmitAndTrack is Submit with a caller callback that fires exactly once
// with the job's outcome, after the report (if any) is stored.
//
// Failures before a job ID exists are submission errors and nothing is
// tracked.
func (s *Service) SubmitAndTrack(ctx context.Context, req *Request, onTerminal func(tracker.Outcome)) (*SubmitResponse, error) {
	params, err := Validate(req)
	if err != nil {
		s.recordSubmission(ctx, false)
		return nil, apperrors.Submission(err)
	}

	jobID, err := s.submitter.Submit(ctx, params)
	if err != nil {
		s.recordSubmission(ctx, false)
		if !errors.Is(err, apperrors.ErrSubmission) {
			err = apperrors.Submission(err)
		}
		s.logger.Warn("Submission failed", "channel", params.ChannelName, "error", err)
		return nil, err
	}
	s.recordSubmission(ctx, true)

	if err := s.track(jobID, params, onTerminal); err != nil {
		return nil, err
	}

	s.logger.Info("Audit submitted", "jobId", jobID, "channel", params.ChannelName, "services", len(params.Services))
	return &SubmitResponse{
		JobID:       jobID,
		State:       tracker.StateProcessing,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Track resumes tracking of an already submitted job, for example after a
// timeout. A job whose report is already stored is a conflict.
func (s *Service) Track(jobID string, req *Request) error {
	if _, ok := s.reports.Get(jobID); ok {
		return apperrors.Conflict("audit", jobID, "audit already completed")
	}
	params, err := Validate(req)
	if err != nil {
		return err
	}
	return s.track(jobID, params, nil)
}

func (s *Service) track(jobID string, params tracker.Params, onTerminal func(tracker.Outcome)) error {
	err := s.tracker.BeginTracking(jobID, params, func(outcome tracker.Outcome) {
		s.announce(params, outcome)
		if onTerminal != nil {
			onTerminal(outcome)
		}
	})
	if err != nil {
		s.logger.Error("Failed to begin tracking", "jobId", jobID, "error", err)
	}
	return err
}

// announce forwards an outcome to the notifier.
func (s *Service) announce(params tracker.Params, outcome tracker.Outcome) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(params, outcome); err != nil {
		s.logger.Warn("Outcome notification not queued", "jobId", outcome.JobID, "error", err)
	}
}

// Lookup returns the status of an audit: live progress while tracked,
// otherwise the stored report.
func (s *Service) Lookup(jobID string) (*StatusResponse, error) {
	report, hasReport := s.reports.Get(jobID)
	prog, tracked := s.tracker.Progress(jobID)

	if !tracked && !hasReport {
		return nil, apperrors.NotFound("audit", jobID)
	}

	resp := &StatusResponse{JobID: jobID}
	if tracked {
		resp.State = prog.State
		resp.Attempts = prog.Attempts
		resp.LastStatus = prog.LastStatus
		resp.NextPollIn = prog.NextPollIn
		resp.Cancelled = prog.Cancelled
		resp.FinishedAt = prog.FinishedAt
		if !prog.StartedAt.IsZero() {
			startedAt := prog.StartedAt
			resp.StartedAt = &startedAt
		}
		if prog.Outcome != nil {
			resp.Message = prog.Outcome.Message
		}
	}
	if hasReport {
		resp.State = tracker.StateCompleted
		resp.Report = &report
	}
	return resp, nil
}

// Cancel stops tracking an audit. The processor keeps working on it.
func (s *Service) Cancel(jobID string) error {
	if err := s.tracker.Cancel(jobID); err != nil {
		return err
	}
	s.logger.Info("Audit tracking cancelled", "jobId", jobID)
	return nil
}

// Reports returns all completed audits in completion order.
func (s *Service) Reports() []tracker.ReportRecord {
	return s.reports.Records()
}

// Report returns one completed audit.
func (s *Service) Report(jobID string) (tracker.ReportRecord, error) {
	rec, ok := s.reports.Get(jobID)
	if !ok {
		return tracker.ReportRecord{}, apperrors.NotFound("report", jobID)
	}
	return rec, nil
}

// DeleteReport removes a completed audit.
func (s *Service) DeleteReport(jobID string) error {
	if !s.reports.Delete(jobID) {
		return apperrors.NotFound("report", jobID)
	}
	s.logger.Info("Report deleted", "jobId", jobID)
	return nil
}

// Modules returns the selectable analysis modules.
func (s *Service) Modules() []Module {
	return Catalog()
}

func (s *Service) recordSubmission(ctx context.Context, success bool) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(ctx, success)
	}
}

// Validate checks req and returns normalised tracker params: trimmed
// channel and email, services de-duplicated in request order.
func Validate(req *Request) (tracker.Params, error) {
	if req == nil {
		return tracker.Params{}, apperrors.Validation("body", "request body is required")
	}

	channel := strings.TrimSpace(req.ChannelName)
	if channel == "" {
		return tracker.Params{}, apperrors.Validation("channelName", "channel name is required")
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return tracker.Params{}, apperrors.Validation("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return tracker.Params{}, apperrors.Validation("email", fmt.Sprintf("invalid email address %q", email))
	}

	if len(req.Services) == 0 {
		return tracker.Params{}, apperrors.Validation("services", "at least one service must be selected")
	}
	services := make([]string, 0, len(req.Services))
	seen := make(map[string]bool, len(req.Services))
	for _, id := range req.Services {
		id = strings.TrimSpace(id)
		if _, ok := LookupModule(id); !ok {
			return tracker.Params{}, apperrors.Validation("services", fmt.Sprintf("unknown service %q", id))
		}
		if !seen[id] {
			seen[id] = true
			services = append(services, id)
		}
	}

	return tracker.Params{ChannelName: channel, Email: email, Services: services}, nil
}
