package tracker

import (
	"slices"
	"sync"
	"time"
)

// ReportRecord is a completed audit: the job's result merged with the
// parameters it was submitted with. Never mutated after creation.
type ReportRecord struct {
	ID          string         `json:"id"`
	JobID       string         `json:"jobId"`
	ChannelName string         `json:"channelName"`
	ChannelID   string         `json:"channelId,omitempty"`
	Email       string         `json:"email"`
	Status      Status         `json:"status"`
	Report      map[string]any `json:"aiReport,omitempty"`
	Videos      []Video        `json:"videos,omitempty"`
	Services    []string       `json:"services"`
	SubmittedAt time.Time      `json:"submittedAt"`
	CompletedAt time.Time      `json:"completedAt"`
}

// NewReportRecord builds the record for a completed job. The channel name
// reported by the processor wins over the submitted one.
func NewReportRecord(job Job, result *Result, completedAt time.Time) ReportRecord {
	if result == nil {
		result = &Result{}
	}
	name := result.ChannelName
	if name == "" {
		name = job.Params.ChannelName
	}
	return ReportRecord{
		ID:          job.ID,
		JobID:       job.ID,
		ChannelName: name,
		ChannelID:   result.ChannelID,
		Email:       job.Params.Email,
		Status:      StatusCompleted,
		Report:      result.Report,
		Videos:      result.Videos,
		Services:    slices.Clone(job.Params.Services),
		SubmittedAt: job.CreatedAt,
		CompletedAt: completedAt,
	}
}

// Sink stores finalized successful outcomes.
type Sink interface {
	// Record appends rec keyed by rec.JobID. Returns false, leaving the
	// existing entry untouched, when the key is already present.
	Record(rec ReportRecord) bool

	// Records returns all records in insertion order.
	Records() []ReportRecord
}

// MemorySink is an insertion-ordered, keyed, in-memory Sink.
// Safe for concurrent use.
type MemorySink struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]ReportRecord
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		byID: make(map[string]ReportRecord),
	}
}

// Record implements Sink.
func (s *MemorySink) Record(rec ReportRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.JobID]; exists {
		return false
	}
	s.byID[rec.JobID] = rec
	s.order = append(s.order, rec.JobID)
	return true
}

// Records implements Sink.
func (s *MemorySink) Records() []ReportRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ReportRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Get returns the record for a job.
func (s *MemorySink) Get(jobID string) (ReportRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[jobID]
	return rec, ok
}

// Delete removes a record. Returns false if it did not exist.
func (s *MemorySink) Delete(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[jobID]; !exists {
		return false
	}
	delete(s.byID, jobID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == jobID })
	return true
}

// Len returns the number of records.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

var _ Sink = (*MemorySink)(nil)
