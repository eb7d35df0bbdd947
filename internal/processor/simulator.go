// Package processor simulates the remote audit processor.
//
// The simulator accepts submissions and walks each job through the
// processor's stages (queued, channel_resolved, videos_fetched) before it
// settles as completed or failed. It serves local development and tests,
// either in-process as a tracker.Gateway or over HTTP via Handler.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"audittracker/internal/apperrors"
	"audittracker/internal/audit"
	"audittracker/internal/gateway"
	"audittracker/internal/tracker"
)

// Remote stage names, in order.
const (
	StageQueued          = "queued"
	StageChannelResolved = "channel_resolved"
	StageVideosFetched   = "videos_fetched"
	StageCompleted       = "completed"
	StageFailed          = "failed"
)

var pendingStages = []string{StageQueued, StageChannelResolved, StageVideosFetched}

// failure messages by the stage that failed.
var stageErrors = map[string]string{
	StageQueued:          "Channel could not be resolved",
	StageChannelResolved: "Failed to fetch latest videos",
	StageVideosFetched:   "AI analysis failed",
}

type simJob struct {
	id        string
	params    tracker.Params
	steps     int  // non-terminal responses before settling
	fail      bool // settle as failed
	queries   int
	createdAt time.Time
	settledAt time.Time
	channelID string
}

// Simulator is an in-memory processor. Safe for concurrent use.
type Simulator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	rng  *rand.Rand
	jobs map[string]*simJob
}

// NewSimulator creates a simulator.
func NewSimulator(cfg Config) *Simulator {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		cfg:    cfg,
		logger: slog.With("component", "processor"),
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		jobs:   make(map[string]*simJob),
	}
}

// Submit accepts a new audit and returns its job ID.
func (s *Simulator) Submit(_ context.Context, params tracker.Params) (string, error) {
	if strings.TrimSpace(params.ChannelName) == "" {
		return "", apperrors.Submission(apperrors.Validation("channelName", "channel name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	job := &simJob{
		id:        uuid.NewString(),
		params:    params,
		steps:     s.cfg.MinSteps + s.rng.IntN(s.cfg.MaxSteps-s.cfg.MinSteps+1),
		fail:      s.rng.Float64() < s.cfg.FailureRate,
		createdAt: s.now(),
		channelID: "UC" + strings.ReplaceAll(uuid.NewString(), "-", "")[:22],
	}
	s.jobs[job.id] = job

	s.logger.Info("Job queued", "jobId", job.id, "channel", params.ChannelName, "steps", job.steps, "willFail", job.fail)
	return job.id, nil
}

// Query implements tracker.StatusQuerier. Unknown jobs are transport errors,
// as they are over HTTP.
func (s *Simulator) Query(_ context.Context, jobID string) (*tracker.StatusReport, error) {
	resp, err := s.Status(jobID)
	if err != nil {
		return nil, apperrors.Transport("processor.query", err)
	}
	return resp.Report(), nil
}

// Status advances jobID by one step (or by elapsed time) and returns its
// wire representation.
func (s *Simulator) Status(jobID string) (*gateway.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, apperrors.NotFound("job", jobID)
	}
	job.queries++

	step := job.queries - 1
	if s.cfg.StepInterval > 0 {
		step = int(s.now().Sub(job.createdAt) / s.cfg.StepInterval)
	}

	resp := &gateway.JobResponse{JobID: job.id, ChannelName: job.params.ChannelName}
	if step < job.steps {
		resp.Status = pendingStages[min(step, len(pendingStages)-1)]
		if step > 0 {
			resp.ChannelID = job.channelID
		}
		return resp, nil
	}

	if job.settledAt.IsZero() {
		job.settledAt = s.now()
	}
	if job.fail {
		resp.Status = StageFailed
		resp.Error = stageErrors[pendingStages[min(job.steps, len(pendingStages))-1]]
		return resp, nil
	}

	resp.Status = StageCompleted
	resp.ChannelID = job.channelID
	resp.Videos = sampleVideos(job)
	resp.AIReport = sampleReport(job)
	return resp, nil
}

// Ready implements the readiness probe; the simulator is always available.
func (s *Simulator) Ready(context.Context) error {
	return nil
}

// Len returns the number of known jobs.
func (s *Simulator) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// pruneLocked drops jobs settled longer than the retention window.
func (s *Simulator) pruneLocked() {
	cutoff := s.now().Add(-s.cfg.Retention)
	for id, job := range s.jobs {
		if !job.settledAt.IsZero() && job.settledAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func sampleVideos(job *simJob) []tracker.Video {
	videos := make([]tracker.Video, 0, 3)
	for i := range 3 {
		id := fmt.Sprintf("%s%02d", job.channelID[2:10], i)
		videos = append(videos, tracker.Video{
			Title:       fmt.Sprintf("%s upload #%d", job.params.ChannelName, i+1),
			Description: "Sample video generated by the audit simulator.",
			URL:         "https://www.youtube.com/watch?v=" + id,
			Statistics: map[string]any{
				"viewCount":    1000 * (i + 1),
				"likeCount":    40 * (i + 1),
				"commentCount": 5 * (i + 1),
			},
		})
	}
	return videos
}

func sampleReport(job *simJob) map[string]any {
	modules := make([]map[string]any, 0, len(job.params.Services))
	for _, id := range job.params.Services {
		modules = append(modules, map[string]any{
			"id":     id,
			"name":   audit.ModuleName(id),
			"status": "analysed",
		})
	}
	return map[string]any{
		"summary":     fmt.Sprintf("Audit of %s across %d modules.", job.params.ChannelName, len(modules)),
		"modules":     modules,
		"generatedAt": job.settledAt.UTC().Format(time.RFC3339),
	}
}

var _ tracker.Gateway = (*Simulator)(nil)
