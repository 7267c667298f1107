// Copyright 2025 Momentum Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jobs tracks long-running external operations: video generation,
// reindexing, website crawls. Job records live in the document DB and are
// polled to a terminal state; progress is monotonic non-decreasing and no
// job stays processing past the configured max duration.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/storage"
)

// ErrJobNotFound is returned when no job record exists.
var ErrJobNotFound = errors.New("job not found")

// Kind classifies what a job tracks.
type Kind string

const (
	KindReindex  Kind = "reindex"
	KindVideoGen Kind = "videoGen"
	KindImageGen Kind = "imageGen"
	KindMusicGen Kind = "musicGen"
	KindCrawl    Kind = "crawl"
)

// State is the job lifecycle state.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Job is the persisted record surfaced to polling callers.
type Job struct {
	JobID       string         `json:"jobId"`
	Kind        Kind           `json:"kind"`
	State       State          `json:"state"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.State == StateCompleted || j.State == StateFailed
}

// Tracker owns job records. Updates for one job are serialised by a
// per-job mutex; the document DB write is the source of truth.
type Tracker struct {
	docs   storage.DocumentDB
	cfg    config.JobsConfig
	locks  sync.Map // jobID -> *sync.Mutex
	logger *slog.Logger
}

func NewTracker(docs storage.DocumentDB, cfg config.JobsConfig) *Tracker {
	return &Tracker{docs: docs, cfg: cfg, logger: logger.GetLogger()}
}

func jobPath(jobID string) string {
	return "generationJobs/" + jobID
}

func (t *Tracker) lock(jobID string) *sync.Mutex {
	mu, _ := t.locks.LoadOrStore(jobID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create registers a new job. An empty jobID gets a generated one, so
// callers may supply their own identifier for client-side correlation.
func (t *Tracker) Create(ctx context.Context, jobID string, kind Kind) (*Job, error) {
	if jobID == "" {
		jobID = uuid.NewString()
	}

	job := &Job{
		JobID:     jobID,
		Kind:      kind,
		State:     StateQueued,
		StartedAt: time.Now(),
	}
	if err := t.docs.Set(ctx, jobPath(jobID), job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (t *Tracker) Get(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	err := t.docs.Get(ctx, jobPath(jobID), &job)
	if errors.Is(err, storage.ErrDocNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateProgress moves the job to processing and records progress.
// Progress is clamped to [0,100] and never decreases, even when an
// individual upstream write was retried or delivered out of order.
func (t *Tracker) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	mu := t.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	job, err := t.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.State = StateProcessing
	if message != "" {
		job.Message = message
	}
	return t.docs.Set(ctx, jobPath(jobID), job)
}

// Complete marks the job done with progress 100 and an optional payload.
func (t *Tracker) Complete(ctx context.Context, jobID string, result map[string]any) error {
	return t.finish(ctx, jobID, StateCompleted, "", result)
}

// Fail marks the job failed with an explanatory message.
func (t *Tracker) Fail(ctx context.Context, jobID, message string) error {
	return t.finish(ctx, jobID, StateFailed, message, nil)
}

func (t *Tracker) finish(ctx context.Context, jobID string, state State, message string, result map[string]any) error {
	mu := t.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	job, err := t.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	job.State = state
	if state == StateCompleted {
		job.Progress = 100
	}
	if message != "" {
		job.Message = message
	}
	if result != nil {
		job.Result = result
	}
	now := time.Now()
	job.CompletedAt = &now
	return t.docs.Set(ctx, jobPath(jobID), job)
}

// PollFunc checks an external operation once. done with a nil error ends
// the job as completed with result; a non-nil error fails it.
type PollFunc func(ctx context.Context) (done bool, progress int, result map[string]any, err error)

// StartPolling drives poll at the configured interval on a background
// goroutine. The job is failed when the max duration elapses, so a
// broken provider can never leave it processing indefinitely.
func (t *Tracker) StartPolling(jobID string, poll PollFunc) {
	interval := t.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxDuration := t.cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = 30 * time.Minute
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if err := t.Fail(context.Background(), jobID,
					fmt.Sprintf("job exceeded max duration of %s", maxDuration)); err != nil {
					t.logger.Error("failed to fail timed-out job", "job_id", jobID, "error", err)
				}
				return
			case <-ticker.C:
				done, progress, result, err := poll(ctx)
				if err != nil {
					if failErr := t.Fail(context.Background(), jobID, err.Error()); failErr != nil {
						t.logger.Error("failed to record job failure", "job_id", jobID, "error", failErr)
					}
					return
				}
				if done {
					if err := t.Complete(context.Background(), jobID, result); err != nil {
						t.logger.Error("failed to complete job", "job_id", jobID, "error", err)
					}
					return
				}
				if err := t.UpdateProgress(ctx, jobID, progress, ""); err != nil {
					t.logger.Warn("failed to update job progress", "job_id", jobID, "error", err)
				}
			}
		}
	}()
}
