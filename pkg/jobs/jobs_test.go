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

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/storage"
)

func newTestTracker(cfg config.JobsConfig) *Tracker {
	return NewTracker(storage.NewMemoryDocumentDB(), cfg)
}

func TestCreateAssignsIDWhenMissing(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindVideoGen)
	require.NoError(t, err)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, StateQueued, job.State)
	assert.Zero(t, job.Progress)

	t.Run("explicit id is kept", func(t *testing.T) {
		job, err := tracker.Create(ctx, "client-42", KindReindex)
		require.NoError(t, err)
		assert.Equal(t, "client-42", job.JobID)

		got, err := tracker.Get(ctx, "client-42")
		require.NoError(t, err)
		assert.Equal(t, KindReindex, got.Kind)
	})
}

func TestGetMissingJob(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{})

	_, err := tracker.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestProgressIsMonotonicAndClamped(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindReindex)
	require.NoError(t, err)

	require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, 40, "processed 4 of 10"))
	// A stale write delivered out of order must not pull progress back.
	require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, 20, ""))

	got, err := tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, StateProcessing, got.State)
	assert.Equal(t, "processed 4 of 10", got.Message, "empty messages keep the previous one")

	t.Run("clamped to range", func(t *testing.T) {
		require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, 250, ""))
		got, err := tracker.Get(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress)

		require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, -5, ""))
		got, err = tracker.Get(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress)
	})
}

func TestCompleteSetsTerminalState(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindImageGen)
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, 50, ""))

	require.NoError(t, tracker.Complete(ctx, job.JobID, map[string]any{"imageUrl": "mem://a.png"}))

	got, err := tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.True(t, got.Terminal())
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "mem://a.png", got.Result["imageUrl"])
}

func TestTerminalJobsIgnoreFurtherUpdates(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindCrawl)
	require.NoError(t, err)
	require.NoError(t, tracker.Fail(ctx, job.JobID, "crawler timed out"))

	require.NoError(t, tracker.UpdateProgress(ctx, job.JobID, 90, "late update"))
	require.NoError(t, tracker.Complete(ctx, job.JobID, nil))

	got, err := tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "crawler timed out", got.Message)
	assert.Zero(t, got.Progress)
}

func TestStartPollingCompletesOnDone(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{PollInterval: 5 * time.Millisecond, MaxDuration: time.Second})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindVideoGen)
	require.NoError(t, err)

	calls := 0
	tracker.StartPolling(job.JobID, func(context.Context) (bool, int, map[string]any, error) {
		calls++
		if calls < 3 {
			return false, calls * 30, nil, nil
		}
		return true, 100, map[string]any{"videoUrl": "mem://v.mp4"}, nil
	})

	require.Eventually(t, func() bool {
		got, err := tracker.Get(ctx, job.JobID)
		return err == nil && got.Terminal()
	}, time.Second, 5*time.Millisecond)

	got, err := tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "mem://v.mp4", got.Result["videoUrl"])
}

func TestStartPollingFailsOnError(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{PollInterval: 5 * time.Millisecond, MaxDuration: time.Second})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindVideoGen)
	require.NoError(t, err)

	tracker.StartPolling(job.JobID, func(context.Context) (bool, int, map[string]any, error) {
		return false, 0, nil, errors.New("provider rejected the operation")
	})

	require.Eventually(t, func() bool {
		got, err := tracker.Get(ctx, job.JobID)
		return err == nil && got.State == StateFailed
	}, time.Second, 5*time.Millisecond)
}

func TestStartPollingEnforcesMaxDuration(t *testing.T) {
	tracker := newTestTracker(config.JobsConfig{PollInterval: 5 * time.Millisecond, MaxDuration: 30 * time.Millisecond})
	ctx := context.Background()

	job, err := tracker.Create(ctx, "", KindMusicGen)
	require.NoError(t, err)

	// The poll never reports done; the deadline must fail the job.
	tracker.StartPolling(job.JobID, func(context.Context) (bool, int, map[string]any, error) {
		return false, 10, nil, nil
	})

	require.Eventually(t, func() bool {
		got, err := tracker.Get(ctx, job.JobID)
		return err == nil && got.State == StateFailed
	}, time.Second, 5*time.Millisecond)

	got, err := tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Contains(t, got.Message, "max duration")
}
