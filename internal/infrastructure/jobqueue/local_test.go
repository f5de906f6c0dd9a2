package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu      sync.Mutex
	ran     []usecase.TaskKind
	block   chan struct{}
	failFor usecase.TaskKind
}

func (r *stubRunner) Validate(req usecase.TaskRequest) (usecase.TaskRequest, error) {
	if req.Kind == "" {
		return usecase.TaskRequest{}, fmt.Errorf("%w: kind is required", usecase.ErrInvalidInput)
	}
	return req, nil
}

func (r *stubRunner) DedupKey(req usecase.TaskRequest, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s", req.Kind, req.MatchID, at.Truncate(time.Minute).Format(time.RFC3339))
}

func (r *stubRunner) Run(ctx context.Context, task usecase.Task) error {
	r.mu.Lock()
	r.ran = append(r.ran, task.Kind)
	block := r.block
	r.mu.Unlock()

	if task.Kind == "panic" {
		panic("boom")
	}
	if block != nil && task.Kind == "slow" {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if task.Kind == r.failFor {
		return errors.New("settle failed")
	}
	return nil
}

func newTestQueue(t *testing.T, runner Runner) *LocalQueue {
	t.Helper()

	q, err := NewLocalQueue(runner, LocalQueueConfig{Workers: 2, TaskTimeout: 5 * time.Second, Retain: 10, Logger: logging.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func waitStatus(t *testing.T, q *LocalQueue, taskID string, want usecase.TaskStatus) usecase.Task {
	t.Helper()

	var got usecase.Task
	require.Eventually(t, func() bool {
		items, err := q.List(context.Background())
		require.NoError(t, err)
		for _, item := range items {
			if item.ID == taskID {
				got = item
				return item.Status == want
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond, "task %s never reached %s", taskID, want)
	return got
}

func TestLocalQueue_RunsAndRecordsOutcome(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{failFor: usecase.TaskSettleMatch}
	q := newTestQueue(t, runner)
	ctx := context.Background()

	ok, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskSettlementSweep})
	require.NoError(t, err)
	assert.Equal(t, usecase.TaskScheduled, ok.Status)
	assert.Contains(t, ok.ID, "task_")

	failed, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskSettleMatch, MatchID: 7})
	require.NoError(t, err)

	panicked, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: "panic"})
	require.NoError(t, err)

	done := waitStatus(t, q, ok.ID, usecase.TaskSucceeded)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.FinishedAt)

	bad := waitStatus(t, q, failed.ID, usecase.TaskFailed)
	assert.Equal(t, "settle failed", bad.Error)

	crashed := waitStatus(t, q, panicked.ID, usecase.TaskFailed)
	assert.Contains(t, crashed.Error, "task panicked")

	_, err = q.Enqueue(ctx, usecase.TaskRequest{})
	require.ErrorIs(t, err, usecase.ErrInvalidInput)
}

func TestLocalQueue_DeduplicatesWithinSlot(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, &stubRunner{})
	ctx := context.Background()

	first, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskMainCycle, Delay: time.Hour})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskMainCycle, Delay: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Deduplicated)

	// A canceled task does not block a new request for the same slot.
	require.NoError(t, q.Cancel(ctx, first.ID))
	third, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskMainCycle, Delay: time.Hour})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.False(t, third.Deduplicated)
}

func TestLocalQueue_CancelScheduledAndRunning(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{block: make(chan struct{})}
	q := newTestQueue(t, runner)
	ctx := context.Background()

	delayed, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskStaleSweep, Delay: time.Hour})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, delayed.ID))
	waitStatus(t, q, delayed.ID, usecase.TaskCanceled)

	err = q.Cancel(ctx, delayed.ID)
	require.ErrorIs(t, err, usecase.ErrConflict)

	slow, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: "slow"})
	require.NoError(t, err)
	waitStatus(t, q, slow.ID, usecase.TaskRunning)
	require.NoError(t, q.Cancel(ctx, slow.ID))
	waitStatus(t, q, slow.ID, usecase.TaskCanceled)

	err = q.Cancel(ctx, "task_missing")
	require.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestLocalQueue_CloseRejectsNewTasks(t *testing.T) {
	t.Parallel()

	q, err := NewLocalQueue(&stubRunner{}, LocalQueueConfig{Logger: logging.NewNop()})
	require.NoError(t, err)
	ctx := context.Background()

	pending, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskLiveCycle, Delay: time.Hour})
	require.NoError(t, err)

	require.NoError(t, q.Close(ctx))
	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	assert.Equal(t, usecase.TaskCanceled, items[0].Status)

	_, err = q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskLiveCycle})
	require.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
}

func TestLocalQueue_LateTimerAfterCloseDoesNotRun(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	q, err := NewLocalQueue(runner, LocalQueueConfig{Logger: logging.NewNop()})
	require.NoError(t, err)
	t.Cleanup(q.pool.Release)
	ctx := context.Background()

	pending, err := q.Enqueue(ctx, usecase.TaskRequest{Kind: usecase.TaskLiveCycle, Delay: time.Hour})
	require.NoError(t, err)

	// A timer that fired while Close was starting still finds the task scheduled.
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.submit(pending.ID)

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, usecase.TaskCanceled, items[0].Status)
	assert.Equal(t, "queue closed", items[0].Error)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.ran)
}
