package jobqueue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/oddsline/internal/platform/id"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/sourcegraph/conc/panics"
)

const (
	defaultWorkers     = 4
	defaultTaskTimeout = 5 * time.Minute
	defaultRetain      = 200
)

// Runner validates, keys and executes tasks.
type Runner interface {
	Validate(req usecase.TaskRequest) (usecase.TaskRequest, error)
	DedupKey(req usecase.TaskRequest, at time.Time) string
	Run(ctx context.Context, task usecase.Task) error
}

type LocalQueueConfig struct {
	Workers     int
	TaskTimeout time.Duration
	// Retain bounds how many finished tasks stay listed.
	Retain int
	Logger *logging.Logger
}

type entry struct {
	task      usecase.Task
	timer     *time.Timer
	cancel    context.CancelFunc
	canceling bool
}

// LocalQueue runs tasks in-process on an ants pool. Delayed tasks wait on a
// timer; nothing survives a restart.
type LocalQueue struct {
	mu sync.Mutex

	runner  Runner
	pool    *ants.Pool
	ids     id.Generator
	logger  *logging.Logger
	timeout time.Duration
	retain  int
	now     func() time.Time

	tasks   map[string]*entry
	byDedup map[string]string
	closed  bool

	baseCtx   context.Context
	cancelAll context.CancelFunc
	running   sync.WaitGroup
}

var _ usecase.TaskQueue = (*LocalQueue)(nil)

func NewLocalQueue(runner Runner, cfg LocalQueueConfig) (*LocalQueue, error) {
	if runner == nil {
		return nil, fmt.Errorf("task runner is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetain
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create task pool: %w", err)
	}

	baseCtx, cancelAll := context.WithCancel(context.Background())
	return &LocalQueue{
		runner:    runner,
		pool:      pool,
		ids:       id.NewUUIDGenerator("task"),
		logger:    cfg.Logger.Named("taskqueue"),
		timeout:   cfg.TaskTimeout,
		retain:    cfg.Retain,
		now:       time.Now,
		tasks:     make(map[string]*entry),
		byDedup:   make(map[string]string),
		baseCtx:   baseCtx,
		cancelAll: cancelAll,
	}, nil
}

func (q *LocalQueue) Enqueue(ctx context.Context, req usecase.TaskRequest) (usecase.Task, error) {
	req, err := q.runner.Validate(req)
	if err != nil {
		return usecase.Task{}, err
	}

	now := q.now().UTC()
	scheduledFor := now.Add(req.Delay)
	key := q.runner.DedupKey(req, scheduledFor)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return usecase.Task{}, fmt.Errorf("%w: task queue is shutting down", usecase.ErrDependencyUnavailable)
	}
	if existingID, ok := q.byDedup[key]; ok {
		if existing, found := q.tasks[existingID]; found && reusable(existing.task.Status) {
			out := existing.task
			out.Deduplicated = true
			return out, nil
		}
	}

	taskID, err := q.ids.NewID()
	if err != nil {
		return usecase.Task{}, fmt.Errorf("generate task id: %w", err)
	}
	e := &entry{task: usecase.Task{
		ID:           taskID,
		Kind:         req.Kind,
		MatchID:      req.MatchID,
		Status:       usecase.TaskScheduled,
		DedupKey:     key,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
	}}
	q.tasks[taskID] = e
	q.byDedup[key] = taskID
	e.timer = time.AfterFunc(req.Delay, func() { q.submit(taskID) })
	q.pruneLocked()

	q.logger.InfoContext(ctx, "task scheduled",
		"task_id", taskID,
		"kind", req.Kind,
		"match_id", req.MatchID,
		"scheduled_for", scheduledFor,
	)
	return e.task, nil
}

func (q *LocalQueue) Cancel(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: task %q", usecase.ErrNotFound, taskID)
	}
	switch e.task.Status {
	case usecase.TaskScheduled:
		e.timer.Stop()
		q.finishLocked(e, usecase.TaskCanceled, "")
	case usecase.TaskRunning:
		e.canceling = true
		if e.cancel != nil {
			e.cancel()
		}
	default:
		return fmt.Errorf("%w: task %q is already %s", usecase.ErrConflict, taskID, e.task.Status)
	}

	q.logger.InfoContext(ctx, "task canceled", "task_id", taskID, "kind", e.task.Kind)
	return nil
}

// List returns tasks newest first.
func (q *LocalQueue) List(_ context.Context) ([]usecase.Task, error) {
	q.mu.Lock()
	out := make([]usecase.Task, 0, len(q.tasks))
	for _, e := range q.tasks {
		out = append(out, e.task)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Close cancels scheduled tasks, interrupts running ones and waits for the
// workers, bounded by ctx.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, e := range q.tasks {
		if e.task.Status == usecase.TaskScheduled {
			e.timer.Stop()
			q.finishLocked(e, usecase.TaskCanceled, "queue closed")
		}
	}
	q.mu.Unlock()
	q.cancelAll()

	done := make(chan struct{})
	go func() {
		q.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.pool.Release()
		return fmt.Errorf("wait for running tasks: %w", ctx.Err())
	}
	q.pool.Release()
	return nil
}

func (q *LocalQueue) submit(taskID string) {
	q.mu.Lock()
	e, ok := q.tasks[taskID]
	if !ok || e.task.Status != usecase.TaskScheduled {
		q.mu.Unlock()
		return
	}
	// Close may already be waiting on running; no new worker may join it.
	if q.closed {
		q.finishLocked(e, usecase.TaskCanceled, "queue closed")
		q.mu.Unlock()
		return
	}
	q.running.Add(1)
	q.mu.Unlock()

	if err := q.pool.Submit(func() {
		defer q.running.Done()
		q.run(taskID)
	}); err != nil {
		q.running.Done()
		q.mu.Lock()
		q.finishLocked(e, usecase.TaskFailed, fmt.Sprintf("submit to pool: %v", err))
		q.mu.Unlock()
		q.logger.Error("task submit failed", "task_id", taskID, "error", err)
	}
}

func (q *LocalQueue) run(taskID string) {
	q.mu.Lock()
	e, ok := q.tasks[taskID]
	if !ok || e.task.Status != usecase.TaskScheduled {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()
	startedAt := q.now().UTC()
	e.task.Status = usecase.TaskRunning
	e.task.StartedAt = &startedAt
	e.cancel = cancel
	task := e.task
	q.mu.Unlock()

	var (
		runErr  error
		catcher panics.Catcher
	)
	catcher.Try(func() {
		runErr = q.runner.Run(ctx, task)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		runErr = fmt.Errorf("task panicked: %w", recovered.AsError())
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case e.canceling:
		q.finishLocked(e, usecase.TaskCanceled, "")
	case runErr != nil:
		q.finishLocked(e, usecase.TaskFailed, runErr.Error())
		q.logger.WarnContext(ctx, "task failed", "task_id", taskID, "kind", task.Kind, "error", runErr)
	default:
		q.finishLocked(e, usecase.TaskSucceeded, "")
		q.logger.InfoContext(ctx, "task succeeded",
			"task_id", taskID,
			"kind", task.Kind,
			"duration_ms", q.now().Sub(startedAt).Milliseconds(),
		)
	}
}

func (q *LocalQueue) finishLocked(e *entry, status usecase.TaskStatus, errText string) {
	finishedAt := q.now().UTC()
	e.task.Status = status
	e.task.Error = errText
	e.task.FinishedAt = &finishedAt
	e.cancel = nil
}

// pruneLocked drops the oldest finished tasks beyond the retain bound.
func (q *LocalQueue) pruneLocked() {
	finished := make([]*entry, 0)
	for _, e := range q.tasks {
		if e.task.Status.IsTerminal() {
			finished = append(finished, e)
		}
	}
	if len(finished) <= q.retain {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].task.CreatedAt.Before(finished[j].task.CreatedAt)
	})
	for _, e := range finished[:len(finished)-q.retain] {
		delete(q.tasks, e.task.ID)
		if q.byDedup[e.task.DedupKey] == e.task.ID {
			delete(q.byDedup, e.task.DedupKey)
		}
	}
}

// A failed or canceled task does not block a retry in the same slot.
func reusable(status usecase.TaskStatus) bool {
	return status != usecase.TaskFailed && status != usecase.TaskCanceled
}
