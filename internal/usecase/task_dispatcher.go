package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

type TaskKind string

const (
	TaskMainCycle       TaskKind = "main-cycle"
	TaskLiveCycle       TaskKind = "live-cycle"
	TaskSettlementSweep TaskKind = "settlement-sweep"
	TaskSettleMatch     TaskKind = "settle-match"
	TaskStaleSweep      TaskKind = "stale-sweep"
)

type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskCanceled  TaskStatus = "canceled"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCanceled
}

type TaskRequest struct {
	Kind    TaskKind
	MatchID int64
	Delay   time.Duration
}

type Task struct {
	ID           string     `json:"id"`
	Kind         TaskKind   `json:"kind"`
	MatchID      int64      `json:"match_id,omitempty"`
	Status       TaskStatus `json:"status"`
	DedupKey     string     `json:"dedup_key"`
	Deduplicated bool       `json:"deduplicated,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TaskQueue runs admin-triggered background work.
type TaskQueue interface {
	Enqueue(ctx context.Context, req TaskRequest) (Task, error)
	Cancel(ctx context.Context, taskID string) error
	List(ctx context.Context) ([]Task, error)
}

type noopTaskQueue struct{}

func (noopTaskQueue) Enqueue(_ context.Context, _ TaskRequest) (Task, error) {
	return Task{}, fmt.Errorf("%w: task queue is not configured", ErrDependencyUnavailable)
}

func (noopTaskQueue) Cancel(_ context.Context, _ string) error {
	return fmt.Errorf("%w: task queue is not configured", ErrDependencyUnavailable)
}

func (noopTaskQueue) List(_ context.Context) ([]Task, error) {
	return []Task{}, nil
}

func NewNoopTaskQueue() TaskQueue {
	return noopTaskQueue{}
}

const (
	maxTaskDelay   = 24 * time.Hour
	taskDedupSlot  = time.Minute
	maxTaskKindLen = 64
)

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TaskDispatcher validates task requests and maps each kind onto the
// operation it triggers.
type TaskDispatcher struct {
	registry   *SupervisorRegistry
	reconciler *ReconciliationService
	settlement *SettlementService
}

func NewTaskDispatcher(registry *SupervisorRegistry, reconciler *ReconciliationService, settlement *SettlementService) *TaskDispatcher {
	return &TaskDispatcher{
		registry:   registry,
		reconciler: reconciler,
		settlement: settlement,
	}
}

func (d *TaskDispatcher) Validate(req TaskRequest) (TaskRequest, error) {
	req.Kind = TaskKind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	if len(req.Kind) > maxTaskKindLen {
		return TaskRequest{}, fmt.Errorf("%w: task kind is too long", ErrInvalidInput)
	}
	switch req.Kind {
	case TaskMainCycle, TaskLiveCycle, TaskSettlementSweep, TaskStaleSweep:
		req.MatchID = 0
	case TaskSettleMatch:
		if req.MatchID <= 0 {
			return TaskRequest{}, fmt.Errorf("%w: match_id is required for %s", ErrInvalidInput, req.Kind)
		}
	default:
		return TaskRequest{}, fmt.Errorf("%w: unknown task kind %q", ErrInvalidInput, req.Kind)
	}
	if req.Delay < 0 || req.Delay > maxTaskDelay {
		return TaskRequest{}, fmt.Errorf("%w: delay must be between 0 and %s", ErrInvalidInput, maxTaskDelay)
	}
	return req, nil
}

// DedupKey identifies equivalent requests within the same minute slot.
func (d *TaskDispatcher) DedupKey(req TaskRequest, at time.Time) string {
	target := "all"
	if req.MatchID > 0 {
		target = strconv.FormatInt(req.MatchID, 10)
	}
	return dedupKey(string(req.Kind), target, at, taskDedupSlot)
}

func (d *TaskDispatcher) Run(ctx context.Context, task Task) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.TaskDispatcher.Run",
		attribute.String("task.kind", string(task.Kind)),
		attribute.Int64("match.id", task.MatchID),
	)
	defer span.End()

	switch task.Kind {
	case TaskMainCycle:
		return d.runSupervisor(ctx, SupervisorMain)
	case TaskLiveCycle:
		return d.runSupervisor(ctx, SupervisorLive)
	case TaskSettlementSweep:
		return d.runSupervisor(ctx, SupervisorSettlement)
	case TaskSettleMatch:
		_, err := d.settlement.SettleMatch(ctx, task.MatchID)
		return err
	case TaskStaleSweep:
		_, err := d.reconciler.SweepStale(ctx)
		return err
	default:
		return fmt.Errorf("%w: unknown task kind %q", ErrInvalidInput, task.Kind)
	}
}

func (d *TaskDispatcher) runSupervisor(ctx context.Context, name string) error {
	s, err := d.registry.Get(name)
	if err != nil {
		return err
	}
	return s.RunOnce(ctx)
}

func dedupKey(prefix, target string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	prefix = sanitizeDedupSegment(prefix)
	target = sanitizeDedupSegment(target)
	return prefix + "-" + target + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}
