package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/scraperrun"
	"github.com/riskibarqy/oddsline/internal/platform/id"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/platform/rollinglog"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CycleFunc runs one iteration of a background loop. logger tees into the
// supervisor's rolling log.
type CycleFunc func(ctx context.Context, logger *logging.Logger) (map[string]any, error)

type SupervisorConfig struct {
	Name         string
	Interval     time.Duration
	CycleTimeout time.Duration
}

type SupervisorStatus struct {
	Name           string         `json:"name"`
	Running        bool           `json:"running"`
	Stopping       bool           `json:"stopping"`
	Interval       string         `json:"interval"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	LastDurationMs int64          `json:"last_duration_ms"`
	LastError      string         `json:"last_error,omitempty"`
	LastStats      map[string]any `json:"last_stats,omitempty"`
	Cycles         int64          `json:"cycles"`
	Failures       int64          `json:"failures"`
	RecentLogLines []string       `json:"recent_log_lines"`
}

const statusLogLines = 20

// Supervisor owns one named background loop. The loop checks for a stop
// request between cycles only; a cycle in flight runs to completion or to its
// own timeout.
type Supervisor struct {
	cfg     SupervisorConfig
	cycle   CycleFunc
	logs    *rollinglog.Buffer
	logger  *logging.Logger
	runs    scraperrun.Repository
	ids     id.Generator
	metrics PipelineMetrics
	spawn   func(func()) error
	now     func() time.Time

	cycleMu sync.Mutex

	mu        sync.Mutex
	running   bool
	stopping  bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastRunAt time.Time
	lastTook  time.Duration
	lastErr   string
	lastStats map[string]any
	cycles    int64
	failures  int64
}

func NewSupervisor(
	cfg SupervisorConfig,
	cycle CycleFunc,
	logs *rollinglog.Buffer,
	runs scraperrun.Repository,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *Supervisor {
	if logger == nil {
		logger = logging.Default()
	}
	if logs == nil {
		logs = rollinglog.New(rollinglog.DefaultMaxLines)
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 3 * time.Minute
	}

	return &Supervisor{
		cfg:     cfg,
		cycle:   cycle,
		logs:    logs,
		logger:  logger.With("scraper", cfg.Name).WithSink(logs, logging.LevelInfo),
		runs:    runs,
		ids:     id.NewUUIDGenerator("run"),
		metrics: metricsOrNoop(metrics),
		spawn: func(fn func()) error {
			go fn()
			return nil
		},
		now:     time.Now,
	}
}

func (s *Supervisor) Name() string {
	return s.cfg.Name
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	if err := s.spawn(func() { s.loop(stop, done) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start %s: %w", s.cfg.Name, err)
	}
	s.running = true
	s.stopping = false
	s.stopCh = stop
	s.doneCh = done
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "supervisor started", "interval", s.cfg.Interval.String())
	return nil
}

// Stop requests a cooperative stop and waits for the loop to exit or for ctx
// to end, whichever comes first.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, s.cfg.Name)
	}
	if !s.stopping {
		s.stopping = true
		close(s.stopCh)
	}
	done := s.doneCh
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "supervisor stop requested")
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s to stop: %w", s.cfg.Name, ctx.Err())
	}
}

// RunOnce runs a single cycle outside the loop. It waits for a loop cycle in
// flight rather than overlapping with it.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Supervisor) Status() SupervisorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := SupervisorStatus{
		Name:           s.cfg.Name,
		Running:        s.running,
		Stopping:       s.stopping,
		Interval:       s.cfg.Interval.String(),
		LastDurationMs: s.lastTook.Milliseconds(),
		LastError:      s.lastErr,
		LastStats:      s.lastStats,
		Cycles:         s.cycles,
		Failures:       s.failures,
		RecentLogLines: s.logs.Tail(statusLogLines),
	}
	if !s.lastRunAt.IsZero() {
		at := s.lastRunAt
		out.LastRunAt = &at
	}
	return out
}

func (s *Supervisor) Logs() []string {
	return s.logs.Lines()
}

func (s *Supervisor) ClearLogs() error {
	return s.logs.Clear()
}

func (s *Supervisor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopping = false
		s.mu.Unlock()
		s.logger.Info("supervisor stopped")
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		// Errors are recorded in the status and the rolling log.
		_ = s.runCycle(context.Background())

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runCycle(parent context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.CycleTimeout)
	defer cancel()
	ctx, span := startUsecaseSpan(ctx, "usecase.Supervisor.runCycle", attribute.String("supervisor.name", s.cfg.Name))
	defer span.End()

	runID, err := s.ids.NewID()
	if err != nil {
		runID = fmt.Sprintf("run_%d", s.now().UnixNano())
	}
	startedAt := s.now().UTC()
	s.recordEvent(ctx, scraperrun.Event{
		RunID:      runID,
		Scraper:    s.cfg.Name,
		Status:     scraperrun.StatusStarted,
		OccurredAt: startedAt,
	})

	var (
		stats    map[string]any
		cycleErr error
		catcher  panics.Catcher
	)
	catcher.Try(func() {
		stats, cycleErr = s.cycle(ctx, s.logger)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		cycleErr = fmt.Errorf("cycle panicked: %w", recovered.AsError())
	}
	took := s.now().Sub(startedAt)

	s.mu.Lock()
	s.lastRunAt = startedAt
	s.lastTook = took
	s.lastStats = stats
	s.cycles++
	if cycleErr != nil {
		s.failures++
		s.lastErr = cycleErr.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	recordSpanError(span, cycleErr)
	s.metrics.ObserveCycle(s.cfg.Name, took, cycleErr)
	event := scraperrun.Event{
		RunID:      runID,
		Scraper:    s.cfg.Name,
		Status:     scraperrun.StatusCompleted,
		Stats:      stats,
		OccurredAt: s.now().UTC(),
	}
	if cycleErr != nil {
		event.Status = scraperrun.StatusFailed
		event.ErrorMessage = cycleErr.Error()
		s.logger.ErrorContext(ctx, "cycle failed", "run_id", runID, "duration_ms", took.Milliseconds(), "error", cycleErr)
	} else {
		s.logger.InfoContext(ctx, "cycle completed", "run_id", runID, "duration_ms", took.Milliseconds())
	}
	s.recordEvent(ctx, event)
	return cycleErr
}

func (s *Supervisor) recordEvent(ctx context.Context, event scraperrun.Event) {
	if s.runs == nil {
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
		event.SpanID = sc.SpanID().String()
	}
	if err := s.runs.UpsertEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record scraper run event failed",
			"run_id", event.RunID,
			"status", event.Status,
			"error", err,
		)
	}
}
