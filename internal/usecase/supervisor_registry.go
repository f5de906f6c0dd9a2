package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"
)

type ControlAction string

const (
	ControlStart ControlAction = "start"
	ControlStop  ControlAction = "stop"
)

func ParseControlAction(v string) (ControlAction, error) {
	switch ControlAction(strings.ToLower(strings.TrimSpace(v))) {
	case ControlStart:
		return ControlStart, nil
	case ControlStop:
		return ControlStop, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, v)
	}
}

type ControlOutcome struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type CombinedStatus struct {
	Total       int                `json:"total"`
	Running     int                `json:"running"`
	Supervisors []SupervisorStatus `json:"supervisors"`
}

// SupervisorRegistry holds the named loops of the process. Every loop runs
// under the registry's wait group so Wait returns only once all have exited.
// Once StopAll begins no supervisor may start again.
type SupervisorRegistry struct {
	mu       sync.RWMutex
	order    []string
	items    map[string]*Supervisor
	loops    conc.WaitGroup
	shutdown bool
}

func NewSupervisorRegistry() *SupervisorRegistry {
	return &SupervisorRegistry{items: make(map[string]*Supervisor)}
}

func (r *SupervisorRegistry) Register(s *Supervisor) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("%w: supervisor name is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[s.Name()]; exists {
		return fmt.Errorf("%w: supervisor %s already registered", ErrConflict, s.Name())
	}
	s.spawn = r.spawn
	r.items[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

func (r *SupervisorRegistry) spawn(fn func()) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shutdown {
		return fmt.Errorf("%w: supervisors are shutting down", ErrDependencyUnavailable)
	}
	r.loops.Go(fn)
	return nil
}

func (r *SupervisorRegistry) Get(name string) (*Supervisor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: supervisor %q", ErrNotFound, name)
	}
	return s, nil
}

func (r *SupervisorRegistry) all() []*Supervisor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Supervisor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

func (r *SupervisorRegistry) Combined() CombinedStatus {
	items := r.all()
	out := CombinedStatus{Total: len(items), Supervisors: make([]SupervisorStatus, 0, len(items))}
	for _, s := range items {
		status := s.Status()
		if status.Running {
			out.Running++
		}
		out.Supervisors = append(out.Supervisors, status)
	}
	return out
}

// Control applies action to every supervisor and reports each outcome.
// A supervisor already in the requested state counts as a failed outcome.
func (r *SupervisorRegistry) Control(ctx context.Context, action ControlAction) []ControlOutcome {
	items := r.all()
	out := make([]ControlOutcome, 0, len(items))
	for _, s := range items {
		var err error
		switch action {
		case ControlStart:
			err = s.Start(ctx)
		case ControlStop:
			err = s.Stop(ctx)
		default:
			err = fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
		}
		outcome := ControlOutcome{Name: s.Name(), OK: err == nil}
		if err != nil {
			outcome.Error = err.Error()
		}
		out = append(out, outcome)
	}
	return out
}

// StopAll stops every running supervisor and waits, bounded by ctx, for all
// loops to exit.
func (r *SupervisorRegistry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()

	for _, s := range r.all() {
		// Supervisors that were never started report ErrNotRunning.
		_ = s.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for supervisors: %w", ctx.Err())
	}
}
