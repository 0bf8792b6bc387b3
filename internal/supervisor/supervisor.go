// Package supervisor owns the lifecycle of a single externally spawned server
// process on behalf of a concurrent front-end.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Paintersrp/tether/internal/runtime"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStopWait bounds how long Stop waits for the process to exit after the
// termination request was accepted. Exceeding the bound is not an error.
func WithStopWait(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopWait = d
		}
	}
}

// Supervisor holds at most one process handle. All reads and writes of the
// slot happen under mu.
type Supervisor struct {
	launcher runtime.Launcher
	spec     runtime.LaunchSpec
	stopWait time.Duration

	mu     sync.Mutex
	handle runtime.Handle
}

// New constructs an empty supervisor that spawns spec through launcher.
func New(launcher runtime.Launcher, spec runtime.LaunchSpec, opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher: launcher,
		spec:     spec.Clone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spec returns a copy of the launch configuration.
func (s *Supervisor) Spec() runtime.LaunchSpec {
	return s.spec.Clone()
}

// Start spawns the configured process unless one is already stored. The
// presence check, the spawn and the store form a single critical section, so
// concurrent callers never spawn twice.
func (s *Supervisor) Start(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return Result{Outcome: OutcomeAlreadyRunning, PID: s.handle.PID()}, nil
	}

	if s.launcher == nil {
		return Result{}, s.spawnError(errors.New("no launcher configured"))
	}
	h, err := s.launcher.Launch(ctx, s.spec)
	if err != nil {
		return Result{}, s.spawnError(err)
	}
	if h == nil {
		return Result{}, s.spawnError(errors.New("launcher returned no process handle"))
	}

	s.handle = h
	return Result{Outcome: OutcomeStarted, PID: h.PID()}, nil
}

func (s *Supervisor) spawnError(err error) *Error {
	return &Error{Kind: KindSpawn, Command: s.spec.CommandLine(), Err: err}
}

// Stop takes the stored handle out of the slot and requests termination. The
// slot is empty afterwards whether or not termination succeeded.
func (s *Supervisor) Stop(ctx context.Context) (Result, error) {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return Result{Outcome: OutcomeNotRunning}, nil
	}

	pid := h.PID()
	if err := h.Terminate(); err != nil {
		return Result{PID: pid}, &Error{Kind: KindTermination, Command: s.spec.CommandLine(), PID: pid, Err: err}
	}

	res := Result{Outcome: OutcomeStopped, PID: pid}
	if s.stopWait > 0 {
		res.ExitConfirmed = waitExit(ctx, h, s.stopWait)
	}
	return res, nil
}

func waitExit(ctx context.Context, h runtime.Handle, bound time.Duration) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(bound)
	defer timer.Stop()
	select {
	case <-h.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Status is a point-in-time copy of the slot.
type Status struct {
	Running   bool
	PID       int
	Command   string
	Workdir   string
	StartedAt time.Time

	// Exited reports that the stored process has already exited on its own.
	// The handle stays stored until Stop is called.
	Exited  bool
	ExitErr error
}

// Status reports the slot contents without mutating it.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	st := Status{
		Command: s.spec.CommandLine(),
		Workdir: s.spec.Workdir,
	}
	if h == nil {
		return st
	}
	st.Running = true
	st.PID = h.PID()
	st.StartedAt = h.StartedAt()
	select {
	case <-h.Done():
		st.Exited = true
		st.ExitErr = h.ExitErr()
	default:
	}
	return st
}
