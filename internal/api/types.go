package api

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/Paintersrp/tether/internal/supervisor"
)

var (
	ErrSpawnFailure       = supervisor.ErrSpawnFailure
	ErrTerminationFailure = supervisor.ErrTerminationFailure
	ErrUnavailable        = errors.New("control API unavailable")
)

// OperationResult captures the outcome of a start or stop request.
type OperationResult struct {
	Operation     string    `json:"operation"`
	Outcome       string    `json:"outcome"`
	Message       string    `json:"message"`
	PID           int       `json:"pid,omitempty"`
	ExitConfirmed bool      `json:"exit_confirmed,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ProbeReport describes the last reachability check.
type ProbeReport struct {
	Reachable bool      `json:"reachable"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// StatusReport describes the supervisor slot.
type StatusReport struct {
	Name        string       `json:"name"`
	Running     bool         `json:"running"`
	PID         int          `json:"pid,omitempty"`
	Command     string       `json:"command"`
	Workdir     string       `json:"workdir,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	Exited      bool         `json:"exited"`
	ExitError   string       `json:"exit_error,omitempty"`
	Probe       *ProbeReport `json:"probe,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Message summarises the report the way the front-end labels it.
func (r *StatusReport) Message() string {
	switch {
	case r == nil || !r.Running:
		return "Server not running"
	case r.Exited:
		return "Server exited (stale handle, stop to clear)"
	default:
		return "Server running"
	}
}

// Controller exposes supervisor operations required by control servers and
// front-ends.
type Controller interface {
	Start(stdcontext.Context) (*OperationResult, error)
	Stop(stdcontext.Context) (*OperationResult, error)
	Status(stdcontext.Context) (*StatusReport, error)
}

// RemoteError is a failure reported by a remote control API.
type RemoteError struct {
	Code    string
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Is maps remote error codes back onto the supervisor's error kinds.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrSpawnFailure:
		return e.Code == CodeSpawnFailure
	case ErrTerminationFailure:
		return e.Code == CodeTerminationFailure
	case stdcontext.Canceled:
		return e.Code == CodeCanceled
	}
	return false
}

const (
	CodeSpawnFailure       = "spawn_failure"
	CodeTerminationFailure = "termination_failure"
	CodeCanceled           = "context_canceled"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal_error"
)
