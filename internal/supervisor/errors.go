package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawnFailure matches errors returned when the OS refused to create the process.
	ErrSpawnFailure = errors.New("spawn failure")
	// ErrTerminationFailure matches errors returned when the OS refused to terminate the process.
	ErrTerminationFailure = errors.New("termination failure")
)

// Kind classifies supervisor errors.
type Kind int

const (
	KindSpawn Kind = iota + 1
	KindTermination
)

// Error carries the cause of a failed Start or Stop. The supervisor stays
// usable after any Error.
type Error struct {
	Kind    Kind
	Command string
	PID     int
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSpawn:
		return fmt.Sprintf("Failed to start server: %v", e.Err)
	case KindTermination:
		return fmt.Sprintf("Failed to stop server (pid %d): %v", e.PID, e.Err)
	default:
		return fmt.Sprintf("supervisor error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match on ErrSpawnFailure and ErrTerminationFailure.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSpawnFailure:
		return e.Kind == KindSpawn
	case ErrTerminationFailure:
		return e.Kind == KindTermination
	}
	return false
}
