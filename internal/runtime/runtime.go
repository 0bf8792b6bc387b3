package runtime

import (
	"context"
	"strings"
	"time"
)

// LaunchSpec describes the fixed command a launcher spawns. It is supplied once
// when a supervisor is constructed and never varies between calls.
type LaunchSpec struct {
	Name    string
	Command string
	Args    []string
	Workdir string
	Env     map[string]string
}

// Clone returns a deep copy of the spec so callers cannot mutate shared slices
// or maps.
func (s LaunchSpec) Clone() LaunchSpec {
	dup := s
	if s.Args != nil {
		dup.Args = append([]string(nil), s.Args...)
	}
	if s.Env != nil {
		dup.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			dup.Env[k] = v
		}
	}
	return dup
}

// CommandLine renders the command and its arguments for display.
func (s LaunchSpec) CommandLine() string {
	parts := make([]string, 0, len(s.Args)+1)
	if s.Command != "" {
		parts = append(parts, s.Command)
	}
	for _, arg := range s.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = "\"" + strings.ReplaceAll(arg, "\"", "\\\"") + "\""
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Handle references a single spawned OS process.
type Handle interface {
	// PID returns the identifier assigned by the operating system at spawn.
	PID() int

	// StartedAt reports when the process was spawned.
	StartedAt() time.Time

	// Terminate requests termination of the process. It does not wait for the
	// process to exit; use Done for that.
	Terminate() error

	// Done is closed once the operating system reports that the process exited.
	Done() <-chan struct{}

	// ExitErr returns the wait error of the process. Only meaningful after Done
	// has been closed.
	ExitErr() error
}

// Launcher describes a backend capable of spawning processes.
type Launcher interface {
	// Launch spawns the process described by spec and returns its handle.
	// Failures must leave no process behind.
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}
