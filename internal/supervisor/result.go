package supervisor

import "fmt"

// Outcome identifies which successful branch an operation took.
type Outcome int

const (
	// OutcomeStarted indicates Start spawned a new process.
	OutcomeStarted Outcome = iota + 1
	// OutcomeAlreadyRunning indicates Start found a stored handle and did nothing.
	OutcomeAlreadyRunning
	// OutcomeStopped indicates Stop terminated the stored process.
	OutcomeStopped
	// OutcomeNotRunning indicates Stop found an empty slot.
	OutcomeNotRunning
)

// String returns a stable machine-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeAlreadyRunning:
		return "already_running"
	case OutcomeStopped:
		return "stopped"
	case OutcomeNotRunning:
		return "not_running"
	default:
		return "unknown"
	}
}

// Result describes a successful Start or Stop call.
type Result struct {
	Outcome Outcome
	PID     int

	// ExitConfirmed reports whether the process was observed to exit within
	// the stop wait. Always false when no stop wait is configured.
	ExitConfirmed bool
}

// Message renders the human-readable text shown to the end user.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeStarted:
		return fmt.Sprintf("Server started successfully (pid %d)", r.PID)
	case OutcomeAlreadyRunning:
		return fmt.Sprintf("Server already running (pid %d)", r.PID)
	case OutcomeStopped:
		return "Server stopped successfully"
	case OutcomeNotRunning:
		return "Server not running"
	default:
		return "Unknown result"
	}
}
