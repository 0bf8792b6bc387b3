package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/cliutil"
	"github.com/Paintersrp/tether/internal/events"
	"github.com/Paintersrp/tether/internal/metrics"
	"github.com/Paintersrp/tether/internal/probe"
	"github.com/Paintersrp/tether/internal/supervisor"
)

// ControlAPI exposes supervisor operations to the HTTP control plane and the
// terminal front-end. It owns the side effects the supervisor itself does not
// perform: logging, metrics and event publication.
type ControlAPI struct {
	sup     *supervisor.Supervisor
	name    string
	command string
	log     *zap.SugaredLogger
	events  *events.Stream

	prober       probe.Prober
	probeTimeout time.Duration
}

// ControlOption configures a ControlAPI.
type ControlOption func(*ControlAPI)

// WithControlName labels status reports.
func WithControlName(name string) ControlOption {
	return func(c *ControlAPI) {
		c.name = name
	}
}

// WithControlLogger sets the logger used to record outcomes.
func WithControlLogger(log *zap.SugaredLogger) ControlOption {
	return func(c *ControlAPI) {
		if log != nil {
			c.log = log
		}
	}
}

// WithControlEvents publishes every outcome to stream.
func WithControlEvents(stream *events.Stream) ControlOption {
	return func(c *ControlAPI) {
		c.events = stream
	}
}

// WithControlProbe attaches a reachability check to status reports.
func WithControlProbe(p probe.Prober, timeout time.Duration) ControlOption {
	return func(c *ControlAPI) {
		c.prober = p
		c.probeTimeout = timeout
	}
}

// NewControlAPI constructs a ControlAPI wrapper around the supervisor.
func NewControlAPI(sup *supervisor.Supervisor, opts ...ControlOption) *ControlAPI {
	if sup == nil {
		return nil
	}
	spec := sup.Spec()
	spec.Args = cliutil.RedactArgs(spec.Args)
	c := &ControlAPI{
		sup:     sup,
		name:    spec.Name,
		command: spec.CommandLine(),
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start asks the supervisor to spawn the server.
func (c *ControlAPI) Start(ctx stdcontext.Context) (*api.OperationResult, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	began := time.Now()
	res, err := c.sup.Start(ctx)
	if err != nil {
		metrics.ObserveOperation("start", api.CodeSpawnFailure)
		c.log.Errorw("start failed", "command", c.command, "error", err)
		c.publishFailure(events.TypeSpawnFailed, err)
		return nil, err
	}

	if res.Outcome == supervisor.OutcomeStarted {
		metrics.ObserveSpawnLatency(time.Since(began))
	}
	metrics.SetServerRunning(true)
	metrics.ObserveOperation("start", res.Outcome.String())
	c.log.Infow(res.Message(), "outcome", res.Outcome.String(), "pid", res.PID)

	evtType := events.TypeStarted
	if res.Outcome == supervisor.OutcomeAlreadyRunning {
		evtType = events.TypeAlreadyRunning
	}
	c.publish(evtType, res)
	return toOperationResult("start", res), nil
}

// Stop asks the supervisor to terminate the server.
func (c *ControlAPI) Stop(ctx stdcontext.Context) (*api.OperationResult, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	res, err := c.sup.Stop(ctx)
	// The slot is empty after Stop whatever the outcome.
	metrics.SetServerRunning(false)
	if err != nil {
		metrics.ObserveOperation("stop", api.CodeTerminationFailure)
		c.log.Warnw("stop failed", "pid", res.PID, "error", err)
		c.publishFailure(events.TypeStopFailed, err)
		return nil, err
	}

	metrics.ObserveOperation("stop", res.Outcome.String())
	c.log.Infow(res.Message(), "outcome", res.Outcome.String(), "pid", res.PID, "exit_confirmed", res.ExitConfirmed)

	evtType := events.TypeStopped
	if res.Outcome == supervisor.OutcomeNotRunning {
		evtType = events.TypeNotRunning
	}
	c.publish(evtType, res)
	return toOperationResult("stop", res), nil
}

// Status returns a snapshot of the supervisor slot, including the result of
// the reachability probe when one is configured.
func (c *ControlAPI) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	st := c.sup.Status()
	report := &api.StatusReport{
		Name:        c.name,
		Running:     st.Running,
		PID:         st.PID,
		Command:     c.command,
		Workdir:     st.Workdir,
		Exited:      st.Exited,
		GeneratedAt: time.Now(),
	}
	if !st.StartedAt.IsZero() {
		startedAt := st.StartedAt
		report.StartedAt = &startedAt
	}
	if st.ExitErr != nil {
		report.ExitError = st.ExitErr.Error()
	}

	if c.prober != nil {
		if ctx == nil {
			ctx = stdcontext.Background()
		}
		result := probe.Check(ctx, c.prober, c.probeTimeout)
		metrics.SetServerReachable(result.Reachable)
		report.Probe = &api.ProbeReport{
			Reachable: result.Reachable,
			LatencyMS: result.Latency.Milliseconds(),
			CheckedAt: result.CheckedAt,
		}
		if result.Err != nil {
			report.Probe.Error = result.Err.Error()
		}
	}
	return report, nil
}

func (c *ControlAPI) publish(t events.Type, res supervisor.Result) {
	if c.events == nil {
		return
	}
	evt := events.New(t, res.Message())
	evt.PID = res.PID
	c.events.Publish(evt)
}

func (c *ControlAPI) publishFailure(t events.Type, err error) {
	if c.events == nil {
		return
	}
	evt := events.New(t, err.Error())
	var supErr *supervisor.Error
	if errors.As(err, &supErr) {
		evt.PID = supErr.PID
		if supErr.Err != nil {
			evt.Error = supErr.Err.Error()
		}
	}
	c.events.Publish(evt)
}

func toOperationResult(operation string, res supervisor.Result) *api.OperationResult {
	return &api.OperationResult{
		Operation:     operation,
		Outcome:       res.Outcome.String(),
		Message:       res.Message(),
		PID:           res.PID,
		ExitConfirmed: res.ExitConfirmed,
		CompletedAt:   time.Now(),
	}
}

func ctxErr(ctx stdcontext.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request abandoned: %w", ctx.Err())
	default:
		return nil
	}
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ControlAPI)(nil)
