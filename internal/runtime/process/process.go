package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/Paintersrp/tether/internal/runtime"
)

func init() {
	runtime.Register("process", func() runtime.Launcher { return New() })
}

type launcher struct{}

// New constructs a launcher that executes the configured command as a local
// process.
func New() runtime.Launcher {
	return &launcher{}
}

func (l *launcher) Launch(ctx context.Context, spec runtime.LaunchSpec) (runtime.Handle, error) {
	if spec.Command == "" {
		return nil, errors.New("process launcher requires a command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The child must outlive the request that started it, so it is not bound
	// to ctx.
	cmd := exec.Command(spec.Command, spec.Args...)
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.CommandLine(), err)
	}

	h := &processHandle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		waitDone:  make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}

type processHandle struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	waitDone chan struct{}
	waitErr  error
}

// wait reaps the child so an exited server never lingers as a zombie. The
// supervisor slot is unaffected.
func (p *processHandle) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.waitDone)
}

func (p *processHandle) PID() int {
	return p.pid
}

func (p *processHandle) StartedAt() time.Time {
	return p.startedAt
}

func (p *processHandle) Done() <-chan struct{} {
	return p.waitDone
}

func (p *processHandle) ExitErr() error {
	select {
	case <-p.waitDone:
		return p.waitErr
	default:
		return nil
	}
}

func (p *processHandle) exited() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}
