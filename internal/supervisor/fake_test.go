package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/tether/internal/runtime"
)

type fakeHandle struct {
	pid          int
	startedAt    time.Time
	done         chan struct{}
	doneOnce     sync.Once
	terminateErr error
	terminated   atomic.Int32
	exitOnKill   bool
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) StartedAt() time.Time { return h.startedAt }

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) ExitErr() error { return nil }

func (h *fakeHandle) exit() { h.doneOnce.Do(func() { close(h.done) }) }

func (h *fakeHandle) Terminate() error {
	h.terminated.Add(1)
	if h.terminateErr != nil {
		return h.terminateErr
	}
	if h.exitOnKill {
		h.exit()
	}
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	nextPID  int
	delay    time.Duration
	errs     []error
	handles  []*fakeHandle

	terminateErr error
	exitOnKill   bool
}

func (l *fakeLauncher) Launch(ctx context.Context, spec runtime.LaunchSpec) (runtime.Handle, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	l.nextPID++
	h := &fakeHandle{
		pid:          1000 + l.nextPID,
		startedAt:    time.Now(),
		done:         make(chan struct{}),
		terminateErr: l.terminateErr,
		exitOnKill:   l.exitOnKill,
	}
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeLauncher) lastHandle() *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.handles) == 0 {
		return nil
	}
	return l.handles[len(l.handles)-1]
}

var errNotFound = errors.New("exec: \"missing\": executable file not found in $PATH")
