package cli

import (
	"bytes"
	stdcontext "context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/tether/internal/runtime"
)

const fakeRuntimeName = "fake"

var fakeRuntime = &fakeLauncher{}

func init() {
	runtime.Register(fakeRuntimeName, func() runtime.Launcher { return fakeRuntime })
}

type fakeHandle struct {
	pid       int
	startedAt time.Time
	done      chan struct{}
	once      sync.Once
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) StartedAt() time.Time { return h.startedAt }

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) ExitErr() error { return nil }

func (h *fakeHandle) Terminate() error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	h.once.Do(func() { close(h.done) })
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	spawnErr error
	live     []*fakeHandle
}

func (l *fakeLauncher) Launch(_ stdcontext.Context, spec runtime.LaunchSpec) (runtime.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.spawnErr != nil {
		return nil, l.spawnErr
	}
	h := &fakeHandle{pid: 4000 + l.launches, startedAt: time.Now(), done: make(chan struct{})}
	l.live = append(l.live, h)
	return h, nil
}

func (l *fakeLauncher) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = 0
	l.spawnErr = nil
	l.live = nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeLauncher) failWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spawnErr = err
}

var errFakeSpawn = errors.New("exec: \"demo-server\": executable file not found in $PATH")

const testConfig = `version: "1"
server:
  name: demo
  runtime: fake
  command: demo-server
  args: ["--port", "5000"]
  stopWait: 0s
log:
  level: error
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tether.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestContext(t *testing.T, content string) *context {
	t.Helper()
	fakeRuntime.reset()
	path := writeConfigFile(t, content)
	addr := ""
	return &context{configPath: &path, apiAddr: &addr}
}

// syncBuffer is a bytes.Buffer safe for a command goroutine writing while the
// test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
