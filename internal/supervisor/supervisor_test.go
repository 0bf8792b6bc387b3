package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/tether/internal/runtime"
)

var testSpec = runtime.LaunchSpec{Name: "server", Command: "python", Args: []string{"app.py"}, Workdir: "/srv"}

func TestStartIsIdempotent(t *testing.T) {
	launcher := &fakeLauncher{}
	sup := New(launcher, testSpec)

	first, err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, first.Outcome)
	assert.Equal(t, "Server started successfully (pid 1001)", first.Message())

	second, err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyRunning, second.Outcome)
	assert.Equal(t, first.PID, second.PID)
	assert.Equal(t, 1, launcher.launchCount())
}

func TestStartIgnoresSpontaneousExit(t *testing.T) {
	launcher := &fakeLauncher{}
	sup := New(launcher, testSpec)

	_, err := sup.Start(context.Background())
	require.NoError(t, err)
	launcher.lastHandle().exit()

	res, err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyRunning, res.Outcome)
	assert.Equal(t, 1, launcher.launchCount())

	st := sup.Status()
	assert.True(t, st.Running)
	assert.True(t, st.Exited)
}

func TestStopWithoutProcessIsNotAnError(t *testing.T) {
	sup := New(&fakeLauncher{}, testSpec)

	res, err := sup.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotRunning, res.Outcome)
	assert.Equal(t, "Server not running", res.Message())
}

func TestConcurrentStartsSpawnOnce(t *testing.T) {
	const callers = 32
	launcher := &fakeLauncher{delay: 5 * time.Millisecond}
	sup := New(launcher, testSpec)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[Outcome]int)
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := sup.Start(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			results[res.Outcome]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, launcher.launchCount())
	assert.Equal(t, 1, results[OutcomeStarted])
	assert.Equal(t, callers-1, results[OutcomeAlreadyRunning])
}

func TestSpawnFailureLeavesSlotEmpty(t *testing.T) {
	launcher := &fakeLauncher{errs: []error{errNotFound}}
	sup := New(launcher, testSpec)

	_, err := sup.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpawnFailure))
	assert.False(t, errors.Is(err, ErrTerminationFailure))
	assert.ErrorIs(t, err, errNotFound)
	assert.Contains(t, err.Error(), "executable file not found")

	var supErr *Error
	require.ErrorAs(t, err, &supErr)
	assert.Equal(t, "python app.py", supErr.Command)
	assert.False(t, sup.Status().Running)

	res, err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, res.Outcome)
	assert.Equal(t, 2, launcher.launchCount())
}

func TestTerminationFailureStillClearsSlot(t *testing.T) {
	launcher := &fakeLauncher{terminateErr: os.ErrProcessDone}
	sup := New(launcher, testSpec)

	started, err := sup.Start(context.Background())
	require.NoError(t, err)

	_, err = sup.Stop(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTerminationFailure))
	assert.ErrorIs(t, err, os.ErrProcessDone)
	assert.Contains(t, err.Error(), "Failed to stop server")
	assert.False(t, sup.Status().Running)

	res, err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, res.Outcome)
	assert.NotEqual(t, started.PID, res.PID)
	assert.Equal(t, 2, launcher.launchCount())
}

func TestStopTerminatesAndClears(t *testing.T) {
	launcher := &fakeLauncher{}
	sup := New(launcher, testSpec)

	_, err := sup.Start(context.Background())
	require.NoError(t, err)

	res, err := sup.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome)
	assert.Equal(t, "Server stopped successfully", res.Message())
	assert.False(t, res.ExitConfirmed)
	assert.EqualValues(t, 1, launcher.lastHandle().terminated.Load())

	res, err = sup.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotRunning, res.Outcome)
}

func TestStopWaitConfirmsExit(t *testing.T) {
	launcher := &fakeLauncher{exitOnKill: true}
	sup := New(launcher, testSpec, WithStopWait(time.Second))

	_, err := sup.Start(context.Background())
	require.NoError(t, err)

	res, err := sup.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, res.ExitConfirmed)
}

func TestStopWaitTimesOutWithoutError(t *testing.T) {
	launcher := &fakeLauncher{}
	sup := New(launcher, testSpec, WithStopWait(20*time.Millisecond))

	_, err := sup.Start(context.Background())
	require.NoError(t, err)

	res, err := sup.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome)
	assert.False(t, res.ExitConfirmed)
}

func TestStartWithoutLauncherFailsCleanly(t *testing.T) {
	sup := New(nil, testSpec)

	_, err := sup.Start(context.Background())
	require.ErrorIs(t, err, ErrSpawnFailure)
	assert.False(t, sup.Status().Running)
}

func TestStatusReportsSlot(t *testing.T) {
	sup := New(&fakeLauncher{}, testSpec)

	st := sup.Status()
	assert.False(t, st.Running)
	assert.Equal(t, "python app.py", st.Command)
	assert.Equal(t, "/srv", st.Workdir)

	res, err := sup.Start(context.Background())
	require.NoError(t, err)

	st = sup.Status()
	assert.True(t, st.Running)
	assert.Equal(t, res.PID, st.PID)
	assert.False(t, st.StartedAt.IsZero())
	assert.False(t, st.Exited)
}

func TestSpecIsCopied(t *testing.T) {
	spec := testSpec.Clone()
	sup := New(&fakeLauncher{}, spec)
	spec.Args[0] = "mutated.py"

	got := sup.Spec()
	assert.Equal(t, "app.py", got.Args[0])
	got.Args[0] = "again.py"
	assert.Equal(t, "app.py", sup.Spec().Args[0])
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "started", OutcomeStarted.String())
	assert.Equal(t, "already_running", OutcomeAlreadyRunning.String())
	assert.Equal(t, "stopped", OutcomeStopped.String())
	assert.Equal(t, "not_running", OutcomeNotRunning.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
