package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/events"
	"github.com/Paintersrp/tether/internal/metrics"
	"github.com/Paintersrp/tether/internal/supervisor"
)

type mockController struct {
	startFn  func(stdcontext.Context) (*api.OperationResult, error)
	stopFn   func(stdcontext.Context) (*api.OperationResult, error)
	statusFn func(stdcontext.Context) (*api.StatusReport, error)
}

func (m *mockController) Start(ctx stdcontext.Context) (*api.OperationResult, error) {
	if m.startFn != nil {
		return m.startFn(ctx)
	}
	return &api.OperationResult{Operation: "start"}, nil
}

func (m *mockController) Stop(ctx stdcontext.Context) (*api.OperationResult, error) {
	if m.stopFn != nil {
		return m.stopFn(ctx)
	}
	return &api.OperationResult{Operation: "stop"}, nil
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return &api.StatusReport{}, nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	server, err := NewServer(cfg)
	require.NoError(t, err)
	return server
}

func serve(server *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNewServerRejectsTypedNilController(t *testing.T) {
	var ctrl api.Controller = (*mockController)(nil)
	_, err := NewServer(Config{Controller: ctrl})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mockController")

	_, err = NewServer(Config{})
	require.Error(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
		"garbage":    "garbage",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, expected, normalizeAddr(input))
		})
	}
}

func TestHandleStart(t *testing.T) {
	ctrl := &mockController{
		startFn: func(stdcontext.Context) (*api.OperationResult, error) {
			return &api.OperationResult{Operation: "start", Outcome: "started", Message: "Server started successfully (pid 7)", PID: 7}, nil
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(server, http.MethodPost, "/api/v1/start")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]api.OperationResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "started", body["result"].Outcome)
	assert.Equal(t, 7, body["result"].PID)
}

func TestHandleStartSpawnFailure(t *testing.T) {
	ctrl := &mockController{
		startFn: func(stdcontext.Context) (*api.OperationResult, error) {
			return nil, &supervisor.Error{Kind: supervisor.KindSpawn, Err: errors.New("exec: not found")}
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(server, http.MethodPost, "/api/v1/start")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, api.CodeSpawnFailure, body.Code)
	assert.Equal(t, "Failed to start server: exec: not found", body.Message)
	assert.Contains(t, body.Details, "timestamp")
}

func TestHandleStopTerminationFailure(t *testing.T) {
	ctrl := &mockController{
		stopFn: func(stdcontext.Context) (*api.OperationResult, error) {
			return nil, &supervisor.Error{Kind: supervisor.KindTermination, PID: 9, Err: os.ErrProcessDone}
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(server, http.MethodPost, "/api/v1/stop")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, api.CodeTerminationFailure, decodeError(t, rec).Code)
}

func TestHandleStatus(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{Name: "teledrive", Running: true, PID: 12, GeneratedAt: time.Unix(123, 0)}, nil
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(server, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body api.StatusReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "teledrive", body.Name)
	assert.True(t, body.Running)
	assert.Equal(t, 12, body.PID)
}

func TestHandleStatusError(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, errors.New("boom")
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(server, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, api.CodeInternal, decodeError(t, rec).Code)
}

func TestClassifyCanceled(t *testing.T) {
	status, code := classifyError(fmt.Errorf("wrapped: %w", stdcontext.Canceled))
	assert.Equal(t, 499, status)
	assert.Equal(t, api.CodeCanceled, code)
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, Config{Controller: &mockController{}})

	rec := serve(server, http.MethodGet, "/api/v1/start")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)
	assert.Equal(t, api.CodeMethodNotAllowed, decodeError(t, rec).Code)
}

func TestNotFound(t *testing.T) {
	server := newTestServer(t, Config{Controller: &mockController{}})

	rec := serve(server, http.MethodGet, "/api/v1/restart")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeNotFound, decodeError(t, rec).Code)
}

func TestEventsDisabled(t *testing.T) {
	server := newTestServer(t, Config{Controller: &mockController{}})

	rec := serve(server, http.MethodGet, "/api/v1/events")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, Config{Controller: &mockController{}})

	metrics.EmitBuildInfo()
	metrics.SetServerRunning(true)

	rec := serve(server, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tether_server_running 1")
	assert.Contains(t, body, "tether_build_info{")
}

func TestRunServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := newTestServer(t, Config{Controller: &mockController{}, Listener: ln})
	assert.Equal(t, ln.Addr().String(), server.Addr())

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	client, err := NewClient(server.Addr())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := client.Status(stdcontext.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReportsListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	server := newTestServer(t, Config{Controller: &mockController{}, Listener: ln})
	err = server.Run(stdcontext.Background())
	require.Error(t, err)
}

func TestEventsStreamOverWebsocket(t *testing.T) {
	stream := events.NewStream(8)
	server := newTestServer(t, Config{Controller: &mockController{}, Events: stream})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	client, err := NewClient(ts.URL)
	require.NoError(t, err)

	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 5*time.Second)
	defer cancel()
	evts, err := client.Events(ctx)
	require.NoError(t, err)

	// The subscription is registered asynchronously after the handshake, and
	// the backlog replays anything published before it.
	stream.Publish(events.New(events.TypeStarted, "Server started successfully (pid 3)"))

	select {
	case evt, ok := <-evts:
		require.True(t, ok)
		assert.Equal(t, events.TypeStarted, evt.Type)
		assert.Equal(t, "Server started successfully (pid 3)", evt.Message)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	stream.Close()
	select {
	case _, ok := <-evts:
		assert.False(t, ok)
	case <-ctx.Done():
		t.Fatal("event channel was not closed after stream shutdown")
	}
}
