package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/events"
	"github.com/Paintersrp/tether/internal/metrics"
)

const (
	defaultAddr            = "127.0.0.1:7663"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	eventBuffer            = 32
	eventWriteTimeout      = 5 * time.Second
)

// EventSource hands out subscriptions to supervisor events.
type EventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func(), bool)
}

// Config controls construction of the API server.
type Config struct {
	Addr              string
	Controller        api.Controller
	Events            EventSource
	Metrics           http.Handler
	Logger            *zap.SugaredLogger
	Listener          net.Listener
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server wraps an http.Server exposing supervisor controls.
type Server struct {
	ctrl            api.Controller
	events          EventSource
	log             *zap.SugaredLogger
	srv             *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// NewServer constructs a Server with sane defaults.
func NewServer(cfg Config) (*Server, error) {
	if isNil(cfg.Controller) {
		return nil, fmt.Errorf("controller is required (got %T)", cfg.Controller)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metricsHandler := cfg.Metrics
	if metricsHandler == nil {
		metricsHandler = metrics.Handler()
	}

	router := httprouter.New()
	srv := &http.Server{
		Addr:              normalizeAddr(cfg.Addr),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	if srv.ReadHeaderTimeout == 0 {
		srv.ReadHeaderTimeout = defaultReadHeader
	}
	server := &Server{
		ctrl:            cfg.Controller,
		events:          cfg.Events,
		log:             log.Named("http"),
		srv:             srv,
		listener:        cfg.Listener,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if server.shutdownTimeout == 0 {
		server.shutdownTimeout = defaultShutdownTimeout
	}
	server.registerRoutes(router, metricsHandler)
	return server, nil
}

func isNil(ctrl api.Controller) bool {
	if ctrl == nil {
		return true
	}
	v := reflect.ValueOf(ctrl)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Run starts serving until the provided context is cancelled.
func (s *Server) Run(ctx stdcontext.Context) error {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), s.shutdownTimeout)
			defer cancel()
			_ = s.srv.Shutdown(shutdownCtx)
		case <-stop:
		}
	}()

	go func() {
		var err error
		if s.listener != nil {
			err = s.srv.Serve(s.listener)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	err := <-errCh
	close(stop)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) registerRoutes(router *httprouter.Router, metricsHandler http.Handler) {
	router.POST("/api/v1/start", s.handleStart)
	router.POST("/api/v1/stop", s.handleStop)
	router.GET("/api/v1/status", s.handleStatus)
	router.GET("/api/v1/events", s.handleEvents)
	router.Handler(http.MethodGet, "/metrics", metricsHandler)

	router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowed)
	router.NotFound = http.HandlerFunc(s.notFound)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.handleOperation(w, r, s.ctrl.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.handleOperation(w, r, s.ctrl.Stop)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request, op func(stdcontext.Context) (*api.OperationResult, error)) {
	result, err := op(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.events == nil {
		s.writeJSON(w, http.StatusNotFound, errorBody{Code: api.CodeNotFound, Message: "event stream disabled"})
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debugf("error accepting websocket conn: %s", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	sub, release, ok := s.events.Subscribe(eventBuffer)
	defer release()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "event stream closed")
		return
	}

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event stream closed")
				return
			}
			writeCtx, cancel := stdcontext.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				s.log.Debugf("error writing event: %s", err)
				return
			}
		}
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Code:    api.CodeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", r.Method),
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorBody{
		Code:    api.CodeNotFound,
		Message: fmt.Sprintf("no route for %s", r.URL.Path),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.log.Warnw("request failed", "code", code, "error", err)
	}
	s.writeJSON(w, status, errorBody{
		Code:    code,
		Message: err.Error(),
		Details: map[string]any{"timestamp": time.Now().UTC()},
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, stdcontext.Canceled):
		return 499, api.CodeCanceled
	case errors.Is(err, api.ErrSpawnFailure):
		return http.StatusInternalServerError, api.CodeSpawnFailure
	case errors.Is(err, api.ErrTerminationFailure):
		return http.StatusInternalServerError, api.CodeTerminationFailure
	default:
		return http.StatusInternalServerError, api.CodeInternal
	}
}

func normalizeAddr(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return defaultAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// If parsing failed, trust caller.
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
