package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/events"
)

const defaultClientTimeout = 30 * time.Second

// Client drives a remote control API. It implements api.Controller.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient constructs a client for addr, which may be host:port or a full URL.
func NewClient(addr string, opts ...ClientOption) (*Client, error) {
	raw := strings.TrimSpace(addr)
	if raw == "" {
		raw = defaultAddr
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + normalizeAddr(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api address %q: %w", addr, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api address %q: unsupported scheme %q", addr, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		base: u,
		http: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start asks the remote supervisor to start the server.
func (c *Client) Start(ctx stdcontext.Context) (*api.OperationResult, error) {
	return c.operation(ctx, "/api/v1/start")
}

// Stop asks the remote supervisor to stop the server.
func (c *Client) Stop(ctx stdcontext.Context) (*api.OperationResult, error) {
	return c.operation(ctx, "/api/v1/stop")
}

func (c *Client) operation(ctx stdcontext.Context, path string) (*api.OperationResult, error) {
	var body struct {
		Result *api.OperationResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, path, &body); err != nil {
		return nil, err
	}
	if body.Result == nil {
		return nil, fmt.Errorf("%w: empty response from %s", api.ErrUnavailable, path)
	}
	return body.Result, nil
}

// Status fetches the remote status report.
func (c *Client) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	var report api.StatusReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Events streams supervisor events until ctx is cancelled or the server goes
// away. The returned channel is closed on exit.
func (c *Client) Events(ctx stdcontext.Context) (<-chan events.Event, error) {
	u := c.endpoint("/api/v1/events")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: c.streamingClient()})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrUnavailable, err)
	}

	out := make(chan events.Event, eventBuffer)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var evt events.Event
			if err := wsjson.Read(ctx, conn, &evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// streamingClient drops the request timeout, which would otherwise cut long
// lived websocket reads.
func (c *Client) streamingClient() *http.Client {
	hc := *c.http
	hc.Timeout = 0
	return &hc
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = c.base.Path + path
	return &u
}

func (c *Client) do(ctx stdcontext.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path).String(), nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, stdcontext.Canceled) || errors.Is(err, stdcontext.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", api.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var body errorBody
		if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
			return &api.RemoteError{
				Code:    api.CodeInternal,
				Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
				Status:  resp.StatusCode,
			}
		}
		return &api.RemoteError{Code: body.Code, Message: body.Message, Status: resp.StatusCode}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ api.Controller = (*Client)(nil)
