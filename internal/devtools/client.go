// Package devtools streams store activity to a remote inspector over
// socket.io. Every reduced action is emitted as an "action" event, and a
// "request_state" event from the inspector is answered with a "state" event
// carrying every module's serialized state.
package devtools

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	EventAction       = "action"
	EventState        = "state"
	EventRequestState = "request_state"

	defaultConnectTimeout = 15 * time.Second
)

// Options configures the inspector connection.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// StateSource exports the store's current state.
type StateSource interface {
	ExportState() ([]inspect.StateExport, error)
}

// Client is an inspect.Sink backed by a socket.io connection.
type Client struct {
	io     *socket.Socket
	emit   func(event string, payload any)
	source StateSource
	logger *slog.Logger
}

// Connect dials the inspector and waits for the connection to be
// established, ctx to end or the connect timeout to pass.
func Connect(ctx context.Context, opts Options, source StateSource) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("component", "devtools", "url", opts.URL)
	logger.Info("Connecting to inspector...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("inspector URL %q needs a scheme and host", opts.URL)
	}

	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to inspector.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	c := newClient(func(event string, payload any) { io.Emit(event, payload) }, source, logger)
	c.io = io
	io.On(types.EventName(EventRequestState), func(...any) {
		c.sendState()
	})

	io.Connect()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

func newClient(emit func(string, any), source StateSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{emit: emit, source: source, logger: logger}
}

// Emit implements inspect.Sink.
func (c *Client) Emit(_ context.Context, ev inspect.Event) {
	payload := map[string]any{
		"id":        ev.ID,
		"seq":       ev.Seq,
		"module":    ev.Module,
		"type":      ev.Type,
		"payload":   ev.Payload,
		"outcome":   string(ev.Outcome),
		"timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if ev.Error != "" {
		payload["error"] = ev.Error
	}
	c.emit(EventAction, payload)
}

func (c *Client) sendState() {
	if c.source == nil {
		return
	}
	exports, err := c.source.ExportState()
	if err != nil {
		c.logger.Warn("Could not export state for inspector.", "error", err)
		return
	}
	modules := make([]map[string]any, 0, len(exports))
	for _, e := range exports {
		modules = append(modules, map[string]any{"module": e.Module, "state": e.State})
	}
	c.emit(EventState, map[string]any{"modules": modules})
}

// Close disconnects from the inspector.
func (c *Client) Close() {
	if c.io == nil {
		return
	}
	c.logger.Info("Disconnecting from inspector.", "sid", c.io.Id())
	c.io.Disconnect()
}
