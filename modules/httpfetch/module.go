// Package httpfetch fetches URLs from its Logic handler and records the
// responses in state. A Fetch action marks the URL pending; the handler
// performs the request and dispatches Fetched or FetchFailed.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

const ID = "httpfetch"

// Settings is read from the module's configuration block.
type Settings struct {
	TimeoutSeconds int `cty:"timeout_seconds"`
	MaxBodyBytes   int `cty:"max_body_bytes"`
}

// DefaultSettings is used for any setting left at zero.
var DefaultSettings = Settings{TimeoutSeconds: 10, MaxBodyBytes: 64 << 10}

// Result is the outcome of one fetch.
type Result struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// State tracks pending and finished fetches by URL.
type State struct {
	Pending []string          `json:"pending"`
	Results map[string]Result `json:"results"`
}

type Action interface{ isFetchAction() }

// Fetch requests a GET of URL.
type Fetch struct {
	URL string `json:"url"`
}

// Fetched records a response. It is dispatched by the Logic handler.
type Fetched struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// FetchFailed records a transport error.
type FetchFailed struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (Fetch) isFetchAction()       {}
func (Fetched) isFetchAction()     {}
func (FetchFailed) isFetchAction() {}

func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case Fetch:
		if a.URL == "" {
			return s, fmt.Errorf("fetch: url is empty")
		}
		if !slices.Contains(s.Pending, a.URL) {
			s.Pending = append(slices.Clone(s.Pending), a.URL)
		}
	case Fetched:
		s = s.finish(a.URL, Result{StatusCode: a.StatusCode, Body: a.Body})
	case FetchFailed:
		s = s.finish(a.URL, Result{Error: a.Error})
	}
	return s, nil
}

func (s State) finish(url string, r Result) State {
	s.Pending = slices.DeleteFunc(slices.Clone(s.Pending), func(p string) bool { return p == url })
	results := make(map[string]Result, len(s.Results)+1)
	maps.Copy(results, s.Results)
	results[url] = r
	s.Results = results
	return s
}

// Module implements the registry.Module interface for this package.
type Module struct {
	Settings Settings
	// Client overrides the client built from Settings.
	Client *http.Client
}

// Register registers the module and its fetching Logic handler.
func (m *Module) Register(r *registry.Registry) {
	settings := m.Settings
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = DefaultSettings.TimeoutSeconds
	}
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = DefaultSettings.MaxBodyBytes
	}
	client := m.Client
	if client == nil {
		client = newClient(time.Duration(settings.TimeoutSeconds) * time.Second)
	}

	r.RegisterModule(module.New(ID, State{Results: map[string]Result{}}, Reduce,
		module.WithTypes(module.Family[Action](
			codec.V[Fetch]("httpfetch.Fetch"),
			codec.V[Fetched]("httpfetch.Fetched"),
			codec.V[FetchFailed]("httpfetch.FetchFailed"),
		)),
		module.WithLogic(module.HandleActions(func(ctx context.Context, a Fetch, store module.Accessor) error {
			return fetch(ctx, client, int64(settings.MaxBodyBytes), a, store)
		})),
	))
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// fetch performs the request. Transport failures become FetchFailed
// actions; only a failed dispatch ends the handler.
func fetch(ctx context.Context, client *http.Client, limit int64, a Fetch, store module.Accessor) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", http.MethodGet, "url", a.URL)

	var result Action
	status, body, err := get(ctx, client, a.URL, limit)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("HTTP request failed", "url", a.URL, "error", err)
		result = FetchFailed{URL: a.URL, Error: err.Error()}
	} else {
		logger.Info("Received HTTP response", "url", a.URL, "status", status)
		result = Fetched{URL: a.URL, StatusCode: status, Body: body}
	}

	if _, err := store.Dispatch(ctx, result); err != nil {
		return fmt.Errorf("failed to record fetch of %s: %w", a.URL, err)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string, limit int64) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, string(bodyBytes), nil
}
