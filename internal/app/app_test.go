package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/persist"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/store"
	"github.com/specialistvlad/burststate/modules/counter"
	"github.com/specialistvlad/burststate/modules/flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	increment = `{"@type":"counter.Increment","value":{}}`
	toggle    = `{"@type":"flag.Toggle","value":{}}`
)

func newTestApp(t *testing.T, mutate func(*config.Model)) (*App, *safeBuffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	if mutate != nil {
		mutate(cfg)
	}
	logs := &safeBuffer{}
	a, err := NewApp(logs, cfg, &counter.Module{}, &flag.Module{})
	require.NoError(t, err)
	return a, logs
}

func parseSnapshot(t *testing.T, out string) *persist.Snapshot {
	t.Helper()
	snap, err := persist.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	return snap
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Workers = 0

	_, err := NewApp(io.Discard, cfg)

	assert.ErrorContains(t, err, "workers must be at least 1")
}

func TestNewApp_DefaultModules(t *testing.T) {
	a, err := NewApp(io.Discard, config.Default())
	require.NoError(t, err)

	var ids []string
	for _, def := range a.Registry().Definitions() {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"counter", "flag", "notes", "httpfetch", "envvars"}, ids)
}

func TestRun_DispatchesActionsAndPrintsSnapshot(t *testing.T) {
	// --- Arrange ---
	a, logs := newTestApp(t, nil)
	out := &bytes.Buffer{}

	// --- Act ---
	err := a.Run(context.Background(), RunOptions{
		Actions: []string{increment, increment, toggle, increment},
		Output:  out,
	})

	// --- Assert ---
	require.NoError(t, err)
	snap := parseSnapshot(t, out.String())
	c, _ := snap.Get("counter")
	f, _ := snap.Get("flag")
	assert.Equal(t, "3", c)
	assert.Equal(t, "true", f)
	assert.Contains(t, logs.String(), "Actions dispatched.")
}

func TestRun_SavesAndRestoresThroughFileBackend(t *testing.T) {
	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "state.json")
	withFile := func(m *config.Model) {
		m.Persistence = config.Persistence{Backend: config.BackendFile, Path: path, RestoreOnStart: true, SaveOnShutdown: true}
	}
	first, _ := newTestApp(t, withFile)
	require.NoError(t, first.Run(context.Background(), RunOptions{Actions: []string{increment, increment, toggle, increment}}))

	// --- Act ---
	second, _ := newTestApp(t, withFile)
	out := &bytes.Buffer{}
	err := second.Run(context.Background(), RunOptions{Actions: []string{increment}, Output: out})

	// --- Assert ---
	require.NoError(t, err)
	snap := parseSnapshot(t, out.String())
	c, _ := snap.Get("counter")
	f, _ := snap.Get("flag")
	assert.Equal(t, "4", c)
	assert.Equal(t, "true", f)
}

func TestRun_BadActionFails(t *testing.T) {
	a, _ := newTestApp(t, nil)

	err := a.Run(context.Background(), RunOptions{Actions: []string{`{"@type":"nope","value":{}}`}})

	assert.ErrorContains(t, err, "action 1")
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	// --- Arrange ---
	a, _ := newTestApp(t, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, RunOptions{Actions: []string{increment}, Serve: true, Listener: listener})
	}()
	base := "http://" + listener.Addr().String()

	// --- Act ---
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(base + "/health")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	cancel()

	// --- Assert ---
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func newRoutes(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	a, _ := newTestApp(t, nil)
	st, err := store.New(context.Background(), store.Options{Registry: registry.New().Use(&counter.Module{}, &flag.Module{})})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Shutdown(context.Background()) })
	return a.routes(st), st
}

func TestRoutes_DispatchAndState(t *testing.T) {
	// --- Arrange ---
	h, _ := newRoutes(t)

	// --- Act ---
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", strings.NewReader(increment)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	// --- Assert ---
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"modules":[{"module":"counter","state":1},{"module":"flag","state":false}]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state?module=flag", nil))
	assert.JSONEq(t, `{"modules":[{"module":"flag","state":false}]}`, rec.Body.String())
}

func TestRoutes_Errors(t *testing.T) {
	h, _ := newRoutes(t)
	testCases := []struct {
		name     string
		req      *http.Request
		code     int
		textCode string
	}{
		{
			name:     "unknown module",
			req:      httptest.NewRequest(http.MethodGet, "/state?module=ghost", nil),
			code:     http.StatusNotFound,
			textCode: "STORE_UNKNOWN_MODULE",
		},
		{
			name:     "malformed action",
			req:      httptest.NewRequest(http.MethodPost, "/dispatch", strings.NewReader(`{`)),
			code:     http.StatusBadRequest,
			textCode: "STORE_BAD_ACTION",
		},
		{
			name:     "unroutable action",
			req:      httptest.NewRequest(http.MethodPost, "/dispatch", strings.NewReader(`42`)),
			code:     http.StatusBadRequest,
			textCode: "STORE_UNKNOWN_ACTION",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.req)

			assert.Equal(t, tc.code, rec.Code)
			var body struct {
				Error errorBody `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.textCode, body.Error.TextCode)
		})
	}
}
