package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/specialistvlad/burststate/internal/store"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

const maxActionBytes = 1 << 20

type moduleState struct {
	Module string          `json:"module"`
	State  json.RawMessage `json:"state"`
}

type errorBody struct {
	Category string `json:"category"`
	Code     int    `json:"code"`
	TextCode string `json:"text_code"`
	Message  string `json:"message"`
}

// routes serves /health, /state and /dispatch for st.
func (a *App) routes(st *store.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		a.stateHandler(st, w, r)
	})
	mux.HandleFunc("POST /dispatch", func(w http.ResponseWriter, r *http.Request) {
		a.dispatchHandler(st, w, r)
	})
	return mux
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// stateHandler writes every module's state, or only ?module=<id>.
func (a *App) stateHandler(st *store.Store, w http.ResponseWriter, r *http.Request) {
	exports, err := st.ExportState()
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]moduleState, 0, len(exports))
	want := r.URL.Query().Get("module")
	for _, e := range exports {
		if want != "" && e.Module != want {
			continue
		}
		out = append(out, moduleState{Module: e.Module, State: json.RawMessage(e.State)})
	}
	if want != "" && len(out) == 0 {
		a.writeError(w, &storeerrors.UnknownModuleError{ID: want})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

// dispatchHandler decodes a tagged action document and waits for it to be
// reduced.
func (a *App) dispatchHandler(st *store.Store, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes))
	if err != nil {
		a.writeError(w, badAction(err))
		return
	}
	action, err := st.DecodeAction(string(body))
	if err != nil {
		a.writeError(w, badAction(err))
		return
	}
	if err := st.DispatchAndWait(r.Context(), action); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, map[string]any{"status": "reduced"})
}

func badAction(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid action document").
		WithCode(http.StatusBadRequest).
		WithTextCode("STORE_BAD_ACTION")
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	env := storeerrors.Envelope(err)
	code := env.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	a.logger.Warn("Request failed.", "error", err, "text_code", env.TextCode)
	a.writeJSON(w, code, map[string]any{"error": errorBody{
		Category: fmt.Sprint(env.Category),
		Code:     code,
		TextCode: env.TextCode,
		Message:  err.Error(),
	}})
}

func (a *App) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("Failed to write response.", "error", err)
	}
}
