package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Backend names accepted in Persistence.Backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Model is the unified representation of the application configuration.
type Model struct {
	Store       Store       `envPrefix:"STORE_"`
	Logging     Logging     `envPrefix:"LOG_"`
	Persistence Persistence `envPrefix:"PERSISTENCE_"`
	Devtools    Devtools    `envPrefix:"DEVTOOLS_"`
	Healthcheck Healthcheck `envPrefix:"HEALTHCHECK_"`

	// Modules holds per-module settings blocks keyed by module id. Each
	// value is an object; see DecodeModule.
	Modules map[string]cty.Value
}

// Store configures the state container itself.
type Store struct {
	Name    string `env:"NAME"`
	Workers int    `env:"WORKERS"`
	// RestartLimit bounds Logic handler restarts; 0 disables restarts.
	RestartLimit int `env:"RESTART_LIMIT"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `env:"LEVEL"`
	Format string `env:"FORMAT"`
}

// Persistence selects the snapshot backend.
type Persistence struct {
	Backend        string `env:"BACKEND"`
	Path           string `env:"PATH"`
	RestoreOnStart bool   `env:"RESTORE_ON_START"`
	SaveOnShutdown bool   `env:"SAVE_ON_SHUTDOWN"`
}

// Devtools configures the optional socket.io inspector connection. An
// empty URL disables it.
type Devtools struct {
	URL                string `env:"URL"`
	Namespace          string `env:"NAMESPACE"`
	InsecureSkipVerify bool   `env:"INSECURE_SKIP_VERIFY"`
}

// Healthcheck configures the HTTP server exposing /health and /state. A
// port of 0 disables it.
type Healthcheck struct {
	Port int `env:"PORT"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Model {
	return &Model{
		Store:       Store{Name: "default", Workers: 4},
		Logging:     Logging{Level: "info", Format: "text"},
		Persistence: Persistence{Backend: BackendNone},
		Devtools:    Devtools{Namespace: "/"},
		Modules:     make(map[string]cty.Value),
	}
}

// Validate checks the model for values the application cannot run with.
func (m *Model) Validate() error {
	var errs []error
	if m.Store.Name == "" {
		errs = append(errs, errors.New("store name is empty"))
	}
	if m.Store.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", m.Store.Workers))
	}
	if m.Store.RestartLimit < 0 {
		errs = append(errs, fmt.Errorf("restart limit must not be negative, got %d", m.Store.RestartLimit))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, m.Logging.Level) {
		errs = append(errs, fmt.Errorf("unknown log level '%s'", m.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, m.Logging.Format) {
		errs = append(errs, fmt.Errorf("unknown log format '%s'", m.Logging.Format))
	}
	switch m.Persistence.Backend {
	case BackendNone, BackendMemory:
	case BackendFile, BackendSQLite:
		if m.Persistence.Path == "" {
			errs = append(errs, fmt.Errorf("persistence backend '%s' needs a path", m.Persistence.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown persistence backend '%s'", m.Persistence.Backend))
	}
	if m.Healthcheck.Port < 0 || m.Healthcheck.Port > 65535 {
		errs = append(errs, fmt.Errorf("healthcheck port %d out of range", m.Healthcheck.Port))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
