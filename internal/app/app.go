package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *config.Model
	registry *registry.Registry
}

// NewApp validates cfg, builds an isolated logger writing to outW and
// registers modules. With no modules, the built-in set configured from cfg
// is used.
func NewApp(outW io.Writer, cfg *config.Model, modules ...registry.Module) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		var err error
		modules, err = coreModules(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure modules: %w", err)
		}
	}
	reg := registry.New().Use(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
