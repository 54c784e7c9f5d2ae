package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/devtools"
	"github.com/specialistvlad/burststate/internal/dispatch"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/middleware"
	"github.com/specialistvlad/burststate/internal/store"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	tracerName      = "github.com/specialistvlad/burststate"
)

// RunOptions controls a single Run.
type RunOptions struct {
	// Actions are tagged action documents dispatched in order after start.
	Actions []string
	// Serve keeps the application running until ctx ends.
	Serve bool
	// Output, when set, receives the final snapshot document.
	Output io.Writer
	// Listener replaces the healthcheck listener built from the configured
	// port.
	Listener net.Listener
}

// Run starts the store, dispatches opts.Actions, optionally serves until
// ctx ends, then shuts the store down and saves it when configured to.
func (a *App) Run(ctx context.Context, opts RunOptions) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	backend, closeBackend, err := openBackend(a.config.Persistence, a.config.Store.Name)
	if err != nil {
		return fmt.Errorf("failed to open persistence backend: %w", err)
	}
	defer func() {
		if cerr := closeBackend(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close persistence backend: %w", cerr))
		}
	}()

	st, err := store.New(ctx, store.Options{
		Registry: a.registry,
		Workers:  a.config.Store.Workers,
		Middleware: []dispatch.Middleware{
			middleware.Recover(),
			middleware.Tracing(otel.Tracer(tracerName)),
			middleware.Logging(a.logger),
		},
		Backend:        backend,
		Sinks:          []inspect.Sink{inspect.LogSink{Logger: a.logger}},
		RestoreOnStart: a.config.Persistence.RestoreOnStart,
		RestartLimit:   a.config.Store.RestartLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to build store: %w", err)
	}
	a.logger.Info("Store started.", "store", a.config.Store.Name, "modules", st.Modules())

	if a.config.Devtools.URL != "" {
		client, err := devtools.Connect(ctx, devtools.Options{
			URL:                a.config.Devtools.URL,
			Namespace:          a.config.Devtools.Namespace,
			InsecureSkipVerify: a.config.Devtools.InsecureSkipVerify,
		}, st)
		if err != nil {
			a.logger.Warn("Devtools unavailable, continuing without it.", "error", err)
		} else {
			st.AddSink(client)
			defer client.Close()
		}
	}

	runErr := a.serve(ctx, st, opts)
	return errors.Join(runErr, a.finish(ctx, st, opts))
}

// serve runs the healthcheck server and the action feed until the feed is
// done, or until ctx ends when opts.Serve is set.
func (a *App) serve(ctx context.Context, st *store.Store, opts RunOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	listener := opts.Listener
	if listener == nil && a.config.Healthcheck.Port > 0 {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", a.config.Healthcheck.Port))
		if err != nil {
			return fmt.Errorf("failed to start healthcheck server: %w", err)
		}
	}
	if listener != nil {
		srv := &http.Server{Handler: a.routes(st), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.logger.Info("🩺 Health check server starting", "address", listener.Addr().String())
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("healthcheck server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-serveCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			a.logger.Info("🩺 Shutting down health check server...")
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stopServing()
		for i, text := range opts.Actions {
			action, err := st.DecodeAction(text)
			if err != nil {
				return fmt.Errorf("action %d: %w", i+1, err)
			}
			if err := st.DispatchAndWait(gctx, action); err != nil {
				return fmt.Errorf("action %d: %w", i+1, err)
			}
		}
		if len(opts.Actions) > 0 {
			a.logger.Info("🏁 Actions dispatched.", "count", len(opts.Actions))
		}
		if opts.Serve {
			<-serveCtx.Done()
		}
		return nil
	})

	return g.Wait()
}

// finish shuts the store down, saves it when configured to and writes the
// final snapshot.
func (a *App) finish(ctx context.Context, st *store.Store, opts RunOptions) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := st.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store shutdown: %w", err))
	}
	if a.config.Persistence.SaveOnShutdown {
		if err := st.Save(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save on shutdown: %w", err))
		} else {
			a.logger.Info("Snapshot saved.", "backend", a.config.Persistence.Backend)
		}
	}
	if opts.Output != nil {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintln(opts.Output, snap.String())
		}
	}
	a.logger.Debug("App.Run method finished.")
	return errors.Join(errs...)
}
