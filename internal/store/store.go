// Package store assembles the registry catalog, state entries, dispatch
// pipeline, logic supervisor, persistence bridge and inspection tap into a
// single handle owned by the caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/dispatch"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/persist"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/statestore"
	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/specialistvlad/burststate/internal/stream"
	"github.com/specialistvlad/burststate/internal/supervisor"
)

// Options configures a Store.
type Options struct {
	Registry   *registry.Registry
	Workers    int
	Middleware []dispatch.Middleware
	// Backend is optional. Without one, Save and Restore fail with a
	// StorageError and Exists reports false.
	Backend  persist.Backend
	Reporter storeerrors.Reporter
	Sinks    []inspect.Sink
	// RestoreOnStart restores from Backend before any Logic handler runs.
	RestoreOnStart bool
	RestartLimit   int
	// MaskedFields are replaced with a placeholder when Logic dispatches
	// are traced.
	MaskedFields []string
}

// Store is the running state container.
type Store struct {
	catalog    *registry.Catalog
	states     *statestore.Store
	pipeline   *dispatch.Pipeline
	supervisor *supervisor.Supervisor
	tap        *inspect.Tap
	bridge     *persist.Bridge
	reporter   storeerrors.Reporter
	logger     *slog.Logger

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

var anyType = reflect.TypeFor[any]()

// New builds the store from the registry and starts its workers, the
// inspection tap and every module's Logic handler. Logic handlers run until
// ctx ends or Shutdown is called.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Registry == nil {
		return nil, errors.New("store: registry is required")
	}
	logger := ctxlog.FromContext(ctx)
	reporter := opts.Reporter
	if reporter == nil {
		reporter = storeerrors.LogReporter{Logger: logger}
	}

	catalog, err := opts.Registry.Build(ctx)
	if err != nil {
		return nil, err
	}

	seeds := make([]statestore.Seed, 0, len(catalog.Modules()))
	for _, def := range catalog.Modules() {
		seeds = append(seeds, statestore.Seed{ID: def.ID, Value: def.Initial})
	}
	states, err := statestore.New(seeds...)
	if err != nil {
		return nil, err
	}

	s := &Store{
		catalog:  catalog,
		states:   states,
		tap:      inspect.NewTap(catalog.Codec, reporter, opts.Sinks...),
		reporter: reporter,
		logger:   logger,
	}
	var supOpts []supervisor.Option
	if opts.RestartLimit > 0 {
		supOpts = append(supOpts, supervisor.WithRestartLimit(opts.RestartLimit))
	}
	s.supervisor = supervisor.New(reporter, logger, supOpts...)

	s.pipeline, err = dispatch.New(ctx, dispatch.Options{
		Catalog:    catalog,
		States:     states,
		Workers:    opts.Workers,
		Middleware: opts.Middleware,
		Logic:      s.supervisor,
		Tap:        s.tap,
		Reporter:   reporter,
	})
	if err != nil {
		states.Close()
		return nil, err
	}
	s.tap.Start(ctx)

	s.bridge = persist.NewBridge(persist.Options{
		Catalog:  catalog,
		States:   states,
		Backend:  opts.Backend,
		Reporter: reporter,
		Pauser:   s.pipeline,
	})
	if opts.RestoreOnStart && opts.Backend != nil {
		outcome, err := s.bridge.Restore(ctx)
		if err != nil {
			// State stays at initial values; the failure was already reported.
			logger.Warn("Restore on start failed, continuing with initial state.", "error", err)
		} else {
			persist.LogOutcome(logger, outcome)
		}
	}

	acc := module.TraceAccessor(s.Accessor(), logger, opts.MaskedFields...)
	for _, def := range catalog.Modules() {
		if def.Logic == nil {
			continue
		}
		if err := s.supervisor.Spawn(ctx, def.ID, def.Logic, acc); err != nil {
			_ = s.Shutdown(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("failed to start logic for module '%s': %w", def.ID, err)
		}
	}

	logger.Debug("Store started.", "modules", len(catalog.Modules()))
	return s, nil
}

// Dispatch queues action on its module's lane. The returned Completion
// settles after the reducer has run.
func (s *Store) Dispatch(ctx context.Context, action any) (module.Completion, error) {
	if s.closed.Load() {
		return nil, storeerrors.ErrStoreShutdown
	}
	t, err := s.pipeline.Dispatch(ctx, action)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DispatchAndWait dispatches action and waits for it to settle.
func (s *Store) DispatchAndWait(ctx context.Context, action any) error {
	c, err := s.Dispatch(ctx, action)
	if err != nil {
		return err
	}
	return c.Wait(ctx)
}

// State returns the current value of module id. It keeps working after
// Shutdown so a final snapshot can still be taken.
func (s *Store) State(id string) (any, error) {
	return s.states.Get(id)
}

// Observe subscribes to module id.
func (s *Store) Observe(id string) (*stream.Subscription, error) {
	return s.states.Observe(id)
}

// Lookup finds the module whose state type is stateType.
func (s *Store) Lookup(stateType reflect.Type) (string, bool) {
	return s.catalog.LookupState(stateType)
}

// Modules returns the registered module ids in registration order.
func (s *Store) Modules() []string {
	defs := s.catalog.Modules()
	ids := make([]string, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}
	return ids
}

// Accessor returns the restricted view handed to Logic handlers.
func (s *Store) Accessor() module.Accessor {
	return accessor{s: s}
}

// DecodeAction decodes a tagged action document, as produced by
// EncodeAction, into its registered Go type.
func (s *Store) DecodeAction(text string) (any, error) {
	return s.catalog.Codec.Decode(text, anyType)
}

// EncodeAction serializes action with its type tag.
func (s *Store) EncodeAction(action any) (string, error) {
	return s.catalog.Codec.EncodeAs(action, anyType)
}

// ExportState serializes every module's state in registration order, as
// one point in time.
func (s *Store) ExportState() ([]inspect.StateExport, error) {
	defs := s.catalog.Modules()
	out := make([]inspect.StateExport, 0, len(defs))
	var errs []error
	values := s.states.Snapshot()
	for _, def := range defs {
		v, ok := values[def.ID]
		if !ok {
			return nil, &storeerrors.UnknownModuleError{ID: def.ID}
		}
		text, err := s.catalog.Codec.EncodeAs(v, def.StateType)
		if err != nil {
			errs = append(errs, fmt.Errorf("module '%s': %w", def.ID, err))
			continue
		}
		out = append(out, inspect.StateExport{Module: def.ID, State: text})
	}
	return out, errors.Join(errs...)
}

// AddSink attaches an inspection sink to the running store.
func (s *Store) AddSink(sink inspect.Sink) {
	s.tap.AddSink(sink)
}

// Snapshot captures every module's serialized state.
func (s *Store) Snapshot(ctx context.Context) (*persist.Snapshot, error) {
	return s.bridge.Capture(ctx)
}

// Save writes a snapshot to the backend.
func (s *Store) Save(ctx context.Context) error {
	return s.bridge.Save(ctx)
}

// Exists reports whether the backend holds a snapshot.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.bridge.Exists(ctx)
}

// Restore replaces every module's state from the backend.
func (s *Store) Restore(ctx context.Context) (persist.Outcome, error) {
	if s.closed.Load() {
		return persist.Outcome{}, storeerrors.ErrStoreShutdown
	}
	return s.bridge.Restore(ctx)
}

// RestoreText replaces every module's state from a snapshot document.
func (s *Store) RestoreText(ctx context.Context, text string) (persist.Outcome, error) {
	if s.closed.Load() {
		return persist.Outcome{}, storeerrors.ErrStoreShutdown
	}
	return s.bridge.RestoreText(ctx, text)
}

// LogicStatus reports the state of module id's Logic task.
func (s *Store) LogicStatus(id string) supervisor.Status {
	return s.supervisor.Status(id)
}

// LogicErr returns the error that ended module id's Logic task, if any.
func (s *Store) LogicErr(id string) error {
	return s.supervisor.Err(id)
}

// LogicDone is closed when module id's Logic task has ended.
func (s *Store) LogicDone(id string) <-chan struct{} {
	return s.supervisor.Done(id)
}

// Shutdown cancels Logic tasks, fails queued actions with
// ErrStoreShutdown, drains the inspection tap and closes every observer
// stream. It is safe to call more than once.
func (s *Store) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		s.logger.Debug("Store shutting down.")
		s.shutdownErr = s.supervisor.Shutdown(ctx)
		s.pipeline.Close()
		s.tap.Close()
		s.states.Close()
		s.logger.Debug("Store shut down.")
	})
	return s.shutdownErr
}

// accessor hides everything but module.Accessor from Logic handlers.
type accessor struct {
	s *Store
}

func (a accessor) Dispatch(ctx context.Context, action any) (module.Completion, error) {
	return a.s.Dispatch(ctx, action)
}

func (a accessor) State(id string) (any, error) { return a.s.State(id) }

func (a accessor) Observe(id string) (*stream.Subscription, error) { return a.s.Observe(id) }

func (a accessor) Lookup(t reflect.Type) (string, bool) { return a.s.Lookup(t) }

var _ module.Accessor = (*Store)(nil)
