// Package supervisor runs module Logic handlers as isolated, cancellable
// tasks. A failing handler is reported and stopped without touching other
// modules or the dispatch pipeline.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/specialistvlad/burststate/internal/mailbox"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Status is the lifecycle state of a Logic task.
type Status int

const (
	// Unknown means no task was spawned for the module.
	Unknown Status = iota
	Running
	// Stopped means the handler returned without error or was cancelled.
	Stopped
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithRestartLimit lets a failed handler be re-created from its factory up
// to n times. The default is no restart.
func WithRestartLimit(n int) Option {
	return func(s *Supervisor) { s.restartLimit = n }
}

// Supervisor owns one task per module with a Logic handler.
type Supervisor struct {
	reporter     storeerrors.Reporter
	logger       *slog.Logger
	restartLimit int

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

type task struct {
	id      string
	factory module.LogicFactory
	store   module.Accessor
	inbox   *mailbox.Mailbox[any]
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	status   Status
	err      error
	restarts int
}

// New creates an empty supervisor.
func New(reporter storeerrors.Reporter, logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = storeerrors.LogReporter{Logger: logger}
	}
	s := &Supervisor{reporter: reporter, logger: logger, tasks: make(map[string]*task)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn starts the Logic task for id. The task's context derives from ctx
// and is cancelled on Shutdown or when the handler fails.
func (s *Supervisor) Spawn(ctx context.Context, id string, factory module.LogicFactory, store module.Accessor) error {
	if factory == nil {
		return fmt.Errorf("supervisor: module '%s' has no logic factory", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeerrors.ErrStoreShutdown
	}
	if _, exists := s.tasks[id]; exists {
		return &storeerrors.DuplicateModuleError{ID: id}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{
		id:      id,
		factory: factory,
		store:   store,
		inbox:   mailbox.New[any](),
		cancel:  cancel,
		done:    make(chan struct{}),
		status:  Running,
	}
	s.tasks[id] = t
	s.wg.Add(1)
	go s.run(taskCtx, t)
	s.logger.Debug("Logic task started.", "module", id)
	return nil
}

// Deliver queues action for id's handler. It never blocks; actions for
// modules without a running task are discarded.
func (s *Supervisor) Deliver(id string, action any) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	t.inbox.Put(action)
}

// Status reports the lifecycle state of id's task.
func (s *Supervisor) Status(id string) Status {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return Unknown
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the failure that ended id's task, if any.
func (s *Supervisor) Err(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done returns a channel closed when id's task has ended for good.
func (s *Supervisor) Done(id string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Shutdown cancels every task and waits for them to return or for ctx to
// end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		t.inbox.Close()
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		s.logger.Debug("All logic tasks stopped.", "tasks", len(tasks))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor: waiting for logic tasks: %w", ctx.Err())
	}
}

func (s *Supervisor) run(ctx context.Context, t *task) {
	defer s.wg.Done()
	defer close(t.done)
	defer t.cancel()
	logger := s.logger.With("module", t.id)

	// One pump serves every attempt, so an action it already took from the
	// inbox reaches the next handler instead of being lost with the failed one.
	actions := make(chan any)
	go t.inbox.Pump(actions, ctx.Done())

	for {
		err := s.attempt(ctx, t, actions)
		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			t.setStatus(Stopped, nil)
			logger.Debug("Logic task stopped.")
			return
		}

		failure := &storeerrors.LogicHandlerFailure{Module: t.id, Err: err}
		s.reporter.Report(ctx, failure, "module", t.id)

		t.mu.Lock()
		canRestart := t.restarts < s.restartLimit
		if canRestart {
			t.restarts++
		}
		restarts := t.restarts
		t.mu.Unlock()

		if !canRestart {
			t.setStatus(Failed, failure)
			t.inbox.Close()
			t.inbox.Drain()
			logger.Warn("Logic task failed.", "error", err)
			return
		}
		logger.Warn("Restarting logic task.", "error", err, "restart", restarts)
	}
}

// attempt runs one handler instance until it returns.
func (s *Supervisor) attempt(ctx context.Context, t *task, actions <-chan any) (err error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w\n%s", &storeerrors.PanicError{Value: rec}, debug.Stack())
		}
	}()

	handler := t.factory()
	if handler == nil {
		return nil
	}
	return handler.Run(attemptCtx, actions, t.store)
}

func (t *task) setStatus(status Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.err = err
}
