package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/mailbox"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/statestore"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// batchSize bounds how many actions a worker takes from one lane before
// giving other lanes a turn.
const batchSize = 64

// LogicSink receives actions after they were reduced.
type LogicSink interface {
	Deliver(module string, action any)
}

// TapSink receives every dispatched action with its outcome. Publish must
// not block.
type TapSink interface {
	Publish(r inspect.Record)
}

// Options configures a Pipeline.
type Options struct {
	Catalog    *registry.Catalog
	States     *statestore.Store
	Workers    int
	Middleware []Middleware
	Logic      LogicSink
	Tap        TapSink
	Reporter   storeerrors.Reporter
}

// Pipeline routes, queues and reduces actions.
type Pipeline struct {
	catalog  *registry.Catalog
	states   *statestore.Store
	logic    LogicSink
	tap      TapSink
	reporter storeerrors.Reporter
	logger   *slog.Logger
	chain    Next

	lanes map[string]*lane
	ready chan *lane

	// gate is held for reading while a lane reduces and for writing by Pause.
	gate sync.RWMutex

	// mu orders enqueue against Close; closed is read without it by workers.
	mu     sync.RWMutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type job struct {
	env    *Envelope
	action any
	ticket *Ticket
	module string
}

type lane struct {
	def   *module.Definition
	entry *statestore.Entry
	box   *mailbox.Mailbox[*job]

	mu        sync.Mutex
	scheduled bool
}

// New creates a pipeline and starts its workers. Workers log through the
// logger carried by ctx.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Catalog == nil || opts.States == nil {
		return nil, fmt.Errorf("dispatch: catalog and state store are required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = storeerrors.LogReporter{}
	}

	p := &Pipeline{
		catalog:  opts.Catalog,
		states:   opts.States,
		logic:    opts.Logic,
		tap:      opts.Tap,
		reporter: reporter,
		logger:   ctxlog.FromContext(ctx),
		lanes:    make(map[string]*lane),
		done:     make(chan struct{}),
	}
	for _, def := range opts.Catalog.Modules() {
		entry, err := opts.States.Entry(def.ID)
		if err != nil {
			return nil, err
		}
		p.lanes[def.ID] = &lane{def: def, entry: entry, box: mailbox.New[*job]()}
	}
	// Each lane sits in ready at most once, so sends never block.
	p.ready = make(chan *lane, len(p.lanes))
	p.chain = Chain(p.enqueue, opts.Middleware...)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
	p.logger.Debug("Dispatch pipeline started.", "workers", workers, "lanes", len(p.lanes))
	return p, nil
}

// Dispatch runs action through middleware and queues it on its module's
// lane. It returns as soon as the action is queued; the Ticket settles
// once the reducer has run. Nothing is queued unless the whole middleware
// chain returns nil.
func (p *Pipeline) Dispatch(ctx context.Context, action any) (*Ticket, error) {
	if p.isClosed() {
		return nil, storeerrors.ErrStoreShutdown
	}

	env := &Envelope{
		ID:     uuid.NewString(),
		Action: action,
		State:  p.states.Snapshot(),
		At:     time.Now(),
	}
	env.Module, _ = p.catalog.Route(action)

	err := p.chain(ctx, env)
	pending := env.takePending()
	if err != nil {
		p.reject(env, pending, err)
		return nil, err
	}

	ticket := newTicket()
	if pending == nil {
		r := Result{ID: env.ID, Module: env.Module, Action: env.Action, Dropped: true}
		env.settle(r)
		ticket.settle(r)
		p.publish(inspect.Record{Module: env.Module, Action: env.Action, At: env.At, Outcome: inspect.Dropped})
		p.logger.Debug("Action dropped by middleware.", "action", p.actionName(env.Action))
		return ticket, nil
	}

	pending.ticket = ticket
	if err := p.submit(pending); err != nil {
		p.reject(env, pending, err)
		return nil, err
	}
	return ticket, nil
}

// reject records a dispatch that returned an error. When the action had
// already reached the end of the chain, the settle hooks installed on the
// way in are completed with err.
func (p *Pipeline) reject(env *Envelope, pending *job, err error) {
	if pending != nil {
		env.settle(Result{ID: env.ID, Module: pending.module, Action: pending.action, Err: err})
	}
	p.publish(inspect.Record{Module: env.Module, Action: env.Action, At: env.At, Outcome: inspect.Rejected, Err: err})
}

func (p *Pipeline) publish(r inspect.Record) {
	if p.tap != nil {
		p.tap.Publish(r)
	}
}

// Pause stops lanes from reducing until resume is called. Actions keep
// queueing while paused.
func (p *Pipeline) Pause() (resume func()) {
	p.gate.Lock()
	var once sync.Once
	return func() { once.Do(p.gate.Unlock) }
}

// Close stops the workers and fails every queued action with
// ErrStoreShutdown. An action being reduced when Close is called finishes.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return
	}
	p.closed.Store(true)
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()

	for _, l := range p.lanes {
		l.box.Close()
		for _, j := range l.box.Drain() {
			p.fail(j, storeerrors.ErrStoreShutdown)
		}
	}
	p.logger.Debug("Dispatch pipeline closed.")
}

func (p *Pipeline) isClosed() bool {
	return p.closed.Load()
}

// enqueue is the terminal step of the middleware chain. It routes the
// action as it looks now and parks the job on the envelope; Dispatch
// submits it once the chain has returned.
func (p *Pipeline) enqueue(_ context.Context, env *Envelope) error {
	id, err := p.catalog.Route(env.Action)
	if err != nil {
		return err
	}
	if p.isClosed() {
		return storeerrors.ErrStoreShutdown
	}
	env.park(&job{env: env, action: env.Action, module: id})
	return nil
}

// submit puts j on its lane and schedules the lane.
func (p *Pipeline) submit(j *job) error {
	l := p.lanes[j.module]

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return storeerrors.ErrStoreShutdown
	}

	l.box.Put(j)
	l.mu.Lock()
	if !l.scheduled {
		l.scheduled = true
		p.ready <- l
	}
	l.mu.Unlock()
	return nil
}

func (p *Pipeline) actionName(action any) string {
	if action == nil {
		return "nil"
	}
	return codec.TypeName(reflect.TypeOf(action))
}
