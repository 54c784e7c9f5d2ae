// Package inspect exports store activity to external tools: a stream of
// dispatched actions with their outcome and a serialized view of every module's state. It is the
// seam a remote debugger plugs into; it never affects dispatch.
package inspect

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/mailbox"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Outcome is how a dispatched action ended.
type Outcome string

const (
	Reduced Outcome = "reduced"
	// Failed means the action was queued but not applied: its reducer
	// failed or the store shut down first.
	Failed Outcome = "failed"
	// Dropped means middleware short-circuited the action.
	Dropped Outcome = "dropped"
	// Rejected means the dispatch returned an error before queueing.
	Rejected Outcome = "rejected"
)

// Record is what a dispatch lane hands to the tap.
type Record struct {
	// Module is empty when the action could not be routed.
	Module  string
	Action  any
	At      time.Time
	Outcome Outcome
	Err     error
}

// Event describes one dispatched action.
type Event struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Module    string    `json:"module"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateExport is one module's serialized state.
type StateExport struct {
	Module string `json:"module"`
	State  string `json:"state"`
}

// Sink receives inspection events. Emit is called from the tap goroutine,
// one event at a time.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Tap queues dispatched actions from dispatch lanes and fans them out to sinks
// on its own goroutine. Publish never blocks.
type Tap struct {
	codec    *codec.Codec
	reporter storeerrors.Reporter
	box      *mailbox.Mailbox[Record]
	seq      atomic.Uint64

	mu    sync.RWMutex
	sinks []Sink

	startOnce sync.Once
	done      chan struct{}
}

// NewTap creates a tap. Call Start to begin delivering events.
func NewTap(c *codec.Codec, reporter storeerrors.Reporter, sinks ...Sink) *Tap {
	if reporter == nil {
		reporter = storeerrors.LogReporter{}
	}
	return &Tap{
		codec:    c,
		reporter: reporter,
		box:      mailbox.New[Record](),
		sinks:    sinks,
		done:     make(chan struct{}),
	}
}

// AddSink attaches another sink. Events already delivered are not replayed.
func (t *Tap) AddSink(s Sink) {
	t.mu.Lock()
	t.sinks = append(t.sinks, s)
	t.mu.Unlock()
}

// Publish queues a dispatch outcome for inspection.
func (t *Tap) Publish(r Record) {
	t.box.Put(r)
}

// Start runs the delivery loop until Close.
func (t *Tap) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go t.run(ctx)
	})
}

// Close stops accepting actions, delivers what is queued and waits for the
// loop to finish. It must only be called after Start.
func (t *Tap) Close() {
	t.box.Close()
	<-t.done
}

func (t *Tap) run(ctx context.Context) {
	defer close(t.done)
	logger := ctxlog.FromContext(ctx)
	items := make(chan Record)
	go t.box.Pump(items, nil)

	for r := range items {
		ev, err := t.event(r)
		if err != nil {
			t.reporter.Report(ctx, err, "module", r.Module)
			continue
		}
		t.mu.RLock()
		sinks := t.sinks
		t.mu.RUnlock()
		for _, s := range sinks {
			s.Emit(ctx, ev)
		}
	}
	logger.Debug("Inspection tap drained.", "events", t.seq.Load())
}

var anyType = reflect.TypeFor[any]()

func (t *Tap) event(r Record) (Event, error) {
	payload, err := t.codec.EncodeAs(r.Action, anyType)
	if err != nil {
		return Event{}, err
	}
	typ := "nil"
	if r.Action != nil {
		rt := reflect.TypeOf(r.Action)
		if name, ok := t.codec.NameOf(rt); ok {
			typ = name
		} else {
			typ = codec.TypeName(rt)
		}
	}
	outcome := r.Outcome
	if outcome == "" {
		outcome = Reduced
	}
	ev := Event{
		ID:        uuid.NewString(),
		Seq:       t.seq.Add(1),
		Module:    r.Module,
		Type:      typ,
		Payload:   payload,
		Outcome:   outcome,
		Timestamp: r.At,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev, nil
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// LogSink writes every event through slog at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s LogSink) Emit(ctx context.Context, ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	logger.Debug("Action inspected.",
		"seq", ev.Seq,
		"module", ev.Module,
		"type", ev.Type,
		"outcome", ev.Outcome,
		"payload", ev.Payload,
	)
}
