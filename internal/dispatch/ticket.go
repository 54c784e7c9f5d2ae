package dispatch

import (
	"context"
	"sync"
)

// Ticket tracks one dispatched action. It implements module.Completion.
type Ticket struct {
	done chan struct{}
	once sync.Once

	module  string
	version uint64
	dropped bool
	err     error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) settle(r Result) {
	t.once.Do(func() {
		t.module = r.Module
		t.version = r.Version
		t.dropped = r.Dropped
		t.err = r.Err
		close(t.done)
	})
}

// Done is closed once the action has been reduced, has failed or was
// dropped by middleware.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the outcome error. It is nil until Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the ticket settles or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports whether middleware short-circuited the action.
func (t *Ticket) Dropped() bool {
	<-t.done
	return t.dropped
}

// Module returns the module that reduced the action.
func (t *Ticket) Module() string {
	<-t.done
	return t.module
}

// Version returns the state version the action produced.
func (t *Ticket) Version() uint64 {
	<-t.done
	return t.version
}
