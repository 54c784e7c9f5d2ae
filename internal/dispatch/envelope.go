package dispatch

import (
	"context"
	"sync"
	"time"
)

// Envelope is what middleware sees for one dispatch. Middleware may replace
// Action before calling next.
type Envelope struct {
	ID     string
	Action any
	// Module is the owner of the action as first dispatched. It is empty
	// when the original action could not be routed.
	Module string
	// State is every module's value at the time of dispatch.
	State map[string]any
	At    time.Time

	mu      sync.Mutex
	hooks   []func(Result)
	pending *job
}

// OnSettled registers fn to run once the dispatch reaches a final outcome:
// reduced, failed or dropped. Hooks run on the settling goroutine.
func (e *Envelope) OnSettled(fn func(Result)) {
	e.mu.Lock()
	e.hooks = append(e.hooks, fn)
	e.mu.Unlock()
}

// park records the job produced when the envelope reached the end of the
// chain. A later call replaces an earlier one.
func (e *Envelope) park(j *job) {
	e.mu.Lock()
	e.pending = j
	e.mu.Unlock()
}

func (e *Envelope) takePending() *job {
	e.mu.Lock()
	defer e.mu.Unlock()
	j := e.pending
	e.pending = nil
	return j
}

func (e *Envelope) settle(r Result) {
	e.mu.Lock()
	hooks := e.hooks
	e.hooks = nil
	e.mu.Unlock()
	for _, h := range hooks {
		h(r)
	}
}

// Result is the final outcome of a dispatch.
type Result struct {
	ID      string
	Module  string
	Action  any
	Version uint64
	Dropped bool
	Err     error
}

// Next continues the middleware chain.
type Next func(ctx context.Context, env *Envelope) error

// Middleware wraps the rest of the chain. Returning nil without calling
// next drops the action; returning an error rejects the dispatch.
type Middleware func(next Next) Next

// Chain composes middlewares so the first one runs outermost.
func Chain(terminal Next, middlewares ...Middleware) Next {
	next := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		next = middlewares[i](next)
	}
	return next
}
