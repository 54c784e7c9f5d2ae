// Package stream fans state changes out to observers. Each subscription is
// backed by its own unbounded mailbox so a slow observer never stalls the
// writer or its siblings.
package stream

import (
	"sync"

	"github.com/specialistvlad/burststate/internal/mailbox"
)

// Change is one observed value of a module's state.
type Change struct {
	Module  string
	Value   any
	Version uint64
}

// Hub holds the subscriptions of a single state entry.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new observer whose first delivered value is
// initial. The caller must make the read of initial and Subscribe atomic
// with respect to Publish. Subscribing to a closed hub yields a
// subscription that delivers initial and then ends.
func (h *Hub) Subscribe(initial Change) *Subscription {
	sub := &Subscription{
		hub:  h,
		box:  mailbox.New[Change](),
		out:  make(chan Change),
		done: make(chan struct{}),
	}
	sub.box.Put(initial)

	h.mu.Lock()
	if h.closed {
		sub.box.Close()
	} else {
		h.nextID++
		sub.id = h.nextID
		h.subs[sub.id] = sub
	}
	h.mu.Unlock()

	go sub.box.Pump(sub.out, sub.done)
	return sub
}

// Publish queues c on every live subscription.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.box.Put(c)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription once its queued changes are delivered.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[uint64]*Subscription{}
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.box.Close()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription delivers changes on C until it is closed or its hub closes.
type Subscription struct {
	id   uint64
	hub  *Hub
	box  *mailbox.Mailbox[Change]
	out  chan Change
	done chan struct{}
	once sync.Once
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Change {
	return s.out
}

// Close detaches the observer. Undelivered changes are discarded.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		s.box.Close()
		s.box.Drain()
		close(s.done)
	})
}
