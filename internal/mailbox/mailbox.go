// Package mailbox provides an unbounded FIFO queue. Producers never block on
// Put, which lets dispatch lanes, logic inboxes and the inspection tap hand
// work across goroutines without coupling their speeds.
package mailbox

import "sync"

// Mailbox is an unbounded, concurrency-safe FIFO queue.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

// New returns an empty, open mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{signal: make(chan struct{}, 1)}
}

// Put appends an item. It reports false if the mailbox is closed.
func (m *Mailbox[T]) Put(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, item)
	m.mu.Unlock()
	m.notify()
	return true
}

// TryTake removes and returns the oldest item, if any.
func (m *Mailbox[T]) TryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	item := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops accepting items. Items already queued stay available to
// TryTake and Pump. Closing twice is a no-op.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.notify()
}

// Drain removes and returns every queued item.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	rest := m.items
	m.items = nil
	return rest
}

// Closed reports whether Close has been called.
func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ready returns a channel that receives a value whenever items may be
// available or the mailbox was closed. Consumers drain with TryTake after
// each wake-up.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.signal
}

func (m *Mailbox[T]) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Pump forwards items to out, in order, until the mailbox is closed and
// drained or done is closed. It closes out on return.
func (m *Mailbox[T]) Pump(out chan<- T, done <-chan struct{}) {
	defer close(out)
	for {
		item, ok := m.TryTake()
		if ok {
			select {
			case out <- item:
				continue
			case <-done:
				return
			}
		}
		if m.drained() {
			return
		}
		select {
		case <-m.signal:
		case <-done:
			return
		}
	}
}

func (m *Mailbox[T]) drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed && len(m.items) == 0
}
