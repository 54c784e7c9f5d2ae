package inmemorybackend

import (
	"context"
	"sync"
)

// DefaultName is the slot used by New.
const DefaultName = "default"

// Backend is an in-memory persist.Backend.
type Backend struct {
	name  string
	slots *sync.Map // Key: store name, Value: string snapshot
}

// New creates an empty backend using the default slot.
func New() *Backend {
	return &Backend{name: DefaultName, slots: &sync.Map{}}
}

// Named returns a backend for another slot sharing this backend's storage.
func (b *Backend) Named(name string) *Backend {
	return &Backend{name: name, slots: b.slots}
}

// Save replaces the slot's snapshot.
func (b *Backend) Save(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.slots.Store(b.name, text)
	return nil
}

// Load returns the slot's snapshot. If nothing was saved, ok is false.
func (b *Backend) Load(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := b.slots.Load(b.name)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// Has reports whether the slot holds a snapshot.
func (b *Backend) Has(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := b.slots.Load(b.name)
	return ok, nil
}

// Clear removes the slot's snapshot.
func (b *Backend) Clear() {
	b.slots.Delete(b.name)
}
