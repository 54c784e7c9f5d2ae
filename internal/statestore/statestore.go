// Package statestore holds the current value of every module's state.
//
// Each entry has a single writer (the module's dispatch lane, or the atomic
// restore pass) and any number of readers and observers. An entry's value
// and its version only move together, under the entry lock, so an observer
// subscribing concurrently with a write sees either the old value followed
// by the new one, or just the new one.
//
// Whole-store reads (Snapshot) and the restore swap (ReplaceAll) share a
// store-wide lock, so a snapshot never mixes restored and unrestored
// modules.
package statestore

import (
	"sync"

	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/specialistvlad/burststate/internal/stream"
)

// Entry is the current state of one module.
type Entry struct {
	id string

	mu      sync.RWMutex
	value   any
	version uint64
	hub     *stream.Hub
}

// ID returns the owning module's id.
func (e *Entry) ID() string { return e.id }

// Get returns the current value and its version.
func (e *Entry) Get() (any, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.version
}

// Set replaces the value and notifies observers.
func (e *Entry) Set(value any) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.version++
	e.value = value
	e.hub.Publish(stream.Change{Module: e.id, Value: value, Version: e.version})
	return e.version
}

// Observe subscribes to the entry, starting with the current value.
func (e *Entry) Observe() *stream.Subscription {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hub.Subscribe(stream.Change{Module: e.id, Value: e.value, Version: e.version})
}

// Store is the set of entries, fixed at construction.
type Store struct {
	order   []string
	entries map[string]*Entry

	// view is held for reading by Snapshot and for writing by ReplaceAll.
	view sync.RWMutex

	mu     sync.Mutex
	closed bool
}

// Seed is one module's starting value.
type Seed struct {
	ID    string
	Value any
}

// New creates a store with one entry per seed, in seed order.
func New(seeds ...Seed) (*Store, error) {
	s := &Store{entries: make(map[string]*Entry, len(seeds))}
	for _, seed := range seeds {
		if _, exists := s.entries[seed.ID]; exists {
			return nil, &storeerrors.DuplicateModuleError{ID: seed.ID}
		}
		s.entries[seed.ID] = &Entry{id: seed.ID, value: seed.Value, hub: stream.NewHub()}
		s.order = append(s.order, seed.ID)
	}
	return s, nil
}

// IDs returns module ids in seed order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}

// Entry returns the entry for id.
func (s *Store) Entry(id string) (*Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, &storeerrors.UnknownModuleError{ID: id}
	}
	return e, nil
}

// Get returns the current value for id.
func (s *Store) Get(id string) (any, error) {
	e, err := s.Entry(id)
	if err != nil {
		return nil, err
	}
	v, _ := e.Get()
	return v, nil
}

// Set replaces the value for id.
func (s *Store) Set(id string, value any) error {
	e, err := s.Entry(id)
	if err != nil {
		return err
	}
	e.Set(value)
	return nil
}

// Snapshot returns every current value keyed by id, as one point in time
// with respect to ReplaceAll.
func (s *Store) Snapshot() map[string]any {
	s.view.RLock()
	defer s.view.RUnlock()
	out := make(map[string]any, len(s.order))
	for _, id := range s.order {
		v, _ := s.entries[id].Get()
		out[id] = v
	}
	return out
}

// ReplaceAll swaps the values of every id in values. Unknown ids are
// rejected before anything changes. Snapshot readers see either none or all
// of the swap; the caller must stop lane writers for the swap to be atomic
// with respect to them too.
func (s *Store) ReplaceAll(values map[string]any) error {
	for id := range values {
		if _, ok := s.entries[id]; !ok {
			return &storeerrors.UnknownModuleError{ID: id}
		}
	}
	s.view.Lock()
	defer s.view.Unlock()
	for _, id := range s.order {
		if v, ok := values[id]; ok {
			s.entries[id].Set(v)
		}
	}
	return nil
}

// Observe subscribes to id.
func (s *Store) Observe(id string) (*stream.Subscription, error) {
	e, err := s.Entry(id)
	if err != nil {
		return nil, err
	}
	return e.Observe(), nil
}

// Close ends every observer stream. Values stay readable.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, id := range s.order {
		s.entries[id].hub.Close()
	}
}
