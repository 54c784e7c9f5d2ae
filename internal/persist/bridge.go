package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/statestore"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Pauser stops state writers for the duration of an atomic restore.
type Pauser interface {
	Pause() (resume func())
}

// Options configures a Bridge.
type Options struct {
	Catalog  *registry.Catalog
	States   *statestore.Store
	Backend  Backend
	Reporter storeerrors.Reporter
	Pauser   Pauser
}

// Bridge snapshots and restores the store through a Backend.
type Bridge struct {
	catalog  *registry.Catalog
	states   *statestore.Store
	backend  Backend
	reporter storeerrors.Reporter
	pauser   Pauser
}

// Outcome describes what a restore did, per module id.
type Outcome struct {
	// Found is false when the backend had nothing saved.
	Found bool
	// Restored modules took their value from the snapshot.
	Restored []string
	// Defaulted modules failed to decode and fell back to their initial state.
	Defaulted []string
	// Missing modules were absent from the snapshot and got their initial state.
	Missing []string
	// Dropped ids were in the snapshot but are not registered.
	Dropped []string
}

// NewBridge creates a Bridge. A nil Pauser restores without pausing.
func NewBridge(opts Options) *Bridge {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = storeerrors.LogReporter{}
	}
	return &Bridge{
		catalog:  opts.Catalog,
		states:   opts.States,
		backend:  opts.Backend,
		reporter: reporter,
		pauser:   opts.Pauser,
	}
}

// Capture serializes every module's state as of one point in time. A
// module that fails to encode is reported and left out of the snapshot.
func (b *Bridge) Capture(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()
	values := b.states.Snapshot()
	for _, def := range b.catalog.Modules() {
		value, ok := values[def.ID]
		if !ok {
			return nil, &storeerrors.UnknownModuleError{ID: def.ID}
		}
		text, err := b.catalog.Codec.EncodeAs(value, def.StateType)
		if err != nil {
			b.reporter.Report(ctx, fmt.Errorf("snapshot module '%s': %w", def.ID, err), "module", def.ID)
			continue
		}
		snap.Put(def.ID, text)
	}
	return snap, nil
}

// Save captures the store and writes it to the backend.
func (b *Bridge) Save(ctx context.Context) error {
	snap, err := b.Capture(ctx)
	if err != nil {
		return err
	}
	if b.backend == nil {
		return &storeerrors.StorageError{Op: "save", Err: fmt.Errorf("no backend configured")}
	}
	if err := b.backend.Save(ctx, snap.String()); err != nil {
		storageErr := &storeerrors.StorageError{Op: "save", Err: err}
		b.reporter.Report(ctx, storageErr)
		return storageErr
	}
	ctxlog.FromContext(ctx).Debug("Snapshot saved.", "modules", snap.Len())
	return nil
}

// Exists reports whether the backend holds a snapshot.
func (b *Bridge) Exists(ctx context.Context) (bool, error) {
	if b.backend == nil {
		return false, nil
	}
	ok, err := b.backend.Has(ctx)
	if err != nil {
		return false, &storeerrors.StorageError{Op: "has", Err: err}
	}
	return ok, nil
}

// Restore loads the backend's snapshot and applies it.
func (b *Bridge) Restore(ctx context.Context) (Outcome, error) {
	if b.backend == nil {
		return Outcome{}, nil
	}
	text, ok, err := b.backend.Load(ctx)
	if err != nil {
		storageErr := &storeerrors.StorageError{Op: "load", Err: err}
		b.reporter.Report(ctx, storageErr)
		return Outcome{}, storageErr
	}
	if !ok {
		return Outcome{}, nil
	}
	return b.RestoreText(ctx, text)
}

// RestoreText applies a snapshot document. A malformed document is an
// error and changes nothing. Otherwise every registered module is replaced
// in one pass: with its decoded snapshot value, or with its initial state
// when it is missing or fails to decode.
func (b *Bridge) RestoreText(ctx context.Context, text string) (Outcome, error) {
	logger := ctxlog.FromContext(ctx)
	snap, err := Parse(text)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Found: true}
	values := make(map[string]any, len(b.catalog.Modules()))

	for _, id := range snap.IDs() {
		if _, ok := b.catalog.Module(id); !ok {
			logger.Warn("Dropping unknown module from snapshot.", "module", id)
			out.Dropped = append(out.Dropped, id)
		}
	}

	for _, def := range b.catalog.Modules() {
		raw, ok := snap.Get(def.ID)
		if !ok {
			values[def.ID] = def.Initial
			out.Missing = append(out.Missing, def.ID)
			continue
		}
		value, err := b.catalog.Codec.Decode(raw, def.StateType)
		if err != nil {
			b.reporter.Report(ctx, fmt.Errorf("restore module '%s': %w", def.ID, err), "module", def.ID)
			values[def.ID] = def.Initial
			out.Defaulted = append(out.Defaulted, def.ID)
			continue
		}
		values[def.ID] = value
		out.Restored = append(out.Restored, def.ID)
	}

	if b.pauser != nil {
		resume := b.pauser.Pause()
		defer resume()
	}
	if err := b.states.ReplaceAll(values); err != nil {
		return Outcome{}, err
	}

	logger.Debug("Snapshot restored.",
		"restored", len(out.Restored),
		"defaulted", len(out.Defaulted),
		"missing", len(out.Missing),
		"dropped", len(out.Dropped),
	)
	return out, nil
}

// LogOutcome writes a one-line summary of a restore.
func LogOutcome(logger *slog.Logger, o Outcome) {
	if !o.Found {
		logger.Info("No saved snapshot found; starting from initial state.")
		return
	}
	logger.Info("State restored from snapshot.",
		"restored", o.Restored,
		"defaulted", o.Defaulted,
		"missing", o.Missing,
		"dropped", o.Dropped,
	)
}
