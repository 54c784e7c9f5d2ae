package registry

import (
	"log/slog"

	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Module is the interface every module package implements to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry collects module definitions for a single store instance.
type Registry struct {
	definitions []*module.Definition
	index       map[string]int
	errs        []error
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// RegisterModule adds a definition. A second definition with the same id
// is recorded as a DuplicateModuleError and reported by Build.
func (r *Registry) RegisterModule(def *module.Definition) {
	if def == nil {
		return
	}
	if _, exists := r.index[def.ID]; exists {
		r.errs = append(r.errs, &storeerrors.DuplicateModuleError{ID: def.ID})
		return
	}
	slog.Debug("Registering module.", "module", def.ID)
	r.index[def.ID] = len(r.definitions)
	r.definitions = append(r.definitions, def)
}

// Use registers every module package in order.
func (r *Registry) Use(mods ...Module) *Registry {
	for _, m := range mods {
		m.Register(r)
	}
	return r
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []*module.Definition {
	return append([]*module.Definition(nil), r.definitions...)
}
