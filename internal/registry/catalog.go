package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Catalog is the immutable, validated result of Build: the module set in
// registration order, the composed codec and the action routing table.
type Catalog struct {
	Codec *codec.Codec

	modules []*module.Definition
	index   map[string]*module.Definition
	byState map[reflect.Type]string

	routes sync.Map // reflect.Type -> route
}

type route struct {
	module string
	err    error
}

// Build validates the registry and produces a Catalog.
func (r *Registry) Build(ctx context.Context) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)
	if err := r.Validate(ctx); err != nil {
		return nil, err
	}

	cr := codec.NewRegistry()
	var errs []error
	for _, def := range r.definitions {
		for _, contribute := range def.Types {
			if err := contribute(cr); err != nil {
				errs = append(errs, fmt.Errorf("module '%s': %w", def.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c := &Catalog{
		Codec:   cr.Compose(),
		modules: r.Definitions(),
		index:   make(map[string]*module.Definition, len(r.definitions)),
		byState: make(map[reflect.Type]string, len(r.definitions)),
	}
	for _, def := range c.modules {
		c.index[def.ID] = def
		if _, taken := c.byState[def.StateType]; taken {
			// Shared state types cannot be resolved by type.
			c.byState[def.StateType] = ""
			continue
		}
		c.byState[def.StateType] = def.ID
	}

	for _, t := range c.Codec.Types() {
		rt := c.resolve(t)
		if _, ambiguous := rt.err.(*storeerrors.AmbiguousActionError); ambiguous {
			errs = append(errs, rt.err)
			continue
		}
		if rt.err == nil {
			c.routes.Store(t, rt)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger.Debug("Module catalog built.", "modules", len(c.modules), "types", len(c.Codec.Types()))
	return c, nil
}

// Modules returns the definitions in registration order.
func (c *Catalog) Modules() []*module.Definition {
	return c.modules
}

// Module returns the definition registered under id.
func (c *Catalog) Module(id string) (*module.Definition, bool) {
	def, ok := c.index[id]
	return def, ok
}

// LookupState returns the id of the only module whose state type is t.
func (c *Catalog) LookupState(t reflect.Type) (string, bool) {
	id, ok := c.byState[t]
	return id, ok && id != ""
}

// Route returns the id of the module that owns action.
func (c *Catalog) Route(action any) (string, error) {
	t := reflect.TypeOf(action)
	if t == nil {
		return "", &storeerrors.UnknownActionError{Type: "nil"}
	}
	if cached, ok := c.routes.Load(t); ok {
		rt := cached.(route)
		return rt.module, rt.err
	}
	rt := c.resolve(t)
	c.routes.Store(t, rt)
	return rt.module, rt.err
}

func (c *Catalog) resolve(t reflect.Type) route {
	var owners []string
	for _, def := range c.modules {
		if def.Accepts(t) {
			owners = append(owners, def.ID)
		}
	}
	switch len(owners) {
	case 0:
		return route{err: &storeerrors.UnknownActionError{Type: codec.TypeName(t)}}
	case 1:
		return route{module: owners[0]}
	}
	return route{err: &storeerrors.AmbiguousActionError{Type: codec.TypeName(t), Modules: owners}}
}
