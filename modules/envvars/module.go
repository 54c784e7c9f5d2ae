// Package envvars exposes process environment variables as module state.
// Its Logic handler loads the variables once at start and again on every
// Load action.
package envvars

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/ctxlog"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

const ID = "envvars"

// Settings is read from the module's configuration block.
type Settings struct {
	// Prefix selects which variables are loaded. Empty loads everything.
	Prefix string `cty:"prefix"`
	// StripPrefix removes Prefix from the stored keys.
	StripPrefix bool `cty:"strip_prefix"`
}

// State holds the loaded variables.
type State struct {
	Vars  map[string]string `json:"vars"`
	Loads int               `json:"loads"`
}

type Action interface{ isEnvAction() }

// Load asks the Logic handler to re-read the environment.
type Load struct{}

// Loaded replaces the stored variables. It is dispatched by the Logic
// handler.
type Loaded struct {
	Vars map[string]string `json:"vars"`
}

func (Load) isEnvAction()   {}
func (Loaded) isEnvAction() {}

func Reduce(s State, a Action) (State, error) {
	if l, ok := a.(Loaded); ok {
		s.Vars = l.Vars
		s.Loads++
	}
	return s, nil
}

// Module implements the registry.Module interface for this package.
type Module struct {
	Settings Settings
	// Environ replaces os.Environ.
	Environ func() []string
}

func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule(module.New(ID, State{Vars: map[string]string{}}, Reduce,
		module.WithTypes(module.Family[Action](
			codec.V[Load]("envvars.Load"),
			codec.V[Loaded]("envvars.Loaded"),
		)),
		module.WithLogic(func() module.LogicHandler { return module.LogicFunc(m.run) }),
	))
}

func (m *Module) run(ctx context.Context, actions <-chan any, store module.Accessor) error {
	if err := m.load(ctx, store); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-actions:
			if !ok {
				return nil
			}
			if _, isLoad := a.(Load); !isLoad {
				continue
			}
			if err := m.load(ctx, store); err != nil {
				return err
			}
		}
	}
}

func (m *Module) load(ctx context.Context, store module.Accessor) error {
	environ := m.Environ
	if environ == nil {
		environ = os.Environ
	}
	vars := make(map[string]string)
	for _, e := range environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], m.Settings.Prefix) {
			continue
		}
		key := pair[0]
		if m.Settings.StripPrefix {
			key = strings.TrimPrefix(key, m.Settings.Prefix)
		}
		vars[key] = pair[1]
	}
	ctxlog.FromContext(ctx).Debug("Environment loaded.", "prefix", m.Settings.Prefix, "count", len(vars))
	_, err := store.Dispatch(ctx, Loaded{Vars: vars})
	return err
}
