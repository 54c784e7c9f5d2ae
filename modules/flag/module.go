// Package flag is a minimal module holding a boolean.
package flag

import (
	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

const ID = "flag"

// State is the flag value.
type State bool

// Action is the sealed family of flag actions.
type Action interface{ isFlagAction() }

type Toggle struct{}

type Set struct {
	Value bool `json:"value"`
}

func (Toggle) isFlagAction() {}
func (Set) isFlagAction()    {}

func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case Toggle:
		return !s, nil
	case Set:
		return State(a.Value), nil
	}
	return s, nil
}

func Definition() *module.Definition {
	return module.New(ID, State(false), Reduce,
		module.WithTypes(module.Family[Action](
			codec.V[Toggle]("flag.Toggle"),
			codec.V[Set]("flag.Set"),
		)),
	)
}

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule(Definition())
}
