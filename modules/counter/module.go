// Package counter is a minimal module holding an integer.
package counter

import (
	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
)

// ID is the module id.
const ID = "counter"

// State is the counter value.
type State int

// Action is the sealed family of counter actions.
type Action interface{ isCounterAction() }

type Increment struct{}

type Decrement struct{}

// Add adds N, which may be negative.
type Add struct {
	N int `json:"n"`
}

type Reset struct{}

func (Increment) isCounterAction() {}
func (Decrement) isCounterAction() {}
func (Add) isCounterAction()       {}
func (Reset) isCounterAction()     {}

// Reduce applies a to s.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case Increment:
		return s + 1, nil
	case Decrement:
		return s - 1, nil
	case Add:
		return s + State(a.N), nil
	case Reset:
		return 0, nil
	}
	return s, nil
}

// Definition returns the counter module definition.
func Definition() *module.Definition {
	return module.New(ID, State(0), Reduce,
		module.WithTypes(module.Family[Action](
			codec.V[Increment]("counter.Increment"),
			codec.V[Decrement]("counter.Decrement"),
			codec.V[Add]("counter.Add"),
			codec.V[Reset]("counter.Reset"),
		)),
	)
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the counter with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule(Definition())
}
