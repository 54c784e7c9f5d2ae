package module

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/specialistvlad/burststate/internal/codec"
)

// ReduceFunc is the untyped reducer the core calls. It must be pure: the
// returned value replaces the module's state.
type ReduceFunc func(state, action any) (any, error)

// Contribution adds serializer registrations for a module's polymorphic
// families.
type Contribution func(r *codec.Registry) error

// Definition describes one module. It is immutable once registered.
type Definition struct {
	ID         string
	Initial    any
	StateType  reflect.Type
	ActionType reflect.Type
	Reduce     ReduceFunc
	Logic      LogicFactory
	Types      []Contribution
}

// Option customizes a Definition built by New.
type Option func(*Definition)

// WithLogic attaches an asynchronous Logic handler factory.
func WithLogic(factory LogicFactory) Option {
	return func(d *Definition) { d.Logic = factory }
}

// WithTypes attaches serializer contributions.
func WithTypes(contributions ...Contribution) Option {
	return func(d *Definition) { d.Types = append(d.Types, contributions...) }
}

// Family returns a Contribution registering variants under the base type B.
func Family[B any](variants ...codec.Variant) Contribution {
	return func(r *codec.Registry) error {
		return codec.RegisterFamily[B](r, variants...)
	}
}

// New builds a Definition from a typed reducer. S is the state type and A
// the action type, usually a sealed interface; the reducer is only ever
// called with actions assignable to A.
func New[S, A any](id string, initial S, reduce func(S, A) (S, error), opts ...Option) *Definition {
	def := &Definition{
		ID:         id,
		Initial:    initial,
		StateType:  reflect.TypeFor[S](),
		ActionType: reflect.TypeFor[A](),
	}
	if reduce != nil {
		def.Reduce = func(state, action any) (any, error) {
			s, _ := state.(S)
			a, ok := action.(A)
			if !ok {
				return state, fmt.Errorf("module %s: unexpected action %T", id, action)
			}
			return reduce(s, a)
		}
	}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// Validate checks that d is complete and internally consistent.
func (d *Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("module id is empty"))
	}
	if d.Reduce == nil {
		errs = append(errs, fmt.Errorf("module '%s': reducer is nil", d.ID))
	}
	if d.StateType == nil {
		errs = append(errs, fmt.Errorf("module '%s': state type is nil", d.ID))
	} else if d.Initial != nil && !reflect.TypeOf(d.Initial).AssignableTo(d.StateType) {
		errs = append(errs, fmt.Errorf("module '%s': initial state %T is not a %s", d.ID, d.Initial, d.StateType))
	}
	if d.ActionType == nil {
		errs = append(errs, fmt.Errorf("module '%s': action type is nil", d.ID))
	}
	return errors.Join(errs...)
}

// Accepts reports whether the module takes actions of type t.
func (d *Definition) Accepts(t reflect.Type) bool {
	return t != nil && d.ActionType != nil && t.AssignableTo(d.ActionType)
}
