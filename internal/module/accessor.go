package module

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/specialistvlad/burststate/internal/stream"
)

// Completion tracks a dispatched action until its reducer has run.
type Completion interface {
	Done() <-chan struct{}
	Err() error
	Wait(ctx context.Context) error
}

// Accessor is the narrow view of a store handed to Logic handlers and
// application code. It cannot mutate state directly, enumerate modules or
// reach persistence.
type Accessor interface {
	Dispatch(ctx context.Context, action any) (Completion, error)
	State(id string) (any, error)
	Observe(id string) (*stream.Subscription, error)
	Lookup(stateType reflect.Type) (string, bool)
}

// StateOf returns the current state of the module whose state type is S.
func StateOf[S any](acc Accessor) (S, error) {
	var zero S
	id, ok := acc.Lookup(reflect.TypeFor[S]())
	if !ok {
		return zero, &storeerrors.UnknownModuleError{ID: reflect.TypeFor[S]().String()}
	}
	v, err := acc.State(id)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	s, ok := v.(S)
	if !ok {
		return zero, fmt.Errorf("module '%s' holds %T, not %s", id, v, reflect.TypeFor[S]())
	}
	return s, nil
}

// Observe subscribes to the module whose state type is S.
func Observe[S any](acc Accessor) (*stream.Subscription, error) {
	id, ok := acc.Lookup(reflect.TypeFor[S]())
	if !ok {
		return nil, &storeerrors.UnknownModuleError{ID: reflect.TypeFor[S]().String()}
	}
	return acc.Observe(id)
}
