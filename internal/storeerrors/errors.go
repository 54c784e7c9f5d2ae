// Package storeerrors defines the error taxonomy shared by every store
// component, plus the reporting seam runtime failures flow through.
//
// Construction-time errors (DuplicateModuleError, TypeCollisionError) stop
// the store from being created. Runtime errors (ReducerFailure,
// LogicHandlerFailure, StorageError, UnregisteredTypeError) stay isolated to
// the module or operation that raised them and are handed to a Reporter.
package storeerrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStoreShutdown is returned to any operation racing or following a
// store shutdown.
var ErrStoreShutdown = errors.New("store is shut down")

// DuplicateModuleError reports a second registration of a module id.
type DuplicateModuleError struct {
	ID string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module '%s' already registered", e.ID)
}

// UnknownModuleError reports a lookup of a module id that was never registered.
type UnknownModuleError struct {
	ID string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module '%s' is not registered", e.ID)
}

// UnregisteredTypeError is raised by the codec when a polymorphic position
// holds (or names) a concrete type that no module registered.
type UnregisteredTypeError struct {
	Base string
	Type string
}

func (e *UnregisteredTypeError) Error() string {
	if e.Base == "" {
		return fmt.Sprintf("type '%s' is not registered", e.Type)
	}
	return fmt.Sprintf("type '%s' is not registered under '%s'", e.Type, e.Base)
}

// TypeCollisionError reports two contributions that disagree about a
// concrete type or a type name.
type TypeCollisionError struct {
	Name     string
	Type     string
	Existing string
	Incoming string
}

func (e *TypeCollisionError) Error() string {
	return fmt.Sprintf("type '%s' (%s) already registered under '%s', cannot register under '%s'",
		e.Name, e.Type, e.Existing, e.Incoming)
}

// UnknownActionError means no registered module accepts the action's type.
type UnknownActionError struct {
	Type string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("no module accepts action of type %s", e.Type)
}

// AmbiguousActionError means more than one module accepts the action's type.
type AmbiguousActionError struct {
	Type    string
	Modules []string
}

func (e *AmbiguousActionError) Error() string {
	return fmt.Sprintf("action of type %s is accepted by several modules: %s", e.Type, strings.Join(e.Modules, ", "))
}

// ReducerFailure wraps an error or panic raised by a module's reducer. The
// module's state is left at its last good value.
type ReducerFailure struct {
	Module string
	Action string
	Err    error
}

func (e *ReducerFailure) Error() string {
	return fmt.Sprintf("reducer for module '%s' failed on %s: %v", e.Module, e.Action, e.Err)
}

func (e *ReducerFailure) Unwrap() error { return e.Err }

// LogicHandlerFailure wraps an error or panic that escaped a module's Logic handler.
type LogicHandlerFailure struct {
	Module string
	Err    error
}

func (e *LogicHandlerFailure) Error() string {
	return fmt.Sprintf("logic handler for module '%s' failed: %v", e.Module, e.Err)
}

func (e *LogicHandlerFailure) Unwrap() error { return e.Err }

// StorageError wraps a persistence backend failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PanicError carries a recovered panic value as an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
