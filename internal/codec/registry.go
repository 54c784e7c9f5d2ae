package codec

import (
	"fmt"
	"path"
	"reflect"

	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Variant names one concrete type of a polymorphic family.
type Variant struct {
	Name string
	Type reflect.Type
}

// V builds a Variant for T. An empty name defaults to "<pkg>.<Type>".
func V[T any](name string) Variant {
	return Variant{Name: name, Type: reflect.TypeFor[T]()}
}

type entry struct {
	name string
	typ  reflect.Type
	base reflect.Type
}

// Registry collects serializer contributions. It is not safe for concurrent
// use; contributions are folded once, at store construction.
type Registry struct {
	byType map[reflect.Type]entry
	byName map[string]entry
	order  []reflect.Type
	bases  []reflect.Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]entry),
		byName: make(map[string]entry),
	}
}

// Register adds variants under base. Registering an identical variant twice
// is a no-op. A concrete type already registered under a different base or
// name, or a name already taken by another type, is a TypeCollisionError.
func (r *Registry) Register(base reflect.Type, variants ...Variant) error {
	if base == nil {
		return fmt.Errorf("codec: base type is nil")
	}
	r.addBase(base)

	for _, v := range variants {
		if v.Type == nil {
			return fmt.Errorf("codec: variant '%s' of %s has no type", v.Name, TypeName(base))
		}
		if v.Type.Kind() == reflect.Interface {
			return fmt.Errorf("codec: variant %s of %s must be a concrete type", v.Type, TypeName(base))
		}
		if base.Kind() == reflect.Interface && !v.Type.Implements(base) {
			return fmt.Errorf("codec: %s does not implement %s", v.Type, TypeName(base))
		}
		if base.Kind() != reflect.Interface && v.Type != base {
			return fmt.Errorf("codec: concrete base %s only accepts itself, got %s", TypeName(base), v.Type)
		}

		name := v.Name
		if name == "" {
			name = TypeName(v.Type)
		}

		if existing, ok := r.byType[v.Type]; ok {
			if existing.base == base && existing.name == name {
				continue
			}
			return &storeerrors.TypeCollisionError{
				Name:     name,
				Type:     v.Type.String(),
				Existing: TypeName(existing.base) + " as " + existing.name,
				Incoming: TypeName(base) + " as " + name,
			}
		}
		if existing, ok := r.byName[name]; ok {
			return &storeerrors.TypeCollisionError{
				Name:     name,
				Type:     v.Type.String(),
				Existing: existing.typ.String(),
				Incoming: v.Type.String(),
			}
		}

		e := entry{name: name, typ: v.Type, base: base}
		r.byType[v.Type] = e
		r.byName[name] = e
		r.order = append(r.order, v.Type)
	}
	return nil
}

// RegisterFamily registers variants under the interface type B.
func RegisterFamily[B any](r *Registry, variants ...Variant) error {
	return r.Register(reflect.TypeFor[B](), variants...)
}

func (r *Registry) addBase(base reflect.Type) {
	for _, b := range r.bases {
		if b == base {
			return
		}
	}
	r.bases = append(r.bases, base)
}

// Compose freezes the registry into an immutable Codec. Later registrations
// do not affect codecs already composed.
func (r *Registry) Compose() *Codec {
	c := &Codec{
		byType: make(map[reflect.Type]entry, len(r.byType)),
		byName: make(map[string]entry, len(r.byName)),
		order:  append([]reflect.Type(nil), r.order...),
		bases:  append([]reflect.Type(nil), r.bases...),
	}
	for k, v := range r.byType {
		c.byType[k] = v
	}
	for k, v := range r.byName {
		c.byName[k] = v
	}
	return c
}

// TypeName renders t as "<pkg>.<Type>", prefixing pointers with '*'.
// Unnamed types fall back to their Go syntax.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Kind() == reflect.Pointer {
		return "*" + TypeName(t.Elem())
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return path.Base(t.PkgPath()) + "." + t.Name()
}
