package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DecodeModule copies module id's settings into target, a pointer to a
// struct whose fields carry `cty:"name"` tags. Attributes without a
// matching field are an error; fields without an attribute keep their
// value. A module without settings leaves target untouched.
func (m *Model) DecodeModule(id string, target any) error {
	val, ok := m.Modules[id]
	if !ok || val.IsNull() {
		return nil
	}
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("module '%s' settings target must be a pointer to a struct, got %T", id, target)
	}
	if !val.Type().IsObjectType() {
		return fmt.Errorf("module '%s' settings must be an object, got %s", id, val.Type().FriendlyName())
	}

	fields := make(map[string]reflect.Value)
	elem := ptr.Elem()
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Type().Field(i)
		name := strings.Split(f.Tag.Get("cty"), ",")[0]
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		fields[name] = elem.Field(i)
	}

	for name, attr := range val.AsValueMap() {
		field, ok := fields[name]
		if !ok {
			return fmt.Errorf("module '%s' has no setting '%s'", id, name)
		}
		if attr.IsNull() {
			continue
		}
		if err := gocty.FromCtyValue(attr, field.Addr().Interface()); err != nil {
			return fmt.Errorf("module '%s' setting '%s': %w", id, name, err)
		}
	}
	return nil
}

// SetModule stores settings for module id, replacing earlier ones.
func (m *Model) SetModule(id string, settings map[string]cty.Value) {
	if m.Modules == nil {
		m.Modules = make(map[string]cty.Value)
	}
	m.Modules[id] = cty.ObjectVal(settings)
}
