package codec

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// Decode parses text as a value of the expected type. An interface
// expected type requires a tagged envelope (or an "@any" value for `any`).
func (c *Codec) Decode(text string, expected reflect.Type) (any, error) {
	if expected == nil {
		expected = anyType
	}
	node, err := parse(text)
	if err != nil {
		return nil, err
	}
	rv, err := c.decode(node, expected)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// DecodeInto parses text into the value ptr points to.
func (c *Codec) DecodeInto(text string, ptr any) error {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return fmt.Errorf("codec: DecodeInto needs a non-nil pointer, got %T", ptr)
	}
	node, err := parse(text)
	if err != nil {
		return err
	}
	rv, err := c.decode(node, pv.Type().Elem())
	if err != nil {
		return err
	}
	pv.Elem().Set(rv)
	return nil
}

func parse(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("codec: malformed input: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("codec: trailing data after value")
	}
	return node, nil
}

func (c *Codec) decode(node any, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		return c.decodeInterface(node, t)
	}
	if node == nil {
		return reflect.Zero(t), nil
	}

	if t.Kind() == reflect.Pointer {
		elem, err := c.decode(node, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}

	if reflect.PointerTo(t).Implements(jsonUnmarshalerType) {
		return unmarshalInto(node, t)
	}
	if t.Kind() != reflect.String && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		s, ok := node.(string)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, ok := node.(bool)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := node.(json.Number)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("codec: %s does not fit %s", n, t)
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := node.(json.Number)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil || out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("codec: %s does not fit %s", n, t)
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		n, ok := node.(json.Number)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		f, err := n.Float64()
		if err != nil || out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("codec: %s does not fit %s", n, t)
		}
		out.SetFloat(f)
	case reflect.String:
		s, ok := node.(string)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		out.SetString(s)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			s, ok := node.(string)
			if !ok {
				return reflect.Value{}, mismatch(node, t)
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("codec: invalid bytes: %w", err)
			}
			out.SetBytes(b)
			return out, nil
		}
		items, ok := node.([]any)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		out.Set(reflect.MakeSlice(t, len(items), len(items)))
		for i, item := range items {
			v, err := c.decode(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Index(i).Set(v)
		}
	case reflect.Array:
		items, ok := node.([]any)
		if !ok || len(items) != t.Len() {
			return reflect.Value{}, mismatch(node, t)
		}
		for i, item := range items {
			v, err := c.decode(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Index(i).Set(v)
		}
	case reflect.Map:
		obj, ok := node.(map[string]any)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		out.Set(reflect.MakeMapWithSize(t, len(obj)))
		for k, item := range obj {
			key, err := parseMapKey(k, t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			v, err := c.decode(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%q]: %w", k, err)
			}
			out.SetMapIndex(key, v)
		}
	case reflect.Struct:
		obj, ok := node.(map[string]any)
		if !ok {
			return reflect.Value{}, mismatch(node, t)
		}
		for _, f := range fieldsOf(t) {
			item, present := obj[f.name]
			if !present {
				continue
			}
			v, err := c.decode(item, f.typ)
			if err != nil {
				return reflect.Value{}, fmt.Errorf(".%s: %w", f.name, err)
			}
			out.FieldByIndex(f.index).Set(v)
		}
	default:
		return reflect.Value{}, fmt.Errorf("codec: unsupported kind %s for %s", t.Kind(), t)
	}
	return out, nil
}

func (c *Codec) decodeInterface(node any, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if node == nil {
		return out, nil
	}

	obj, isObject := node.(map[string]any)
	if isObject {
		if name, tagged := obj[typeKey].(string); tagged {
			e, ok := c.byName[name]
			if !ok {
				return reflect.Value{}, &storeerrors.UnregisteredTypeError{Base: TypeName(t), Type: name}
			}
			if !e.typ.AssignableTo(t) {
				return reflect.Value{}, fmt.Errorf("codec: %s is registered but is not a %s", name, TypeName(t))
			}
			v, err := c.decode(obj[valueKey], e.typ)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			out.Set(v)
			return out, nil
		}
		if raw, structural := obj[anyKey]; structural && len(obj) == 1 {
			b, err := json.Marshal(raw)
			if err != nil {
				return reflect.Value{}, err
			}
			native, err := decodeFallback(b)
			if err != nil {
				return reflect.Value{}, err
			}
			return assignNative(out, native, t)
		}
	}

	if t.NumMethod() != 0 {
		return reflect.Value{}, fmt.Errorf("codec: expected a tagged %s, got %s", TypeName(t), describe(node))
	}
	// Plain JSON in an `any` position.
	return assignNative(out, plain(node), t)
}

func assignNative(out reflect.Value, native any, t reflect.Type) (reflect.Value, error) {
	if native == nil {
		return out, nil
	}
	v := reflect.ValueOf(native)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("codec: structural value %s is not a %s", v.Type(), TypeName(t))
	}
	out.Set(v)
	return out, nil
}

// plain turns a parsed node into ordinary Go values, numbers as float64.
func plain(node any) any {
	switch n := node.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = plain(item)
		}
		return out
	}
	return node
}

func unmarshalInto(node any, t reflect.Type) (reflect.Value, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := p.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil {
		return reflect.Value{}, fmt.Errorf("codec: %s: %w", t, err)
	}
	return p.Elem(), nil
}

func parseMapKey(k string, t reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) && t.Kind() != reflect.String {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(k)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		out.SetString(k)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(k, 10, 64)
		if err != nil || out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("codec: map key %q does not fit %s", k, t)
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(k, 10, 64)
		if err != nil || out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("codec: map key %q does not fit %s", k, t)
		}
		out.SetUint(u)
	default:
		return reflect.Value{}, fmt.Errorf("codec: unsupported map key type %s", t)
	}
	return out, nil
}

func mismatch(node any, t reflect.Type) error {
	return fmt.Errorf("codec: cannot decode %s into %s", describe(node), t)
}

func describe(node any) string {
	switch node.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", node)
}
