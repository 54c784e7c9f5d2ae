package codec

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/specialistvlad/burststate/internal/storeerrors"
)

const (
	typeKey  = "@type"
	valueKey = "value"
	anyKey   = "@any"
)

var (
	anyType             = reflect.TypeFor[any]()
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Codec is a composed, read-only serializer.
type Codec struct {
	byType map[reflect.Type]entry
	byName map[string]entry
	order  []reflect.Type
	bases  []reflect.Type
}

// NameOf returns the registered name of t.
func (c *Codec) NameOf(t reflect.Type) (string, bool) {
	e, ok := c.byType[t]
	return e.name, ok
}

// TypeOf returns the type registered under name.
func (c *Codec) TypeOf(name string) (reflect.Type, bool) {
	e, ok := c.byName[name]
	return e.typ, ok
}

// BaseOf returns the base a concrete type was registered under.
func (c *Codec) BaseOf(t reflect.Type) (reflect.Type, bool) {
	e, ok := c.byType[t]
	return e.base, ok
}

// Types lists every registered concrete type in registration order.
func (c *Codec) Types() []reflect.Type {
	return append([]reflect.Type(nil), c.order...)
}

// Encode serializes v using its dynamic type as the static type, so the
// top level is written without an envelope.
func (c *Codec) Encode(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	return c.EncodeAs(v, reflect.TypeOf(v))
}

// EncodeAs serializes v as if it sat in a position of type static. An
// interface static type produces a tagged envelope at the top level.
func (c *Codec) EncodeAs(v any, static reflect.Type) (string, error) {
	if static == nil {
		static = anyType
	}
	rv := reflect.New(static).Elem()
	if v != nil {
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(static) {
			return "", fmt.Errorf("codec: %s is not assignable to %s", val.Type(), TypeName(static))
		}
		rv.Set(val)
	}
	var buf bytes.Buffer
	if err := c.encode(&buf, rv, static); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Codec) encode(buf *bytes.Buffer, rv reflect.Value, static reflect.Type) error {
	if static.Kind() == reflect.Interface {
		return c.encodeInterface(buf, rv, static)
	}

	if static.Kind() == reflect.Pointer {
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if static.Implements(jsonMarshalerType) {
			return writeMarshaler(buf, rv)
		}
		return c.encode(buf, rv.Elem(), static.Elem())
	}

	if static.Implements(jsonMarshalerType) {
		return writeMarshaler(buf, rv)
	}
	if reflect.PointerTo(static).Implements(jsonMarshalerType) {
		return writeMarshaler(buf, addressable(rv))
	}
	if static.Kind() != reflect.String && static.Implements(textMarshalerType) {
		return writeText(buf, rv)
	}

	switch static.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("codec: unsupported float value %v", f)
		}
		bits := 64
		if static.Kind() == reflect.Float32 {
			bits = 32
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, bits))
	case reflect.String:
		return writeJSON(buf, rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if static.Elem().Kind() == reflect.Uint8 {
			return writeJSON(buf, rv.Bytes())
		}
		return c.encodeSequence(buf, rv, static.Elem())
	case reflect.Array:
		return c.encodeSequence(buf, rv, static.Elem())
	case reflect.Map:
		return c.encodeMap(buf, rv, static)
	case reflect.Struct:
		return c.encodeStruct(buf, rv, static)
	default:
		return fmt.Errorf("codec: unsupported kind %s for %s", static.Kind(), static)
	}
	return nil
}

func (c *Codec) encodeInterface(buf *bytes.Buffer, rv reflect.Value, static reflect.Type) error {
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	dyn := rv.Elem()
	e, registered := c.byType[dyn.Type()]
	if !registered {
		if static.NumMethod() == 0 {
			return c.encodeFallback(buf, dyn)
		}
		return &storeerrors.UnregisteredTypeError{Base: TypeName(static), Type: TypeName(dyn.Type())}
	}

	buf.WriteString(`{"` + typeKey + `":`)
	if err := writeJSON(buf, e.name); err != nil {
		return err
	}
	buf.WriteString(`,"` + valueKey + `":`)
	if err := c.encode(buf, dyn, dyn.Type()); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func (c *Codec) encodeSequence(buf *bytes.Buffer, rv reflect.Value, elem reflect.Type) error {
	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.encode(buf, rv.Index(i), elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func (c *Codec) encodeMap(buf *bytes.Buffer, rv reflect.Value, static reflect.Type) error {
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	type kv struct {
		key string
		val reflect.Value
	}
	pairs := make([]kv, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := mapKeyString(iter.Key())
		if err != nil {
			return err
		}
		pairs = append(pairs, kv{k, iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, p.key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := c.encode(buf, p.val, static.Elem()); err != nil {
			return fmt.Errorf("[%q]: %w", p.key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func (c *Codec) encodeStruct(buf *bytes.Buffer, rv reflect.Value, static reflect.Type) error {
	buf.WriteByte('{')
	first := true
	for _, f := range fieldsOf(static) {
		fv := rv.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeJSON(buf, f.name); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := c.encode(buf, fv, f.typ); err != nil {
			return fmt.Errorf(".%s: %w", f.name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func mapKeyString(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("codec: unsupported map key type %s", k.Type())
}

func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv.Addr()
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p
}

func writeMarshaler(buf *bytes.Buffer, rv reflect.Value) error {
	b, err := rv.Interface().(json.Marshaler).MarshalJSON()
	if err != nil {
		return err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, b); err != nil {
		return fmt.Errorf("codec: %s produced invalid JSON: %w", rv.Type(), err)
	}
	buf.Write(compact.Bytes())
	return nil
}

func writeText(buf *bytes.Buffer, rv reflect.Value) error {
	b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	return writeJSON(buf, string(b))
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
