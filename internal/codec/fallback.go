package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// encodeFallback writes an unregistered dynamic value held in an `any`
// position through its structural cty form.
func (c *Codec) encodeFallback(buf *bytes.Buffer, rv reflect.Value) error {
	val := toCty(rv)
	b, err := ctyjson.Marshal(val, cty.DynamicPseudoType)
	if err != nil {
		return fmt.Errorf("codec: structural encoding of %s: %w", rv.Type(), err)
	}
	buf.WriteString(`{"` + anyKey + `":`)
	buf.Write(b)
	buf.WriteByte('}')
	return nil
}

func decodeFallback(raw json.RawMessage) (any, error) {
	val, err := ctyjson.Unmarshal(raw, cty.DynamicPseudoType)
	if err != nil {
		return nil, fmt.Errorf("codec: structural decoding: %w", err)
	}
	return ctyToNative(val)
}

// toCty converts a Go value to cty. Numbers, strings, bools, sequences and
// string-keyed maps keep their structure; anything else becomes its fmt
// text.
func toCty(rv reflect.Value) cty.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() {
			return cty.NullVal(cty.String)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return cty.NullVal(cty.String)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return cty.BoolVal(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cty.NumberIntVal(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cty.NumberUIntVal(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return cty.StringVal(fmt.Sprint(f))
		}
		return cty.NumberFloatVal(f)
	case reflect.String:
		return cty.StringVal(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return cty.NullVal(cty.String)
		}
		if rv.Len() == 0 {
			return cty.EmptyTupleVal
		}
		elems := make([]cty.Value, rv.Len())
		for i := range elems {
			elems[i] = toCty(rv.Index(i))
		}
		return cty.TupleVal(elems)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return cty.NullVal(cty.String)
		}
		if rv.Len() == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			attrs[iter.Key().String()] = toCty(iter.Value())
		}
		return cty.ObjectVal(attrs)
	}
	return cty.StringVal(fmt.Sprint(rv.Interface()))
}

// ctyToNative converts a cty value back to plain Go values. Numbers become
// float64.
func ctyToNative(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		}
		return nil, fmt.Errorf("codec: unsupported primitive type %s", ty.FriendlyName())
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			native, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = native
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			native, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	}
	return nil, fmt.Errorf("codec: unsupported cty type %s", ty.FriendlyName())
}
