package codec

import (
	"reflect"
	"strings"
	"sync"
)

type field struct {
	name      string
	index     []int
	typ       reflect.Type
	omitEmpty bool
}

var fieldCache sync.Map // map[reflect.Type][]field

// fieldsOf lists the serialized fields of a struct type following the
// encoding/json tag conventions. Untagged embedded structs are flattened;
// a name already taken by a shallower field wins.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	fields := collectFields(t, nil, map[string]bool{})
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]field)
}

func collectFields(t reflect.Type, prefix []int, seen map[string]bool) []field {
	var out []field
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			embedded = append(embedded, sf)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		index := append(append([]int(nil), prefix...), i)
		out = append(out, field{
			name:      name,
			index:     index,
			typ:       sf.Type,
			omitEmpty: strings.Contains(opts, "omitempty"),
		})
	}

	for _, sf := range embedded {
		index := append(append([]int(nil), prefix...), sf.Index...)
		out = append(out, collectFields(sf.Type, index, seen)...)
	}
	return out
}
