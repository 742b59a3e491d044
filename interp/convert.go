package interp

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// FromGo converts a host value into an evaluator value. Supported inputs
// are nil, booleans, integers, floats, strings, json.Number, slices, arrays
// and maps with string or integer keys. Maps are bound in sorted key order.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return None, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return Str(x), nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case json.Number:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return Int(n), nil
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", x)
		}
		return Float(f), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Str(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return None, nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return newList(nil), nil
		}
		elems := make([]Value, rv.Len())
		for i := range elems {
			e, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = e
		}
		return newList(elems), nil
	case reflect.Map:
		return mapFromGo(rv)
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

func mapFromGo(rv reflect.Value) (Value, error) {
	type entry struct {
		key Value
		val reflect.Value
		ord string
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := FromGo(iter.Key().Interface())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		switch k.(type) {
		case Str, Int, Bool, Float, NoneType:
		default:
			return nil, fmt.Errorf("unsupported map key type %s", iter.Key().Type())
		}
		entries = append(entries, entry{key: k, val: iter.Value(), ord: repr(k)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ord < entries[j].ord })

	d := NewDict()
	for _, e := range entries {
		v, err := FromGo(e.val.Interface())
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", e.ord, err)
		}
		if err := d.Set(e.key, v); err != nil {
			return nil, err
		}
	}
	return d, nil
}
