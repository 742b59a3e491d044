package interp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sort"
	"strings"
)

func jsonModule() *Module {
	return newModule("json", map[string]Value{
		"JSONDecodeError": JSONDecodeErrorType,
	}, map[string]BuiltinFunc{
		"loads": jsonLoads,
		"dumps": walksArgs(jsonDumps),
	})
}

func jsonLoads(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("loads", args, kwargs, []string{"s"}, 1)
	if err != nil {
		return nil, err
	}
	s, ok := a[0].(Str)
	if !ok {
		return nil, excf(TypeErrorType, "the JSON object must be str, bytes or bytearray, not %s", typeName(a[0]))
	}
	dec := json.NewDecoder(strings.NewReader(string(s)))
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, excf(JSONDecodeErrorType, "Extra data: char %d", dec.InputOffset())
	}
	return v, nil
}

// decodeJSON reads one value from the token stream, keeping object key order
func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, jsonDecodeError(err, dec)
	}
	switch t := tok.(type) {
	case nil:
		return None, nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return Int(n), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil && !strings.ContainsAny(string(t), ".eE") {
			return nil, overflow()
		}
		return Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				v, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonDecodeError(err, dec)
			}
			return newList(elems), nil
		case '{':
			d := NewDict()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, jsonDecodeError(err, dec)
				}
				key, ok := kt.(string)
				if !ok {
					return nil, excf(JSONDecodeErrorType, "Expecting property name enclosed in double quotes: char %d", dec.InputOffset())
				}
				v, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				d.SetStr(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonDecodeError(err, dec)
			}
			return d, nil
		}
	}
	return nil, excf(JSONDecodeErrorType, "Expecting value: char %d", dec.InputOffset())
}

func jsonDecodeError(err error, dec *json.Decoder) error {
	var syn *json.SyntaxError
	switch {
	case errors.As(err, &syn):
		return excf(JSONDecodeErrorType, "%s: char %d", syn.Error(), syn.Offset)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return excf(JSONDecodeErrorType, "Expecting value: char %d", dec.InputOffset())
	}
	return excf(JSONDecodeErrorType, "%v", err)
}

type jsonEncoder struct {
	indent    string
	pretty    bool
	itemSep   string
	keySep    string
	sortKeys  bool
	ascii     bool
	seen      map[any]bool
	maxOutput int
}

func jsonDumps(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("dumps", args, kwargs,
		[]string{"obj", "indent", "sort_keys", "separators", "ensure_ascii", "default"}, 1)
	if err != nil {
		return nil, err
	}
	enc := &jsonEncoder{
		itemSep:   ", ",
		keySep:    ": ",
		ascii:     true,
		seen:      map[any]bool{},
		maxOutput: maxSequence,
	}
	if a[1] != nil && !isNone(a[1]) {
		enc.pretty = true
		enc.itemSep = ","
		switch ind := a[1].(type) {
		case Str:
			enc.indent = string(ind)
		default:
			n, err := wantInt("dumps", ind)
			if err != nil {
				return nil, err
			}
			enc.indent = strings.Repeat(" ", int(max(n, 0)))
		}
	}
	if a[2] != nil {
		enc.sortKeys = truthy(a[2])
	}
	if a[3] != nil && !isNone(a[3]) {
		seps, err := in.toSlice(a[3])
		if err != nil {
			return nil, err
		}
		if len(seps) != 2 {
			return nil, excf(ValueErrorType, "separators must be a (item_separator, key_separator) pair")
		}
		if enc.itemSep, err = wantStr("dumps", seps[0]); err != nil {
			return nil, err
		}
		if enc.keySep, err = wantStr("dumps", seps[1]); err != nil {
			return nil, err
		}
	}
	if a[4] != nil {
		enc.ascii = truthy(a[4])
	}
	if a[5] != nil && !isNone(a[5]) {
		return nil, unsupported("json.dumps(default=...) is not supported")
	}

	var b bytes.Buffer
	if err := enc.encode(&b, a[0], 0); err != nil {
		return nil, err
	}
	return Str(b.String()), nil
}

func (e *jsonEncoder) newline(b *bytes.Buffer, depth int) {
	if !e.pretty {
		return
	}
	b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		b.WriteString(e.indent)
	}
}

func (e *jsonEncoder) encode(b *bytes.Buffer, v Value, depth int) error {
	if depth > maxValueDepth {
		return errValueTooDeep()
	}
	if b.Len() > e.maxOutput {
		return checkSize(int64(b.Len()))
	}
	switch x := v.(type) {
	case NoneType:
		b.WriteString("null")
	case Bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Int:
		b.WriteString(x.String())
	case Float:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			b.WriteString("NaN")
		case math.IsInf(f, 1):
			b.WriteString("Infinity")
		case math.IsInf(f, -1):
			b.WriteString("-Infinity")
		default:
			b.WriteString(floatRepr(f))
		}
	case Str:
		e.writeString(b, string(x))
	case *List, Tuple:
		var elems []Value
		if l, ok := x.(*List); ok {
			if e.seen[l] {
				return excf(ValueErrorType, "Circular reference detected")
			}
			e.seen[l] = true
			defer delete(e.seen, l)
			elems = l.Elems
		} else {
			elems = x.(Tuple)
		}
		b.WriteByte('[')
		for i, elem := range elems {
			if i > 0 {
				b.WriteString(e.itemSep)
			}
			e.newline(b, depth+1)
			if err := e.encode(b, elem, depth+1); err != nil {
				return err
			}
		}
		if len(elems) > 0 {
			e.newline(b, depth)
		}
		b.WriteByte(']')
	case *Dict:
		if e.seen[x] {
			return excf(ValueErrorType, "Circular reference detected")
		}
		e.seen[x] = true
		defer delete(e.seen, x)

		type entry struct {
			key string
			val Value
		}
		entries := make([]entry, 0, x.Len())
		for i, k := range x.keys {
			ks, err := jsonKey(k)
			if err != nil {
				return err
			}
			entries = append(entries, entry{ks, x.vals[i]})
		}
		if e.sortKeys {
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		}
		b.WriteByte('{')
		for i, ent := range entries {
			if i > 0 {
				b.WriteString(e.itemSep)
			}
			e.newline(b, depth+1)
			e.writeString(b, ent.key)
			b.WriteString(e.keySep)
			if err := e.encode(b, ent.val, depth+1); err != nil {
				return err
			}
		}
		if len(entries) > 0 {
			e.newline(b, depth)
		}
		b.WriteByte('}')
	default:
		return excf(TypeErrorType, "Object of type %s is not JSON serializable", typeName(v))
	}
	return nil
}

func jsonKey(k Value) (string, error) {
	switch x := k.(type) {
	case Str:
		return string(x), nil
	case NoneType:
		return "null", nil
	case Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case Int:
		return x.String(), nil
	case Float:
		return floatRepr(float64(x)), nil
	}
	return "", excf(TypeErrorType, "keys must be str, int, float, bool or None, not %s", typeName(k))
}

func (e *jsonEncoder) writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0x7e && e.ascii:
				if r > 0xffff {
					r1, r2 := utf16Surrogates(r)
					fmt.Fprintf(b, `\u%04x\u%04x`, r1, r2)
				} else {
					fmt.Fprintf(b, `\u%04x`, r)
				}
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func utf16Surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}
