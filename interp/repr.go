package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

func (i Int) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func pointerID(p any) string {
	return fmt.Sprintf("%p", p)
}

// repr renders v the way the language's repr() does
func repr(v Value) string {
	var b strings.Builder
	writeRepr(&b, v, &reprState{seen: map[any]bool{}})
	return b.String()
}

// str renders v the way str() does
func str(v Value) string {
	switch x := v.(type) {
	case Str:
		return string(x)
	case *Exception:
		return x.Message()
	}
	return repr(v)
}

// reprState tracks the containers on the current path and the nesting depth
type reprState struct {
	seen  map[any]bool
	depth int
}

func writeRepr(b *strings.Builder, v Value, st *reprState) {
	st.depth++
	defer func() { st.depth-- }()
	checkValueDepth(st.depth)
	switch x := v.(type) {
	case NoneType:
		b.WriteString("None")
	case Bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case Int:
		b.WriteString(x.String())
	case Float:
		b.WriteString(floatRepr(float64(x)))
	case Str:
		b.WriteString(strRepr(string(x)))
	case Tuple:
		b.WriteByte('(')
		for i, elt := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, elt, st)
		}
		if len(x) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *List:
		if st.seen[x] {
			b.WriteString("[...]")
			return
		}
		st.seen[x] = true
		defer delete(st.seen, x)
		b.WriteByte('[')
		for i, elt := range x.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, elt, st)
		}
		b.WriteByte(']')
	case *Dict:
		if st.seen[x] {
			b.WriteString("{...}")
			return
		}
		st.seen[x] = true
		defer delete(st.seen, x)
		writeDictRepr(b, x, st)
	case *Set:
		if x.Len() == 0 {
			b.WriteString("set()")
			return
		}
		b.WriteByte('{')
		for i, elt := range x.items {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, elt, st)
		}
		b.WriteByte('}')
	case *Range:
		if x.Step == 1 {
			fmt.Fprintf(b, "range(%d, %d)", x.Start, x.Stop)
		} else {
			fmt.Fprintf(b, "range(%d, %d, %d)", x.Start, x.Stop, x.Step)
		}
	case *Function:
		b.WriteString(x.String())
	case *Builtin:
		if x.Recv != nil {
			fmt.Fprintf(b, "<built-in method %s of %s object>", x.Name, typeName(x.Recv))
		} else {
			fmt.Fprintf(b, "<built-in function %s>", x.Name)
		}
	case *Module:
		fmt.Fprintf(b, "<module '%s'>", x.Name)
	case *Type:
		fmt.Fprintf(b, "<class '%s'>", x.Name)
	case *Exception:
		b.WriteString(x.Class.Name)
		b.WriteByte('(')
		for i, arg := range x.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, arg, st)
		}
		b.WriteByte(')')
	case *Object:
		b.WriteString(x.Repr)
	default:
		fmt.Fprintf(b, "<%s object>", typeName(v))
	}
}

func writeDictRepr(b *strings.Builder, d *Dict, st *reprState) {
	switch d.class {
	case CounterType:
		if d.Len() == 0 {
			b.WriteString("Counter()")
			return
		}
		b.WriteString("Counter(")
		defer b.WriteByte(')')
	case DefaultDictType:
		b.WriteString("defaultdict(")
		if d.factory != nil {
			writeRepr(b, d.factory, st)
		} else {
			b.WriteString("None")
		}
		b.WriteString(", ")
		defer b.WriteByte(')')
	}
	b.WriteByte('{')
	for i := range d.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		writeRepr(b, d.keys[i], st)
		b.WriteString(": ")
		writeRepr(b, d.vals[i], st)
	}
	b.WriteByte('}')
}

// floatRepr produces the shortest round-tripping representation, switching
// to exponent notation outside [1e-4, 1e16).
func floatRepr(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	exp := strconv.FormatFloat(f, 'e', -1, 64)
	mant, e, _ := strings.Cut(exp, "e")
	n, _ := strconv.Atoi(e)
	if n >= -4 && n < 16 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".") {
			s += ".0"
		}
		return s
	}
	sign := "+"
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%se%s%02d", mant, sign, n)
}

// strRepr quotes s, preferring single quotes
func strRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r > 0x7f && !unicode.IsPrint(r):
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
