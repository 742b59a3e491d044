package interp

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// builtins are the names resolvable without an import
	builtins map[string]Value

	// constructors back calls of the builtin type objects
	constructors map[*Type]BuiltinFunc
)

func init() {
	builtins = map[string]Value{
		"int":      IntType,
		"float":    FloatType,
		"str":      StrType,
		"bool":     BoolType,
		"list":     ListType,
		"tuple":    TupleType,
		"dict":     DictType,
		"set":      SetType,
		"range":    RangeType,
		"type":     TypeType,
		"NoneType": NoneTypeType,
	}
	for _, t := range exceptionTypes {
		builtins[t.Name] = t
	}
	for name, fn := range map[string]BuiltinFunc{
		"print":        walksArgs(builtinPrint),
		"len":          builtinLen,
		"abs":          builtinAbs,
		"min":          builtinMinMax("min", -1),
		"max":          builtinMinMax("max", 1),
		"sum":          builtinSum,
		"round":        builtinRound,
		"sorted":       builtinSorted,
		"reversed":     builtinReversed,
		"enumerate":    builtinEnumerate,
		"zip":          builtinZip,
		"map":          builtinMap,
		"filter":       builtinFilter,
		"any":          builtinAnyAll(true),
		"all":          builtinAnyAll(false),
		"isinstance":   builtinIsInstance,
		"issubclass":   builtinIsSubclass,
		"callable":     builtinCallable,
		"repr":         walksArgs(builtinRepr),
		"ascii":        walksArgs(builtinRepr),
		"format":       walksArgs(builtinFormat),
		"divmod":       builtinDivmod,
		"pow":          builtinPow,
		"chr":          builtinChr,
		"ord":          builtinOrd,
		"hex":          builtinRadix("hex", 16, "0x"),
		"oct":          builtinRadix("oct", 8, "0o"),
		"bin":          builtinRadix("bin", 2, "0b"),
		"hash":         walksArgs(builtinHash),
		"final_answer": walksArgs(builtinFinalAnswer),
	} {
		builtins[name] = newBuiltin(name, fn)
	}

	constructors = map[*Type]BuiltinFunc{
		IntType:         newInt,
		FloatType:       newFloat,
		StrType:         walksArgs(newStr),
		BoolType:        newBool,
		ListType:        newListValue,
		TupleType:       newTuple,
		DictType:        newDictValue,
		SetType:         newSetValue,
		RangeType:       newRange,
		TypeType:        typeOf,
		CounterType:     newCounter,
		DefaultDictType: newDefaultDict,
	}
}

// print and final_answer

func builtinPrint(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	sep, end := " ", "\n"
	for _, kw := range kwargs {
		switch kw.Name {
		case "sep", "end":
			s := ""
			if !isNone(kw.Value) {
				v, ok := kw.Value.(Str)
				if !ok {
					return nil, excf(TypeErrorType, "%s must be None or a string, not %s", kw.Name, typeName(kw.Value))
				}
				s = string(v)
			} else if kw.Name == "sep" {
				s = " "
			} else {
				s = "\n"
			}
			if kw.Name == "sep" {
				sep = s
			} else {
				end = s
			}
		case "flush":
		case "file":
			if !isNone(kw.Value) {
				return nil, unsupported("print(file=...) is not supported")
			}
		default:
			return nil, excf(TypeErrorType, "'%s' is an invalid keyword argument for print()", kw.Name)
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = str(a)
	}
	in.write(strings.Join(parts, sep) + end)
	return None, nil
}

func builtinFinalAnswer(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("final_answer", args, kwargs, []string{"answer"}, 1)
	if err != nil {
		return nil, err
	}
	return nil, &finalAnswer{value: a[0]}
}

// sequences and iteration

func builtinLen(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("len", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case Str:
		return Int(utf8.RuneCountInString(string(x))), nil
	case *List:
		return Int(len(x.Elems)), nil
	case Tuple:
		return Int(len(x)), nil
	case *Dict:
		return Int(x.Len()), nil
	case *Set:
		return Int(x.Len()), nil
	case *Range:
		return Int(x.Len()), nil
	}
	return nil, excf(TypeErrorType, "object of type '%s' has no len()", typeName(args[0]))
}

func builtinSorted(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) != 1 {
		return nil, excf(TypeErrorType, "sorted expected 1 argument, got %d", len(args))
	}
	a, err := bindArgs("sorted", nil, kwargs, []string{"key", "reverse"}, 0)
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	sorted, err := in.sortValues(items, orNone(a[0]), a[1] != nil && truthy(a[1]))
	if err != nil {
		return nil, err
	}
	return newList(sorted), nil
}

func builtinReversed(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("reversed", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	if _, ok := args[0].(*Set); ok {
		return nil, excf(TypeErrorType, "'set' object is not reversible")
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return newList(items), nil
}

func builtinEnumerate(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("enumerate", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	n, err := optInt("enumerate", a[1], 0)
	if err != nil {
		return nil, err
	}
	var out []Value
	err = in.iterate(a[0], func(item Value) error {
		out = append(out, Tuple{Int(n), item})
		n++
		return checkSize(int64(len(out)))
	})
	if err != nil {
		return nil, err
	}
	return newList(out), nil
}

func builtinZip(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	strict := false
	for _, kw := range kwargs {
		if kw.Name != "strict" {
			return nil, excf(TypeErrorType, "zip() got an unexpected keyword argument '%s'", kw.Name)
		}
		strict = truthy(kw.Value)
	}
	if len(args) == 0 {
		return newList(nil), nil
	}
	cols := make([][]Value, len(args))
	shortest := -1
	for i, a := range args {
		items, err := in.toSlice(a)
		if err != nil {
			return nil, err
		}
		cols[i] = items
		if shortest < 0 || len(items) < shortest {
			if strict && shortest >= 0 {
				return nil, excf(ValueErrorType, "zip() argument %d is shorter than argument 1", i+1)
			}
			shortest = len(items)
		} else if strict && len(items) != shortest {
			return nil, excf(ValueErrorType, "zip() argument %d is longer than argument 1", i+1)
		}
	}
	out := make([]Value, shortest)
	for r := 0; r < shortest; r++ {
		row := make(Tuple, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		out[r] = row
	}
	return newList(out), nil
}

func builtinMap(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("map", args, kwargs, 2, -1); err != nil {
		return nil, err
	}
	zipped, err := builtinZip(in, args[1:], nil)
	if err != nil {
		return nil, err
	}
	rows := zipped.(*List).Elems
	out := make([]Value, len(rows))
	for i, row := range rows {
		v, err := in.call(args[0], row.(Tuple), nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return newList(out), nil
}

func builtinFilter(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("filter", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	var out []Value
	err := in.iterate(args[1], func(item Value) error {
		keep := truthy(item)
		if !isNone(args[0]) {
			var err error
			if keep, err = in.callPredicate(args[0], item); err != nil {
				return err
			}
		}
		if keep {
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newList(out), nil
}

func builtinAnyAll(isAny bool) BuiltinFunc {
	name := "all"
	if isAny {
		name = "any"
	}
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		found := !isAny
		err := in.iterate(args[0], func(item Value) error {
			if truthy(item) == isAny {
				found = isAny
				return errLoopExit
			}
			return nil
		})
		if err != nil && !isLoopExit(err) {
			return nil, err
		}
		return Bool(found), nil
	}
}

func builtinMinMax(name string, want int) BuiltinFunc {
	op := "<"
	if want > 0 {
		op = ">"
	}
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		var key, def Value
		for _, kw := range kwargs {
			switch kw.Name {
			case "key":
				key = kw.Value
			case "default":
				def = kw.Value
			default:
				return nil, excf(TypeErrorType, "%s() got an unexpected keyword argument '%s'", name, kw.Name)
			}
		}

		var items []Value
		switch len(args) {
		case 0:
			return nil, excf(TypeErrorType, "%s expected at least 1 argument, got 0", name)
		case 1:
			var err error
			if items, err = in.toSlice(args[0]); err != nil {
				return nil, err
			}
		default:
			if def != nil {
				return nil, excf(TypeErrorType, "Cannot specify a default for %s() with multiple positional arguments", name)
			}
			items = args
		}
		if len(items) == 0 {
			if def != nil {
				return def, nil
			}
			return nil, excf(ValueErrorType, "%s() arg is an empty sequence", name)
		}

		best, bestKey := items[0], items[0]
		if key != nil && !isNone(key) {
			k, err := in.call(key, []Value{best}, nil)
			if err != nil {
				return nil, err
			}
			bestKey = k
		}
		for _, item := range items[1:] {
			k := item
			if key != nil && !isNone(key) {
				var err error
				if k, err = in.call(key, []Value{item}, nil); err != nil {
					return nil, err
				}
			}
			if err := in.chargeWalk(k, bestKey); err != nil {
				return nil, err
			}
			c, err := order(k, bestKey, op)
			if err != nil {
				return nil, err
			}
			if c == want {
				best, bestKey = item, k
			}
		}
		return best, nil
	}
}

func builtinSum(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("sum", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	var total Value = Int(0)
	if a[1] != nil {
		total = a[1]
	}
	if _, ok := total.(Str); ok {
		return nil, excf(TypeErrorType, "sum() can't sum strings [use ''.join(seq) instead]")
	}
	err = in.iterate(a[0], func(item Value) error {
		if l, ok := total.(*List); ok {
			total = newList(append([]Value(nil), l.Elems...))
		}
		v, err := binaryOp("+", total, item)
		if err != nil {
			return err
		}
		total = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// numbers

func builtinAbs(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("abs", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case Int, Bool:
		n, _ := asInt(x)
		if n < 0 {
			return unaryOp("-", Int(n))
		}
		return Int(n), nil
	case Float:
		return Float(math.Abs(float64(x))), nil
	}
	return nil, excf(TypeErrorType, "bad operand type for abs(): '%s'", typeName(args[0]))
}

func builtinRound(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("round", args, kwargs, []string{"number", "ndigits"}, 1)
	if err != nil {
		return nil, err
	}
	if n, ok := asInt(a[0]); ok {
		if a[1] == nil || isNone(a[1]) {
			return Int(n), nil
		}
		digits, err := wantInt("round", a[1])
		if err != nil {
			return nil, err
		}
		return roundInt(n, digits), nil
	}
	f, ok := a[0].(Float)
	if !ok {
		return nil, excf(TypeErrorType, "type %s doesn't define __round__ method", typeName(a[0]))
	}
	x := float64(f)
	if a[1] == nil || isNone(a[1]) {
		return floatToInt(math.RoundToEven(x))
	}
	digits, err := wantInt("round", a[1])
	if err != nil {
		return nil, err
	}
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return f, nil
	}
	if digits >= 0 {
		if digits > 17 {
			return f, nil
		}
		r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', int(digits), 64), 64)
		if err != nil {
			return nil, excf(ValueErrorType, "%v", err)
		}
		return Float(r), nil
	}
	if digits < -22 {
		return Float(math.Copysign(0, x)), nil
	}
	p := math.Pow(10, float64(-digits))
	return Float(math.RoundToEven(x/p) * p), nil
}

func roundInt(n, digits int64) Value {
	if digits >= 0 {
		return Int(n)
	}
	if digits < -18 {
		return Int(0)
	}
	p := int64(1)
	for i := int64(0); i < -digits; i++ {
		p *= 10
	}
	q := n / p
	r := n % p
	if r < 0 {
		r += p
		q--
	}
	switch {
	case 2*r > p, 2*r == p && q%2 != 0:
		q++
	}
	return Int(q * p)
}

func floatToInt(f float64) (Value, error) {
	switch {
	case math.IsInf(f, 0):
		return nil, excf(OverflowErrorType, "cannot convert float infinity to integer")
	case math.IsNaN(f):
		return nil, excf(ValueErrorType, "cannot convert float NaN to integer")
	case f >= 9.223372036854775807e18 || f < -9.223372036854775808e18:
		return nil, overflow()
	}
	return Int(int64(f)), nil
}

func builtinDivmod(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("divmod", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	q, err := binaryOp("//", args[0], args[1])
	if err != nil {
		return nil, err
	}
	r, err := binaryOp("%", args[0], args[1])
	if err != nil {
		return nil, err
	}
	return Tuple{q, r}, nil
}

func builtinPow(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("pow", args, kwargs, []string{"base", "exp", "mod"}, 2)
	if err != nil {
		return nil, err
	}
	if a[2] == nil || isNone(a[2]) {
		return binaryOp("**", a[0], a[1])
	}
	base, ok1 := asInt(a[0])
	exp, ok2 := asInt(a[1])
	mod, ok3 := asInt(a[2])
	if !ok1 || !ok2 || !ok3 {
		return nil, excf(TypeErrorType, "pow() 3rd argument not allowed unless all arguments are integers")
	}
	if mod == 0 {
		return nil, excf(ValueErrorType, "pow() 3rd argument cannot be 0")
	}
	if exp < 0 {
		return nil, unsupported("pow() with a negative exponent and a modulus is not supported")
	}
	m := mod
	if m < 0 {
		m = -m
	}
	result := uint64(1) % uint64(m)
	b := uint64(((base % m) + m) % m)
	for e := exp; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = mulMod(result, b, uint64(m))
		}
		b = mulMod(b, b, uint64(m))
	}
	r := int64(result)
	if mod < 0 && r != 0 {
		r += mod
	}
	return Int(r), nil
}

func mulMod(a, b, m uint64) uint64 {
	var r uint64
	a %= m
	for b > 0 {
		if b&1 == 1 {
			r = (r + a) % m
		}
		a = (a << 1) % m
		b >>= 1
	}
	return r
}

func builtinChr(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("chr", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	n, err := wantInt("chr", args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 || n > utf8.MaxRune {
		return nil, excf(ValueErrorType, "chr() arg not in range(0x110000)")
	}
	return Str(string(rune(n))), nil
}

func builtinOrd(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("ord", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(Str)
	if !ok {
		return nil, excf(TypeErrorType, "ord() expected string of length 1, but %s found", typeName(args[0]))
	}
	if n := utf8.RuneCountInString(string(s)); n != 1 {
		return nil, excf(TypeErrorType, "ord() expected a character, but string of length %d found", n)
	}
	r, _ := utf8.DecodeRuneInString(string(s))
	return Int(r), nil
}

func builtinRadix(name string, base int, prefix string) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		n, err := wantInt(name, args[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return Str("-" + prefix + strconv.FormatUint(uint64(-n), base)), nil
		}
		return Str(prefix + strconv.FormatInt(n, base)), nil
	}
}

// introspection

func builtinIsInstance(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("isinstance", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	ok, err := matchesClass("isinstance", args[0].Type(), args[1])
	return Bool(ok), err
}

func builtinIsSubclass(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("issubclass", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	t, ok := args[0].(*Type)
	if !ok {
		return nil, excf(TypeErrorType, "issubclass() arg 1 must be a class")
	}
	match, err := matchesClass("issubclass", t, args[1])
	return Bool(match), err
}

func matchesClass(fn string, t *Type, spec Value) (bool, error) {
	switch c := spec.(type) {
	case *Type:
		return t.IsSubclass(c), nil
	case Tuple:
		for _, elt := range c {
			ok, err := matchesClass(fn, t, elt)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, excf(TypeErrorType, "%s() arg 2 must be a type or tuple of types", fn)
}

func builtinCallable(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("callable", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	switch args[0].(type) {
	case *Function, *Builtin, *Type:
		return Bool(true), nil
	}
	return Bool(false), nil
}

func builtinRepr(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("repr", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	return Str(repr(args[0])), nil
}

func builtinFormat(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("format", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	spec := ""
	if len(args) == 2 {
		var err error
		if spec, err = wantStr("format", args[1]); err != nil {
			return nil, err
		}
	}
	s, err := formatValue(args[0], spec)
	if err != nil {
		return nil, err
	}
	return Str(s), nil
}

func builtinHash(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("hash", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	if n, ok := asInt(args[0]); ok {
		return Int(n), nil
	}
	k, err := hashKey(args[0])
	if err != nil {
		return nil, err
	}
	var h int64 = 1469598103934665603
	for _, c := range []byte(keyString(k)) {
		h ^= int64(c)
		h *= 1099511628211
	}
	return Int(h), nil
}

// type constructors

func typeOf(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) == 3 {
		return nil, unsupported("dynamic class creation is not supported")
	}
	if err := exactArgs("type", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	return args[0].Type(), nil
}

func newInt(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("int", args, kwargs, []string{"x", "base"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Int(0), nil
	}
	if a[1] != nil {
		s, ok := a[0].(Str)
		if !ok {
			return nil, excf(TypeErrorType, "int() can't convert non-string with explicit base")
		}
		base, err := wantInt("int", a[1])
		if err != nil {
			return nil, err
		}
		return parseInt(string(s), int(base))
	}
	switch x := a[0].(type) {
	case Int:
		return x, nil
	case Bool:
		n, _ := asInt(x)
		return Int(n), nil
	case Float:
		return floatToInt(math.Trunc(float64(x)))
	case Str:
		return parseInt(string(x), 10)
	}
	return nil, excf(TypeErrorType, "int() argument must be a string, a bytes-like object or a real number, not '%s'", typeName(a[0]))
}

func parseInt(s string, base int) (Value, error) {
	if base != 0 && (base < 2 || base > 36) {
		return nil, excf(ValueErrorType, "int() base must be >= 2 and <= 36, or 0")
	}
	invalid := func() error {
		return excf(ValueErrorType, "invalid literal for int() with base %d: %s", base, strRepr(s))
	}
	t := strings.TrimSpace(s)
	neg := false
	if t != "" && (t[0] == '+' || t[0] == '-') {
		neg = t[0] == '-'
		t = t[1:]
	}
	lower := strings.ToLower(t)
	for _, p := range []struct {
		prefix string
		base   int
	}{{"0x", 16}, {"0o", 8}, {"0b", 2}} {
		if strings.HasPrefix(lower, p.prefix) && (base == 0 || base == p.base) {
			t, base = t[2:], p.base
			break
		}
	}
	if base == 0 {
		if len(t) > 1 && strings.Trim(t, "0_") != "" && t[0] == '0' {
			return nil, invalid()
		}
		base = 10
	}
	if t == "" || strings.HasPrefix(t, "_") || strings.HasSuffix(t, "_") || strings.Contains(t, "__") {
		return nil, invalid()
	}
	t = strings.ReplaceAll(t, "_", "")
	u, err := strconv.ParseUint(t, base, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return nil, overflow()
		}
		return nil, invalid()
	}
	if neg {
		if u > 1<<63 {
			return nil, overflow()
		}
		return Int(-int64(u)), nil
	}
	if u > math.MaxInt64 {
		return nil, overflow()
	}
	return Int(int64(u)), nil
}

func newFloat(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("float", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Float(0), nil
	}
	switch x := args[0].(type) {
	case Float:
		return x, nil
	case Int, Bool:
		f, _ := asFloat(x)
		return Float(f), nil
	case Str:
		t := strings.ToLower(strings.TrimSpace(string(x)))
		switch strings.TrimLeft(t, "+-") {
		case "inf", "infinity":
			if strings.HasPrefix(t, "-") {
				return Float(math.Inf(-1)), nil
			}
			return Float(math.Inf(1)), nil
		case "nan":
			return Float(math.NaN()), nil
		}
		if strings.ContainsAny(t, "xp") || strings.Contains(t, "__") {
			return nil, excf(ValueErrorType, "could not convert string to float: %s", strRepr(string(x)))
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return Float(f), nil
			}
			return nil, excf(ValueErrorType, "could not convert string to float: %s", strRepr(string(x)))
		}
		return Float(f), nil
	}
	return nil, excf(TypeErrorType, "float() argument must be a string or a real number, not '%s'", typeName(args[0]))
}

func newStr(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("str", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Str(""), nil
	}
	return Str(str(args[0])), nil
}

func newBool(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("bool", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Bool(false), nil
	}
	return Bool(truthy(args[0])), nil
}

func newListValue(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("list", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return newList(nil), nil
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	return newList(items), nil
}

func newTuple(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("tuple", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Tuple{}, nil
	}
	if t, ok := args[0].(Tuple); ok {
		return t, nil
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	return Tuple(items), nil
}

func newDictValue(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) > 1 {
		return nil, excf(TypeErrorType, "dict expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	if len(args) == 1 {
		if err := in.mergeInto(d, args[0]); err != nil {
			return nil, err
		}
	}
	for _, kw := range kwargs {
		d.SetStr(kw.Name, kw.Value)
	}
	return d, nil
}

func newSetValue(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("set", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return NewSet(), nil
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	return setFrom(items)
}

func newRange(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("range", args, kwargs, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int64, len(args))
	for i, a := range args {
		n, ok := asInt(a)
		if !ok {
			return nil, excf(TypeErrorType, "'%s' object cannot be interpreted as an integer", typeName(a))
		}
		bounds[i] = n
	}
	r := &Range{Step: 1}
	switch len(bounds) {
	case 1:
		r.Stop = bounds[0]
	case 2:
		r.Start, r.Stop = bounds[0], bounds[1]
	default:
		r.Start, r.Stop, r.Step = bounds[0], bounds[1], bounds[2]
		if r.Step == 0 {
			return nil, excf(ValueErrorType, "range() arg 3 must not be zero")
		}
	}
	return r, nil
}

func newCounter(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) > 1 {
		return nil, excf(TypeErrorType, "expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	d.class = CounterType
	if _, err := counterUpdate(1)(in, d, args, kwargs); err != nil {
		return nil, err
	}
	return d, nil
}

func newDefaultDict(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	d := NewDict()
	d.class = DefaultDictType
	if len(args) > 0 {
		if !isNone(args[0]) {
			switch args[0].(type) {
			case *Function, *Builtin, *Type:
			default:
				return nil, excf(TypeErrorType, "first argument must be callable or None")
			}
			d.factory = args[0]
		}
		args = args[1:]
	}
	if len(args) > 1 {
		return nil, excf(TypeErrorType, "defaultdict expected at most 2 arguments, got %d", len(args)+1)
	}
	if len(args) == 1 {
		if err := in.mergeInto(d, args[0]); err != nil {
			return nil, err
		}
	}
	for _, kw := range kwargs {
		d.SetStr(kw.Name, kw.Value)
	}
	return d, nil
}
