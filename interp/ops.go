package interp

import (
	"math"
	"strings"

	"github.com/isdmx/safebox/syntax"
)

func unsupportedOperands(op string, a, b Value) *Exception {
	return excf(TypeErrorType, "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

func overflow() *Exception {
	return excf(OverflowErrorType, "integer overflow")
}

func addInt(a, b int64) (Value, error) {
	c := a + b
	if (c > a) != (b > 0) {
		return nil, overflow()
	}
	return Int(c), nil
}

func subInt(a, b int64) (Value, error) {
	c := a - b
	if (c < a) != (b > 0) {
		return nil, overflow()
	}
	return Int(c), nil
}

func mulInt(a, b int64) (Value, error) {
	if a == 0 || b == 0 {
		return Int(0), nil
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return nil, overflow()
	}
	return Int(c), nil
}

func powInt(base, exp int64) (Value, error) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			v, err := mulInt(result, base)
			if err != nil {
				return nil, err
			}
			result = int64(v.(Int))
		}
		exp >>= 1
		if exp > 0 {
			v, err := mulInt(base, base)
			if err != nil {
				return nil, err
			}
			base = int64(v.(Int))
		}
	}
	return Int(result), nil
}

func floorDivInt(a, b int64) (Value, error) {
	if b == 0 {
		return nil, excf(ZeroDivisionErrorType, "integer division or modulo by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return nil, overflow()
	}
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return Int(q), nil
}

func modInt(a, b int64) (Value, error) {
	if b == 0 {
		return nil, excf(ZeroDivisionErrorType, "integer division or modulo by zero")
	}
	if b == -1 {
		return Int(0), nil
	}
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return Int(r), nil
}

func floatMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// binaryOp applies an arithmetic, bitwise or sequence operator
func binaryOp(op string, a, b Value) (Value, error) {
	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		if _, ok := a.(Bool); ok {
			if _, ok := b.(Bool); ok {
				switch op {
				case "&":
					return Bool(ai&bi != 0), nil
				case "|":
					return Bool(ai|bi != 0), nil
				case "^":
					return Bool(ai^bi != 0), nil
				}
			}
		}
		return intOp(op, ai, bi)
	}
	if isNumber(a) && isNumber(b) {
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return floatOp(op, af, bf, a, b)
	}

	switch op {
	case "+":
		switch x := a.(type) {
		case Str:
			if y, ok := b.(Str); ok {
				if err := checkSize(int64(len(x) + len(y))); err != nil {
					return nil, err
				}
				return x + y, nil
			}
			return nil, excf(TypeErrorType, `can only concatenate str (not "%s") to str`, typeName(b))
		case *List:
			if y, ok := b.(*List); ok {
				if err := checkSize(int64(len(x.Elems) + len(y.Elems))); err != nil {
					return nil, err
				}
				elems := make([]Value, 0, len(x.Elems)+len(y.Elems))
				return newList(append(append(elems, x.Elems...), y.Elems...)), nil
			}
			return nil, excf(TypeErrorType, `can only concatenate list (not "%s") to list`, typeName(b))
		case Tuple:
			if y, ok := b.(Tuple); ok {
				elems := make([]Value, 0, len(x)+len(y))
				return Tuple(append(append(elems, x...), y...)), nil
			}
			return nil, excf(TypeErrorType, `can only concatenate tuple (not "%s") to tuple`, typeName(b))
		}
	case "*":
		if n, ok := asInt(b); ok {
			if v, ok, err := repeat(a, n); ok {
				return v, err
			}
		}
		if n, ok := asInt(a); ok {
			if v, ok, err := repeat(b, n); ok {
				return v, err
			}
		}
	case "%":
		if s, ok := a.(Str); ok {
			return formatPercent(string(s), b)
		}
	case "-", "&", "|", "^":
		if x, ok := a.(*Set); ok {
			if y, ok := b.(*Set); ok {
				return setOp(op, x, y)
			}
		}
		if x, ok := a.(*Dict); ok && op == "|" {
			if y, ok := b.(*Dict); ok {
				d := x.Copy()
				for i, k := range y.keys {
					if err := d.Set(k, y.vals[i]); err != nil {
						return nil, err
					}
				}
				return d, nil
			}
		}
	}
	return nil, unsupportedOperands(op, a, b)
}

func intOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return addInt(a, b)
	case "-":
		return subInt(a, b)
	case "*":
		return mulInt(a, b)
	case "/":
		if b == 0 {
			return nil, excf(ZeroDivisionErrorType, "division by zero")
		}
		return Float(float64(a) / float64(b)), nil
	case "//":
		return floorDivInt(a, b)
	case "%":
		return modInt(a, b)
	case "**":
		if b < 0 {
			if a == 0 {
				return nil, excf(ZeroDivisionErrorType, "0.0 cannot be raised to a negative power")
			}
			return Float(math.Pow(float64(a), float64(b))), nil
		}
		return powInt(a, b)
	case "<<":
		if b < 0 {
			return nil, excf(ValueErrorType, "negative shift count")
		}
		if a == 0 {
			return Int(0), nil
		}
		if b >= 63 || (a<<b)>>b != a {
			return nil, overflow()
		}
		return Int(a << b), nil
	case ">>":
		if b < 0 {
			return nil, excf(ValueErrorType, "negative shift count")
		}
		if b >= 63 {
			if a < 0 {
				return Int(-1), nil
			}
			return Int(0), nil
		}
		return Int(a >> b), nil
	case "&":
		return Int(a & b), nil
	case "|":
		return Int(a | b), nil
	case "^":
		return Int(a ^ b), nil
	}
	return nil, unsupportedOperands(op, Int(a), Int(b))
}

func floatOp(op string, a, b float64, av, bv Value) (Value, error) {
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/":
		if b == 0 {
			return nil, excf(ZeroDivisionErrorType, "float division by zero")
		}
		return Float(a / b), nil
	case "//":
		if b == 0 {
			return nil, excf(ZeroDivisionErrorType, "float floor division by zero")
		}
		return Float(math.Floor(a / b)), nil
	case "%":
		if b == 0 {
			return nil, excf(ZeroDivisionErrorType, "float modulo")
		}
		return Float(floatMod(a, b)), nil
	case "**":
		if a == 0 && b < 0 {
			return nil, excf(ZeroDivisionErrorType, "0.0 cannot be raised to a negative power")
		}
		if a < 0 && b != math.Trunc(b) {
			return nil, excf(ValueErrorType, "math domain error")
		}
		r := math.Pow(a, b)
		if math.IsInf(r, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
			return nil, excf(OverflowErrorType, "(34, 'Numerical result out of range')")
		}
		return Float(r), nil
	}
	return nil, unsupportedOperands(op, av, bv)
}

// repeat implements sequence * int; ok is false when v is not a sequence
func repeat(v Value, n int64) (Value, bool, error) {
	if n < 0 {
		n = 0
	}
	var size int64
	switch x := v.(type) {
	case Str:
		size = int64(len(x))
	case *List:
		size = int64(len(x.Elems))
	case Tuple:
		size = int64(len(x))
	default:
		return nil, false, nil
	}
	if size > 0 && n > maxSequence/size+1 {
		return nil, true, checkSize(maxSequence + 1)
	}
	if err := checkSize(size * n); err != nil {
		return nil, true, err
	}
	switch x := v.(type) {
	case Str:
		return Str(strings.Repeat(string(x), int(n))), true, nil
	case *List:
		elems := make([]Value, 0, size*n)
		for i := int64(0); i < n; i++ {
			elems = append(elems, x.Elems...)
		}
		return newList(elems), true, nil
	default:
		t := v.(Tuple)
		elems := make([]Value, 0, size*n)
		for i := int64(0); i < n; i++ {
			elems = append(elems, t...)
		}
		return Tuple(elems), true, nil
	}
}

func setOp(op string, a, b *Set) (Value, error) {
	out := NewSet()
	switch op {
	case "|":
		for _, v := range a.items {
			_ = out.Add(v)
		}
		for _, v := range b.items {
			_ = out.Add(v)
		}
	case "&":
		for _, v := range a.items {
			if ok, _ := b.Contains(v); ok {
				_ = out.Add(v)
			}
		}
	case "-":
		for _, v := range a.items {
			if ok, _ := b.Contains(v); !ok {
				_ = out.Add(v)
			}
		}
	case "^":
		for _, v := range a.items {
			if ok, _ := b.Contains(v); !ok {
				_ = out.Add(v)
			}
		}
		for _, v := range b.items {
			if ok, _ := a.Contains(v); !ok {
				_ = out.Add(v)
			}
		}
	}
	return out, nil
}

func unaryOp(op string, v Value) (Value, error) {
	if op == "not" {
		return Bool(!truthy(v)), nil
	}
	if n, ok := asInt(v); ok {
		switch op {
		case "-":
			if n == math.MinInt64 {
				return nil, overflow()
			}
			return Int(-n), nil
		case "+":
			return Int(n), nil
		case "~":
			return Int(^n), nil
		}
	}
	if f, ok := v.(Float); ok {
		switch op {
		case "-":
			return -f, nil
		case "+":
			return f, nil
		}
	}
	return nil, excf(TypeErrorType, "bad operand type for unary %s: '%s'", op, typeName(v))
}

// identical implements the is operator
func identical(a, b Value) bool {
	switch x := a.(type) {
	case NoneType:
		return isNone(b)
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	}
	if _, ok := b.(Tuple); ok {
		return false
	}
	return a == b
}

// equal implements ==
func equal(a, b Value) bool {
	return equalAt(a, b, 0)
}

func equalAt(a, b Value, depth int) bool {
	checkValueDepth(depth)
	if isNumber(a) && isNumber(b) {
		ai, aInt := asInt(a)
		bi, bInt := asInt(b)
		if aInt && bInt {
			return ai == bi
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return af == bf
	}
	switch x := a.(type) {
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y, depth)
	case *List:
		y, ok := b.(*List)
		return ok && (x == y || equalSlices(x.Elems, y.Elems, depth))
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			v, found, err := y.Get(k)
			if err != nil || !found || !equalAt(x.vals[i], v, depth+1) {
				return false
			}
		}
		return true
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, item := range x.items {
			if found, _ := y.Contains(item); !found {
				return false
			}
		}
		return true
	case *Range:
		y, ok := b.(*Range)
		if !ok {
			return false
		}
		n := x.Len()
		if n != y.Len() {
			return false
		}
		switch n {
		case 0:
			return true
		case 1:
			return x.Start == y.Start
		}
		return x.Start == y.Start && x.Step == y.Step
	}
	return identical(a, b)
}

func equalSlices(a, b []Value, depth int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !identical(a[i], b[i]) && !equalAt(a[i], b[i], depth+1) {
			return false
		}
	}
	return true
}

// compare implements the ordering operators
func compare(op string, a, b Value) (bool, error) {
	if isNumber(a) && isNumber(b) {
		ai, aInt := asInt(a)
		bi, bInt := asInt(b)
		if aInt && bInt {
			return ordered(op, cmpInt(ai, bi)), nil
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch op {
		case "<":
			return af < bf, nil
		case "<=":
			return af <= bf, nil
		case ">":
			return af > bf, nil
		default:
			return af >= bf, nil
		}
	}
	if x, ok := a.(*Set); ok {
		if y, ok := b.(*Set); ok {
			return compareSets(op, x, y), nil
		}
	}
	c, err := order(a, b, op)
	if err != nil {
		return false, err
	}
	return ordered(op, c), nil
}

func ordered(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func subset(a, b *Set) bool {
	for _, item := range a.items {
		if found, _ := b.Contains(item); !found {
			return false
		}
	}
	return true
}

func compareSets(op string, a, b *Set) bool {
	switch op {
	case "<":
		return a.Len() < b.Len() && subset(a, b)
	case "<=":
		return subset(a, b)
	case ">":
		return b.Len() < a.Len() && subset(b, a)
	default:
		return subset(b, a)
	}
}

// order returns the three-way comparison of two orderable values. op only
// shapes the error message.
func order(a, b Value, op string) (int, error) {
	return orderAt(a, b, op, 0)
}

func orderAt(a, b Value, op string, depth int) (int, error) {
	checkValueDepth(depth)
	if isNumber(a) && isNumber(b) {
		ai, aInt := asInt(a)
		bi, bInt := asInt(b)
		if aInt && bInt {
			return cmpInt(ai, bi), nil
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return orderSlices(x, y, op, depth)
		}
	case *List:
		if y, ok := b.(*List); ok {
			return orderSlices(x.Elems, y.Elems, op, depth)
		}
	}
	return 0, excf(TypeErrorType, "'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func orderSlices(a, b []Value, op string, depth int) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if equalAt(a[i], b[i], depth+1) {
			continue
		}
		return orderAt(a[i], b[i], op, depth+1)
	}
	return cmpInt(int64(len(a)), int64(len(b))), nil
}

// less is the ordering used by sorted, min and max
func less(a, b Value) (bool, error) {
	c, err := order(a, b, "<")
	return c < 0, err
}

// contains implements the in operator with container first
func (in *Interp) contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, excf(TypeErrorType, "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		if err := in.chargeN(int64(len(c)) / bytesPerOp); err != nil {
			return false, err
		}
		return strings.Contains(string(c), string(s)), nil
	case *Dict:
		if err := in.chargeWalk(item); err != nil {
			return false, err
		}
		_, found, err := c.Get(item)
		return found, err
	case *Set:
		if err := in.chargeWalk(item); err != nil {
			return false, err
		}
		return c.Contains(item)
	case *Range:
		n, ok := asInt(item)
		if !ok {
			if f, isFloat := item.(Float); isFloat && float64(f) == math.Trunc(float64(f)) {
				n, ok = int64(f), true
			}
		}
		if !ok || c.Step == 0 {
			return false, nil
		}
		if c.Step > 0 && (n < c.Start || n >= c.Stop) {
			return false, nil
		}
		if c.Step < 0 && (n > c.Start || n <= c.Stop) {
			return false, nil
		}
		return (n-c.Start)%c.Step == 0, nil
	}

	if err := in.chargeWalk(item); err != nil {
		return false, err
	}
	found := false
	err := in.iterate(container, func(v Value) error {
		if identical(v, item) {
			found = true
			return errLoopExit
		}
		if err := in.chargeWalk(v); err != nil {
			return err
		}
		if equal(v, item) {
			found = true
			return errLoopExit
		}
		return nil
	})
	if err != nil && !isLoopExit(err) {
		return false, err
	}
	return found, nil
}

func indexOf(kind string, idx Value, n int) (int, error) {
	i, ok := asInt(idx)
	if !ok {
		return 0, excf(TypeErrorType, "%s indices must be integers or slices, not %s", kind, typeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return -1, nil
	}
	return int(i), nil
}

// getItem implements obj[idx]
func (in *Interp) getItem(obj, idx Value) (Value, error) {
	switch x := obj.(type) {
	case *List:
		i, err := indexOf("list", idx, len(x.Elems))
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return nil, excf(IndexErrorType, "list index out of range")
		}
		return x.Elems[i], nil
	case Tuple:
		i, err := indexOf("tuple", idx, len(x))
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return nil, excf(IndexErrorType, "tuple index out of range")
		}
		return x[i], nil
	case Str:
		rs := []rune(string(x))
		i, err := indexOf("string", idx, len(rs))
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return nil, excf(IndexErrorType, "string index out of range")
		}
		return Str(string(rs[i])), nil
	case *Range:
		n, ok := asInt(idx)
		if !ok {
			return nil, excf(TypeErrorType, "range indices must be integers or slices, not %s", typeName(idx))
		}
		if n < 0 {
			n += x.Len()
		}
		if n < 0 || n >= x.Len() {
			return nil, excf(IndexErrorType, "range object index out of range")
		}
		return x.At(n), nil
	case *Dict:
		if err := in.chargeWalk(idx); err != nil {
			return nil, err
		}
		v, found, err := x.Get(idx)
		if err != nil {
			return nil, err
		}
		if found {
			return v, nil
		}
		switch {
		case x.factory != nil:
			v, err := in.call(x.factory, nil, nil)
			if err != nil {
				return nil, err
			}
			if err := x.Set(idx, v); err != nil {
				return nil, err
			}
			return v, nil
		case x.class == CounterType:
			return Int(0), nil
		}
		return nil, &Exception{Class: KeyErrorType, Args: []Value{idx}}
	case *Object:
		if x.GetItem != nil {
			return x.GetItem(idx)
		}
	case *Type:
		return nil, unsupported("generic type subscription is not supported")
	}
	return nil, excf(TypeErrorType, "%s is not subscriptable", describe(obj))
}

func (in *Interp) setItem(obj, idx, value Value) error {
	switch x := obj.(type) {
	case *List:
		i, err := indexOf("list", idx, len(x.Elems))
		if err != nil {
			return err
		}
		if i < 0 {
			return excf(IndexErrorType, "list assignment index out of range")
		}
		x.Elems[i] = value
		return nil
	case *Dict:
		if err := in.chargeWalk(idx); err != nil {
			return err
		}
		return x.Set(idx, value)
	}
	return excf(TypeErrorType, "%s does not support item assignment", describe(obj))
}

func (in *Interp) delItem(obj, idx Value) error {
	switch x := obj.(type) {
	case *List:
		i, err := indexOf("list", idx, len(x.Elems))
		if err != nil {
			return err
		}
		if i < 0 {
			return excf(IndexErrorType, "list assignment index out of range")
		}
		x.Elems = append(x.Elems[:i], x.Elems[i+1:]...)
		return nil
	case *Dict:
		if err := in.chargeWalk(idx); err != nil {
			return err
		}
		_, found, err := x.Delete(idx)
		if err != nil {
			return err
		}
		if !found {
			return &Exception{Class: KeyErrorType, Args: []Value{idx}}
		}
		return nil
	}
	return excf(TypeErrorType, "%s doesn't support item deletion", describe(obj))
}

// sliceIndices resolves slice bounds against a sequence of length n the
// way slice.indices does, returning the selected positions.
func sliceIndices(n int64, lo, hi, stepV Value) ([]int64, int64, int64, error) {
	step := int64(1)
	if !isNone(stepV) {
		s, ok := asInt(stepV)
		if !ok {
			return nil, 0, 0, excf(TypeErrorType, "slice indices must be integers or None")
		}
		if s == 0 {
			return nil, 0, 0, excf(ValueErrorType, "slice step cannot be zero")
		}
		step = s
	}

	bound := func(v Value, def int64) (int64, error) {
		if isNone(v) {
			return def, nil
		}
		i, ok := asInt(v)
		if !ok {
			return 0, excf(TypeErrorType, "slice indices must be integers or None")
		}
		if i < 0 {
			i += n
			if i < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= n {
			if step < 0 {
				return n - 1, nil
			}
			return n, nil
		}
		return i, nil
	}

	var start, stop int64
	var err error
	if step > 0 {
		if start, err = bound(lo, 0); err != nil {
			return nil, 0, 0, err
		}
		if stop, err = bound(hi, n); err != nil {
			return nil, 0, 0, err
		}
	} else {
		if start, err = bound(lo, n-1); err != nil {
			return nil, 0, 0, err
		}
		if stop, err = bound(hi, -1); err != nil {
			return nil, 0, 0, err
		}
	}

	var idx []int64
	if step > 0 {
		for i := start; i < stop; i += step {
			idx = append(idx, i)
		}
	} else {
		for i := start; i > stop; i += step {
			idx = append(idx, i)
		}
	}
	return idx, start, step, nil
}

func sliceValue(obj, lo, hi, step Value) (Value, error) {
	switch x := obj.(type) {
	case *List:
		idx, _, _, err := sliceIndices(int64(len(x.Elems)), lo, hi, step)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(idx))
		for i, j := range idx {
			out[i] = x.Elems[j]
		}
		return newList(out), nil
	case Tuple:
		idx, _, _, err := sliceIndices(int64(len(x)), lo, hi, step)
		if err != nil {
			return nil, err
		}
		out := make(Tuple, len(idx))
		for i, j := range idx {
			out[i] = x[j]
		}
		return out, nil
	case Str:
		rs := []rune(string(x))
		idx, _, _, err := sliceIndices(int64(len(rs)), lo, hi, step)
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(idx))
		for i, j := range idx {
			out[i] = rs[j]
		}
		return Str(string(out)), nil
	case *Range:
		if err := checkSize(x.Len()); err != nil {
			return nil, err
		}
		idx, start, st, err := sliceIndices(x.Len(), lo, hi, step)
		if err != nil {
			return nil, err
		}
		first := x.Start + start*x.Step
		stride := x.Step * st
		return &Range{Start: first, Stop: first + int64(len(idx))*stride, Step: stride}, nil
	}
	return nil, excf(TypeErrorType, "%s is not subscriptable", describe(obj))
}

func (in *Interp) assignSlice(obj Value, sl *syntax.Slice, value Value) error {
	l, ok := obj.(*List)
	if !ok {
		return excf(TypeErrorType, "%s does not support item assignment", describe(obj))
	}
	lo, hi, step, err := in.evalSlice(sl)
	if err != nil {
		return err
	}
	items, err := in.toSlice(value)
	if err != nil {
		return err
	}
	idx, start, st, err := sliceIndices(int64(len(l.Elems)), lo, hi, step)
	if err != nil {
		return err
	}
	if st == 1 {
		stop := start
		if len(idx) > 0 {
			stop = idx[len(idx)-1] + 1
		}
		if err := checkSize(int64(len(l.Elems) - len(idx) + len(items))); err != nil {
			return err
		}
		elems := make([]Value, 0, len(l.Elems)-len(idx)+len(items))
		elems = append(elems, l.Elems[:start]...)
		elems = append(elems, items...)
		elems = append(elems, l.Elems[stop:]...)
		l.Elems = elems
		return nil
	}
	if len(items) != len(idx) {
		return excf(ValueErrorType, "attempt to assign sequence of size %d to extended slice of size %d", len(items), len(idx))
	}
	for i, j := range idx {
		l.Elems[j] = items[i]
	}
	return nil
}

func (in *Interp) deleteSlice(obj Value, sl *syntax.Slice) error {
	l, ok := obj.(*List)
	if !ok {
		return excf(TypeErrorType, "%s doesn't support item deletion", describe(obj))
	}
	lo, hi, step, err := in.evalSlice(sl)
	if err != nil {
		return err
	}
	idx, _, _, err := sliceIndices(int64(len(l.Elems)), lo, hi, step)
	if err != nil {
		return err
	}
	drop := make(map[int64]bool, len(idx))
	for _, j := range idx {
		drop[j] = true
	}
	kept := l.Elems[:0]
	for i, v := range l.Elems {
		if !drop[int64(i)] {
			kept = append(kept, v)
		}
	}
	l.Elems = kept
	return nil
}

// getAttr resolves obj.name. Only module members, native object members,
// exception args and the methods of builtin values are reachable.
func (in *Interp) getAttr(obj Value, name string) (Value, error) {
	if strings.HasPrefix(name, "_") {
		return nil, attributeDenied("access to attribute '%s' is not allowed", name)
	}
	switch x := obj.(type) {
	case *Module:
		path := x.Name + "." + name
		if in.pol.IsPathDangerous(path) {
			return nil, attributeDenied("access to '%s' is not allowed", path)
		}
		if v, ok := x.Attrs[name]; ok {
			return v, nil
		}
		return nil, attributeDenied("module '%s' has no attribute '%s'", x.Name, name)
	case *Object:
		if v, ok := x.Attrs[name]; ok {
			return v, nil
		}
	case *Exception:
		if name == "args" {
			return Tuple(append([]Value(nil), x.Args...)), nil
		}
	}
	if m, ok := in.method(obj, name); ok {
		return m, nil
	}
	return nil, attributeDenied("'%s' object has no attribute '%s'", typeName(obj), name)
}
