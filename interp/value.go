package interp

import (
	"fmt"

	"github.com/isdmx/safebox/syntax"
)

// Value is any runtime value produced by evaluated code
type Value interface {
	Type() *Type
}

// BuiltinFunc implements a callable provided by the evaluator
type BuiltinFunc func(in *Interp, args []Value, kwargs []Kwarg) (Value, error)

// Kwarg is a keyword argument in call order
type Kwarg struct {
	Name  string
	Value Value
}

type (
	NoneType struct{}
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	Tuple    []Value

	List struct {
		Elems []Value
	}

	Range struct {
		Start, Stop, Step int64
	}

	// Function is a def or lambda closed over its defining scope
	Function struct {
		Name     string
		Params   []*syntax.Param
		Defaults []Value
		Body     []syntax.Stmt
		Expr     syntax.Expr
		Closure  *Scope
	}

	// Builtin is a native function or a method bound to Recv
	Builtin struct {
		Name string
		Fn   BuiltinFunc
		Recv Value
	}

	Module struct {
		Name  string
		Attrs map[string]Value
	}

	// Object is an opaque native instance, such as a compiled pattern.
	// Only the entries of Attrs are reachable from evaluated code.
	Object struct {
		Class   *Type
		Attrs   map[string]Value
		Repr    string
		GetItem func(key Value) (Value, error)
	}

	// Type is a class object. Types are compared by identity.
	Type struct {
		Name string
		Base *Type
	}
)

// None is the singleton None value
var None Value = NoneType{}

var (
	NoneTypeType = &Type{Name: "NoneType"}
	ObjectType   = &Type{Name: "object"}
	IntType      = &Type{Name: "int", Base: ObjectType}
	BoolType     = &Type{Name: "bool", Base: IntType}
	FloatType    = &Type{Name: "float", Base: ObjectType}
	StrType      = &Type{Name: "str", Base: ObjectType}
	ListType     = &Type{Name: "list", Base: ObjectType}
	TupleType    = &Type{Name: "tuple", Base: ObjectType}
	DictType     = &Type{Name: "dict", Base: ObjectType}
	SetType      = &Type{Name: "set", Base: ObjectType}
	RangeType    = &Type{Name: "range", Base: ObjectType}
	FunctionType = &Type{Name: "function", Base: ObjectType}
	BuiltinType  = &Type{Name: "builtin_function_or_method", Base: ObjectType}
	ModuleType   = &Type{Name: "module", Base: ObjectType}
	TypeType     = &Type{Name: "type", Base: ObjectType}

	CounterType     = &Type{Name: "Counter", Base: DictType}
	DefaultDictType = &Type{Name: "defaultdict", Base: DictType}
)

func (NoneType) Type() *Type  { return NoneTypeType }
func (Bool) Type() *Type      { return BoolType }
func (Int) Type() *Type       { return IntType }
func (Float) Type() *Type     { return FloatType }
func (Str) Type() *Type       { return StrType }
func (Tuple) Type() *Type     { return TupleType }
func (*List) Type() *Type     { return ListType }
func (*Range) Type() *Type    { return RangeType }
func (*Function) Type() *Type { return FunctionType }
func (*Builtin) Type() *Type  { return BuiltinType }
func (*Module) Type() *Type   { return ModuleType }
func (o *Object) Type() *Type { return o.Class }
func (*Type) Type() *Type     { return TypeType }

func (e *Exception) Type() *Type { return e.Class }

// IsSubclass reports whether t is base or derives from it
func (t *Type) IsSubclass(base *Type) bool {
	for c := t; c != nil; c = c.Base {
		if c == base {
			return true
		}
	}
	return false
}

// Len returns the number of elements in the range
func (r *Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	default:
		return 0
	}
}

// At returns the i-th element; i must be in range
func (r *Range) At(i int64) Int {
	return Int(r.Start + i*r.Step)
}

func newBuiltin(name string, fn BuiltinFunc) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

func newList(elems []Value) *List {
	if elems == nil {
		elems = []Value{}
	}
	return &List{Elems: elems}
}

func isNone(v Value) bool {
	_, ok := v.(NoneType)
	return ok
}

func typeName(v Value) string {
	return v.Type().Name
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case NoneType:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x != 0
	case Float:
		return x != 0
	case Str:
		return x != ""
	case Tuple:
		return len(x) > 0
	case *List:
		return len(x.Elems) > 0
	case *Dict:
		return x.Len() > 0
	case *Set:
		return x.Len() > 0
	case *Range:
		return x.Len() > 0
	default:
		return true
	}
}

// asInt returns the integer value of an int or bool
func asInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case Int:
		return int64(x), true
	case Bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// asFloat converts int, bool and float values
func asFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Float:
		return float64(x), true
	case Int:
		return float64(x), true
	case Bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNumber(v Value) bool {
	switch v.(type) {
	case Int, Bool, Float:
		return true
	}
	return false
}

func wantInt(fn string, v Value) (int64, error) {
	n, ok := asInt(v)
	if !ok {
		return 0, excf(TypeErrorType, "%s: '%s' object cannot be interpreted as an integer", fn, typeName(v))
	}
	return n, nil
}

func wantStr(fn string, v Value) (string, error) {
	s, ok := v.(Str)
	if !ok {
		return "", excf(TypeErrorType, "%s: expected str, got %s", fn, typeName(v))
	}
	return string(s), nil
}

func wantFloat(fn string, v Value) (float64, error) {
	f, ok := asFloat(v)
	if !ok {
		return 0, excf(TypeErrorType, "%s: must be real number, not %s", fn, typeName(v))
	}
	return f, nil
}

func (f *Function) String() string {
	return fmt.Sprintf("<function %s>", f.Name)
}
