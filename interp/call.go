package interp

import (
	"errors"
	"strings"

	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/syntax"
)

func (in *Interp) evalCall(x *syntax.Call) (Value, error) {
	fn, err := in.eval(x.Func)
	if err != nil {
		return nil, err
	}
	args, err := in.evalElems(x.Args)
	if err != nil {
		return nil, err
	}

	var kwargs []Kwarg
	for _, kw := range x.Keywords {
		v, err := in.eval(kw.Value)
		if err != nil {
			return nil, err
		}
		if kw.Name != "" {
			kwargs = append(kwargs, Kwarg{Name: kw.Name, Value: v})
			continue
		}
		d, ok := v.(*Dict)
		if !ok {
			return nil, excf(TypeErrorType, "argument after ** must be a mapping, not %s", typeName(v))
		}
		for i, k := range d.keys {
			name, ok := k.(Str)
			if !ok {
				return nil, excf(TypeErrorType, "keywords must be strings")
			}
			kwargs = append(kwargs, Kwarg{Name: string(name), Value: d.vals[i]})
		}
	}
	return in.call(fn, args, kwargs)
}

// call invokes any callable value
func (in *Interp) call(fn Value, args []Value, kwargs []Kwarg) (Value, error) {
	switch f := fn.(type) {
	case *Function:
		return in.callFunction(f, args, kwargs)
	case *Builtin:
		return f.Fn(in, args, kwargs)
	case *Type:
		return in.construct(f, args, kwargs)
	}
	return nil, excf(TypeErrorType, "%s is not callable", describe(fn))
}

func (in *Interp) callFunction(f *Function, args []Value, kwargs []Kwarg) (Value, error) {
	if in.depth >= in.pol.MaxRecursionDepth() {
		return nil, result.Errorf(result.KindRecursionExceeded,
			"maximum recursion depth of %d exceeded", in.pol.MaxRecursionDepth())
	}

	frame := NewScope(f.Closure)
	if err := bindParams(f, frame, args, kwargs); err != nil {
		return nil, err
	}

	in.depth++
	savedRet := in.ret
	defer func() {
		in.depth--
		in.ret = savedRet
	}()

	var ret Value = None
	err := in.withScope(frame, func() error {
		if f.Expr != nil {
			v, err := in.eval(f.Expr)
			ret = v
			return err
		}
		in.ret = None
		fl, err := in.execBlock(f.Body)
		if err != nil {
			return err
		}
		switch fl {
		case flowReturn:
			ret = in.ret
		case flowBreak, flowContinue:
			return result.Errorf(result.KindSyntaxError, "'break' or 'continue' outside loop")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// bindParams binds call arguments into frame following Python's rules for
// positional, keyword, *args and **kwargs parameters.
func bindParams(f *Function, frame *Scope, args []Value, kwargs []Kwarg) error {
	var (
		positional []int
		starIdx    = -1
		kwIdx      = -1
	)
	for i, p := range f.Params {
		switch {
		case p.Star:
			starIdx = i
		case p.DoubleStar:
			kwIdx = i
		case !p.KeywordOnly:
			positional = append(positional, i)
		}
	}

	bound := make(map[string]bool, len(f.Params))
	for i, v := range args {
		if i < len(positional) {
			p := f.Params[positional[i]]
			frame.Set(p.Name, v)
			bound[p.Name] = true
			continue
		}
		if starIdx < 0 {
			return excf(TypeErrorType, "%s() takes %d positional argument%s but %d %s given",
				f.Name, len(positional), plural(len(positional)), len(args), wasWere(len(args)))
		}
		break
	}
	if starIdx >= 0 {
		var rest []Value
		if len(args) > len(positional) {
			rest = append(rest, args[len(positional):]...)
		}
		frame.Set(f.Params[starIdx].Name, Tuple(rest))
	}

	var extra *Dict
	if kwIdx >= 0 {
		extra = NewDict()
	}
	for _, kw := range kwargs {
		var target *syntax.Param
		for _, p := range f.Params {
			if !p.Star && !p.DoubleStar && p.Name == kw.Name {
				target = p
				break
			}
		}
		switch {
		case target == nil && extra != nil:
			extra.SetStr(kw.Name, kw.Value)
		case target == nil:
			return excf(TypeErrorType, "%s() got an unexpected keyword argument '%s'", f.Name, kw.Name)
		case bound[kw.Name]:
			return excf(TypeErrorType, "%s() got multiple values for argument '%s'", f.Name, kw.Name)
		default:
			frame.Set(kw.Name, kw.Value)
			bound[kw.Name] = true
		}
	}
	if extra != nil {
		frame.Set(f.Params[kwIdx].Name, extra)
	}

	var missing []string
	for i, p := range f.Params {
		if p.Star || p.DoubleStar || bound[p.Name] {
			continue
		}
		if f.Defaults[i] != nil {
			frame.Set(p.Name, f.Defaults[i])
			continue
		}
		missing = append(missing, "'"+p.Name+"'")
	}
	if len(missing) > 0 {
		return excf(TypeErrorType, "%s() missing %d required argument%s: %s",
			f.Name, len(missing), plural(len(missing)), joinNames(missing))
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}

func joinNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}

// construct calls a class object
func (in *Interp) construct(t *Type, args []Value, kwargs []Kwarg) (Value, error) {
	if isExceptionClass(t) {
		if len(kwargs) > 0 {
			return nil, excf(TypeErrorType, "%s() takes no keyword arguments", t.Name)
		}
		return &Exception{Class: t, Args: append([]Value(nil), args...)}, nil
	}
	ctor, ok := constructors[t]
	if !ok {
		return nil, excf(TypeErrorType, "cannot create '%s' instances", t.Name)
	}
	return ctor(in, args, kwargs)
}

// iterate calls fn for each element of v, charging one operation per step.
// fn may return errLoopExit to stop early; iterate passes it through.
func (in *Interp) iterate(v Value, fn func(Value) error) error {
	step := func(item Value) error {
		if err := in.charge(); err != nil {
			return err
		}
		return fn(item)
	}

	switch x := v.(type) {
	case *List:
		// Index each step so appends inside the loop are seen, as in Python.
		for i := 0; i < len(x.Elems); i++ {
			if err := step(x.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	case Tuple:
		for _, item := range x {
			if err := step(item); err != nil {
				return err
			}
		}
		return nil
	case Str:
		for _, r := range string(x) {
			if err := step(Str(string(r))); err != nil {
				return err
			}
		}
		return nil
	case *Range:
		n := x.Len()
		for i := int64(0); i < n; i++ {
			if err := step(x.At(i)); err != nil {
				return err
			}
		}
		return nil
	case *Dict:
		for _, k := range x.Keys() {
			if err := step(k); err != nil {
				return err
			}
		}
		return nil
	case *Set:
		for _, item := range x.Items() {
			if err := step(item); err != nil {
				return err
			}
		}
		return nil
	}
	return excf(TypeErrorType, "%s is not iterable", describe(v))
}

// toSlice materializes an iterable into a fresh slice
func (in *Interp) toSlice(v Value) ([]Value, error) {
	switch x := v.(type) {
	case Tuple:
		return append([]Value(nil), x...), nil
	case *List:
		return append([]Value(nil), x.Elems...), nil
	case *Range:
		if err := checkSize(x.Len()); err != nil {
			return nil, err
		}
	}
	var out []Value
	err := in.iterate(v, func(item Value) error {
		out = append(out, item)
		return checkSize(int64(len(out)))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// callPredicate calls fn(args...) and reports its truth
func (in *Interp) callPredicate(fn Value, args ...Value) (bool, error) {
	v, err := in.call(fn, args, nil)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// isLoopExit reports whether err is the early-exit sentinel
func isLoopExit(err error) bool {
	return errors.Is(err, errLoopExit)
}
