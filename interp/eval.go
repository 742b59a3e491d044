package interp

import (
	"strings"

	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/syntax"
)

// forbiddenBuiltins can never be reached by name unless the program binds
// the name itself.
var forbiddenBuiltins = map[string]bool{
	"eval": true, "exec": true, "compile": true, "__import__": true,
	"open": true, "globals": true, "locals": true, "vars": true,
	"getattr": true, "setattr": true, "delattr": true, "input": true,
	"breakpoint": true, "exit": true, "quit": true, "help": true,
	"memoryview": true, "dir": true, "id": true, "object": true,
}

// eval evaluates one expression node, charging the budget first
func (in *Interp) eval(e syntax.Expr) (Value, error) {
	if err := in.charge(); err != nil {
		return nil, err
	}

	switch x := e.(type) {
	case *syntax.Constant:
		return constant(x)

	case *syntax.Name:
		return in.lookup(x.Id)

	case *syntax.JoinedStr:
		return in.evalJoinedStr(x)

	case *syntax.BinOp:
		if x.Op == "@" {
			return nil, unsupported("matrix multiplication is not supported")
		}
		left, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		right, err := in.eval(x.Y)
		if err != nil {
			return nil, err
		}
		if err := in.chargeBinary(x.Op, left, right); err != nil {
			return nil, err
		}
		return binaryOp(x.Op, left, right)

	case *syntax.UnaryOp:
		v, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		return unaryOp(x.Op, v)

	case *syntax.BoolOp:
		var v Value
		for _, operand := range x.Values {
			var err error
			if v, err = in.eval(operand); err != nil {
				return nil, err
			}
			if (x.Op == "and") != truthy(v) {
				return v, nil
			}
		}
		return v, nil

	case *syntax.Compare:
		return in.evalCompare(x)

	case *syntax.IfExp:
		cond, err := in.eval(x.Cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return in.eval(x.Then)
		}
		return in.eval(x.Else)

	case *syntax.Call:
		return in.evalCall(x)

	case *syntax.Attribute:
		obj, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		return in.getAttr(obj, x.Name)

	case *syntax.Subscript:
		return in.evalSubscript(x)

	case *syntax.ListExpr:
		elems, err := in.evalElems(x.Elts)
		if err != nil {
			return nil, err
		}
		return newList(elems), nil

	case *syntax.TupleExpr:
		elems, err := in.evalElems(x.Elts)
		if err != nil {
			return nil, err
		}
		return Tuple(elems), nil

	case *syntax.SetExpr:
		elems, err := in.evalElems(x.Elts)
		if err != nil {
			return nil, err
		}
		return setFrom(elems)

	case *syntax.DictExpr:
		return in.evalDict(x)

	case *syntax.ListComp:
		elems, err := in.comprehension(x.Generators, x.Elt)
		if err != nil {
			return nil, err
		}
		return newList(elems), nil

	case *syntax.GeneratorExp:
		elems, err := in.comprehension(x.Generators, x.Elt)
		if err != nil {
			return nil, err
		}
		return newList(elems), nil

	case *syntax.SetComp:
		elems, err := in.comprehension(x.Generators, x.Elt)
		if err != nil {
			return nil, err
		}
		return setFrom(elems)

	case *syntax.DictComp:
		return in.dictComprehension(x)

	case *syntax.Lambda:
		defaults, err := in.evalDefaults(x.Params)
		if err != nil {
			return nil, err
		}
		return &Function{
			Name:     "<lambda>",
			Params:   x.Params,
			Defaults: defaults,
			Expr:     x.Body,
			Closure:  in.scope,
		}, nil

	case *syntax.Starred:
		return nil, result.Errorf(result.KindSyntaxError, "can't use starred expression here")
	}

	return nil, unsupportedNode(e)
}

func constant(c *syntax.Constant) (Value, error) {
	switch v := c.Value.(type) {
	case nil:
		return None, nil
	case bool:
		return Bool(v), nil
	case int64:
		return Int(v), nil
	case float64:
		return Float(v), nil
	case string:
		return Str(v), nil
	}
	return nil, unsupported("%T literals are not supported", c.Value)
}

// lookup resolves a name through the scope chain, then the builtins
func (in *Interp) lookup(name string) (Value, error) {
	if v, ok := in.scope.Lookup(name); ok {
		return v, nil
	}
	if forbiddenBuiltins[name] {
		return nil, unsupported("use of '%s' is not allowed", name)
	}
	if v, ok := builtins[name]; ok {
		return v, nil
	}
	return nil, result.Errorf(result.KindNameError, "name '%s' is not defined", name)
}

// evalElems evaluates display elements, expanding starred items
func (in *Interp) evalElems(elts []syntax.Expr) ([]Value, error) {
	out := make([]Value, 0, len(elts))
	for _, elt := range elts {
		if star, ok := elt.(*syntax.Starred); ok {
			v, err := in.eval(star.X)
			if err != nil {
				return nil, err
			}
			items, err := in.toSlice(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			if err := checkSize(int64(len(out))); err != nil {
				return nil, err
			}
			continue
		}
		v, err := in.eval(elt)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interp) evalDict(x *syntax.DictExpr) (Value, error) {
	d := NewDict()
	for i, k := range x.Keys {
		if k == nil {
			v, err := in.eval(x.Values[i])
			if err != nil {
				return nil, err
			}
			src, ok := v.(*Dict)
			if !ok {
				return nil, excf(TypeErrorType, "%s is not a mapping", describe(v))
			}
			for j, key := range src.keys {
				if err := d.Set(key, src.vals[j]); err != nil {
					return nil, err
				}
			}
			continue
		}
		key, err := in.eval(k)
		if err != nil {
			return nil, err
		}
		val, err := in.eval(x.Values[i])
		if err != nil {
			return nil, err
		}
		if err := d.Set(key, val); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (in *Interp) evalJoinedStr(x *syntax.JoinedStr) (Value, error) {
	var b strings.Builder
	for _, part := range x.Parts {
		switch p := part.(type) {
		case *syntax.Constant:
			s, _ := p.Value.(string)
			b.WriteString(s)
		case *syntax.FormattedValue:
			s, err := in.evalFormatted(p)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		default:
			v, err := in.eval(part)
			if err != nil {
				return nil, err
			}
			if err := in.chargeWalk(v); err != nil {
				return nil, err
			}
			b.WriteString(str(v))
		}
	}
	return Str(b.String()), nil
}

func (in *Interp) evalFormatted(fv *syntax.FormattedValue) (string, error) {
	v, err := in.eval(fv.Value)
	if err != nil {
		return "", err
	}
	if err := in.chargeWalk(v); err != nil {
		return "", err
	}
	switch fv.Conversion {
	case 'r', 'a':
		v = Str(repr(v))
	case 's':
		v = Str(str(v))
	}
	spec := ""
	if fv.Spec != nil {
		sv, err := in.evalJoinedStr(fv.Spec)
		if err != nil {
			return "", err
		}
		spec = string(sv.(Str))
	}
	return formatValue(v, spec)
}

func (in *Interp) evalCompare(x *syntax.Compare) (Value, error) {
	left, err := in.eval(x.Left)
	if err != nil {
		return nil, err
	}
	for i, op := range x.Ops {
		right, err := in.eval(x.Comparators[i])
		if err != nil {
			return nil, err
		}
		ok, err := in.compareOp(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return Bool(false), nil
		}
		left = right
	}
	return Bool(true), nil
}

func (in *Interp) compareOp(op string, a, b Value) (bool, error) {
	switch op {
	case "in":
		return in.contains(b, a)
	case "not in":
		ok, err := in.contains(b, a)
		return !ok, err
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	}
	if err := in.chargeWalk(a, b); err != nil {
		return false, err
	}
	switch op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	}
	return compare(op, a, b)
}

func (in *Interp) evalSubscript(x *syntax.Subscript) (Value, error) {
	obj, err := in.eval(x.X)
	if err != nil {
		return nil, err
	}
	if sl, ok := x.Index.(*syntax.Slice); ok {
		lo, hi, step, err := in.evalSlice(sl)
		if err != nil {
			return nil, err
		}
		return sliceValue(obj, lo, hi, step)
	}
	idx, err := in.eval(x.Index)
	if err != nil {
		return nil, err
	}
	return in.getItem(obj, idx)
}

func (in *Interp) evalSlice(sl *syntax.Slice) (lo, hi, step Value, err error) {
	lo, hi, step = None, None, None
	if sl.Lo != nil {
		if lo, err = in.eval(sl.Lo); err != nil {
			return
		}
	}
	if sl.Hi != nil {
		if hi, err = in.eval(sl.Hi); err != nil {
			return
		}
	}
	if sl.Step != nil {
		if step, err = in.eval(sl.Step); err != nil {
			return
		}
	}
	return
}

// comprehension evaluates generator clauses in a fresh scope, collecting
// elt for every surviving combination.
func (in *Interp) comprehension(gens []*syntax.Comprehension, elt syntax.Expr) ([]Value, error) {
	out := []Value{}
	err := in.withScope(NewScope(in.scope), func() error {
		return in.generate(gens, func() error {
			v, err := in.eval(elt)
			if err != nil {
				return err
			}
			out = append(out, v)
			return checkSize(int64(len(out)))
		})
	})
	return out, err
}

func (in *Interp) dictComprehension(x *syntax.DictComp) (Value, error) {
	d := NewDict()
	err := in.withScope(NewScope(in.scope), func() error {
		return in.generate(x.Generators, func() error {
			k, err := in.eval(x.Key)
			if err != nil {
				return err
			}
			v, err := in.eval(x.Value)
			if err != nil {
				return err
			}
			return d.Set(k, v)
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (in *Interp) generate(gens []*syntax.Comprehension, emit func() error) error {
	if len(gens) == 0 {
		return emit()
	}
	gen := gens[0]
	if gen.Async {
		return unsupported("async comprehensions are not supported")
	}
	iterable, err := in.eval(gen.Iter)
	if err != nil {
		return err
	}
	return in.iterate(iterable, func(item Value) error {
		if err := in.assign(gen.Target, item); err != nil {
			return err
		}
		for _, cond := range gen.Ifs {
			v, err := in.eval(cond)
			if err != nil {
				return err
			}
			if !truthy(v) {
				return nil
			}
		}
		return in.generate(gens[1:], emit)
	})
}

// assign binds value to a target expression
func (in *Interp) assign(target syntax.Expr, value Value) error {
	switch t := target.(type) {
	case *syntax.Name:
		in.scope.Set(t.Id, value)
		return nil
	case *syntax.Subscript:
		obj, err := in.eval(t.X)
		if err != nil {
			return err
		}
		if sl, ok := t.Index.(*syntax.Slice); ok {
			return in.assignSlice(obj, sl, value)
		}
		idx, err := in.eval(t.Index)
		if err != nil {
			return err
		}
		return in.setItem(obj, idx, value)
	case *syntax.Attribute:
		return attributeDenied("cannot set attribute '%s'", t.Name)
	case *syntax.TupleExpr:
		return in.unpack(t.Elts, value)
	case *syntax.ListExpr:
		return in.unpack(t.Elts, value)
	case *syntax.Starred:
		return result.Errorf(result.KindSyntaxError, "starred assignment target must be in a list or tuple")
	}
	return unsupportedNode(target)
}

func (in *Interp) unpack(targets []syntax.Expr, value Value) error {
	items, err := in.toSlice(value)
	if err != nil {
		return err
	}

	star := -1
	for i, t := range targets {
		if _, ok := t.(*syntax.Starred); ok {
			if star >= 0 {
				return result.Errorf(result.KindSyntaxError, "multiple starred expressions in assignment")
			}
			star = i
		}
	}

	if star < 0 {
		switch {
		case len(items) > len(targets):
			return excf(ValueErrorType, "too many values to unpack (expected %d)", len(targets))
		case len(items) < len(targets):
			return excf(ValueErrorType, "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
		}
		for i, t := range targets {
			if err := in.assign(t, items[i]); err != nil {
				return err
			}
		}
		return nil
	}

	after := len(targets) - star - 1
	if len(items) < len(targets)-1 {
		return excf(ValueErrorType, "not enough values to unpack (expected at least %d, got %d)", len(targets)-1, len(items))
	}
	for i := 0; i < star; i++ {
		if err := in.assign(targets[i], items[i]); err != nil {
			return err
		}
	}
	middle := append([]Value{}, items[star:len(items)-after]...)
	if err := in.assign(targets[star].(*syntax.Starred).X, newList(middle)); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := in.assign(targets[star+1+i], items[len(items)-after+i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) augAssign(s *syntax.AugAssign) error {
	switch t := s.Target.(type) {
	case *syntax.Name:
		cur, err := in.lookup(t.Id)
		if err != nil {
			return err
		}
		rhs, err := in.eval(s.Value)
		if err != nil {
			return err
		}
		v, err := in.inplaceOp(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		in.scope.Set(t.Id, v)
		return nil

	case *syntax.Subscript:
		obj, err := in.eval(t.X)
		if err != nil {
			return err
		}
		if _, ok := t.Index.(*syntax.Slice); ok {
			return unsupported("augmented assignment to a slice is not supported")
		}
		idx, err := in.eval(t.Index)
		if err != nil {
			return err
		}
		cur, err := in.getItem(obj, idx)
		if err != nil {
			return err
		}
		rhs, err := in.eval(s.Value)
		if err != nil {
			return err
		}
		v, err := in.inplaceOp(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return in.setItem(obj, idx, v)

	case *syntax.Attribute:
		return attributeDenied("cannot set attribute '%s'", t.Name)
	}
	return unsupportedNode(s.Target)
}

// inplaceOp applies op for augmented assignment; lists extend in place
func (in *Interp) inplaceOp(op string, cur, rhs Value) (Value, error) {
	if l, ok := cur.(*List); ok && op == "+" {
		items, err := in.toSlice(rhs)
		if err != nil {
			return nil, err
		}
		if err := checkSize(int64(len(l.Elems) + len(items))); err != nil {
			return nil, err
		}
		if err := in.chargeN(int64(len(items))); err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, items...)
		return l, nil
	}
	if op == "@" {
		return nil, unsupported("matrix multiplication is not supported")
	}
	if err := in.chargeBinary(op, cur, rhs); err != nil {
		return nil, err
	}
	return binaryOp(op, cur, rhs)
}

func (in *Interp) delete(target syntax.Expr) error {
	switch t := target.(type) {
	case *syntax.Name:
		if !in.scope.Delete(t.Id) {
			return result.Errorf(result.KindNameError, "name '%s' is not defined", t.Id)
		}
		return nil
	case *syntax.Subscript:
		obj, err := in.eval(t.X)
		if err != nil {
			return err
		}
		if sl, ok := t.Index.(*syntax.Slice); ok {
			return in.deleteSlice(obj, sl)
		}
		idx, err := in.eval(t.Index)
		if err != nil {
			return err
		}
		return in.delItem(obj, idx)
	case *syntax.Attribute:
		return attributeDenied("cannot delete attribute '%s'", t.Name)
	case *syntax.TupleExpr:
		for _, elt := range t.Elts {
			if err := in.delete(elt); err != nil {
				return err
			}
		}
		return nil
	case *syntax.ListExpr:
		for _, elt := range t.Elts {
			if err := in.delete(elt); err != nil {
				return err
			}
		}
		return nil
	}
	return unsupportedNode(target)
}
