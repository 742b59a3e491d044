package interp

import (
	"errors"
	"sort"
	"strings"

	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/syntax"
)

var unsupportedNames = map[string]string{
	"ClassDef":  "class definitions",
	"With":      "with statements",
	"Global":    "global statements",
	"Nonlocal":  "nonlocal statements",
	"Yield":     "yield expressions",
	"Await":     "await expressions",
	"NamedExpr": "assignment expressions",
}

func unsupportedNode(n syntax.Node) *result.Error {
	kind := syntax.KindName(n)
	if name, ok := unsupportedNames[kind]; ok {
		return unsupported("%s are not supported", name)
	}
	return unsupported("%s is not supported", kind)
}

func (in *Interp) execBlock(stmts []syntax.Stmt) (flow, error) {
	for _, stmt := range stmts {
		fl, err := in.exec(stmt)
		if err != nil || fl != flowNormal {
			return fl, err
		}
	}
	return flowNormal, nil
}

// exec runs one statement. The statement is charged before dispatch and
// errors are annotated with its line.
func (in *Interp) exec(stmt syntax.Stmt) (flow, error) {
	if err := in.charge(); err != nil {
		return flowNormal, atLine(err, stmt.Position().Line)
	}
	fl, err := in.execStmt(stmt)
	if err != nil {
		return flowNormal, atLine(err, stmt.Position().Line)
	}
	return fl, nil
}

func (in *Interp) execStmt(stmt syntax.Stmt) (flow, error) {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		v, err := in.eval(s.X)
		if err != nil {
			return flowNormal, err
		}
		if in.depth == 0 {
			in.last = v
		}
		return flowNormal, nil

	case *syntax.Assign:
		v, err := in.eval(s.Value)
		if err != nil {
			return flowNormal, err
		}
		for _, target := range s.Targets {
			if err := in.assign(target, v); err != nil {
				return flowNormal, err
			}
		}
		return flowNormal, nil

	case *syntax.AugAssign:
		return flowNormal, in.augAssign(s)

	case *syntax.AnnAssign:
		if s.Value == nil {
			return flowNormal, nil
		}
		v, err := in.eval(s.Value)
		if err != nil {
			return flowNormal, err
		}
		return flowNormal, in.assign(s.Target, v)

	case *syntax.Pass:
		return flowNormal, nil
	case *syntax.Break:
		return flowBreak, nil
	case *syntax.Continue:
		return flowContinue, nil

	case *syntax.Return:
		if in.depth == 0 {
			return flowNormal, result.Errorf(result.KindSyntaxError, "'return' outside function")
		}
		v := None
		if s.Value != nil {
			var err error
			if v, err = in.eval(s.Value); err != nil {
				return flowNormal, err
			}
		}
		in.ret = v
		return flowReturn, nil

	case *syntax.If:
		cond, err := in.eval(s.Cond)
		if err != nil {
			return flowNormal, err
		}
		if truthy(cond) {
			return in.execBlock(s.Body)
		}
		return in.execBlock(s.Else)

	case *syntax.While:
		return in.execWhile(s)

	case *syntax.For:
		return in.execFor(s)

	case *syntax.FuncDef:
		fn, err := in.makeFunction(s)
		if err != nil {
			return flowNormal, err
		}
		in.scope.Set(s.Name, fn)
		return flowNormal, nil

	case *syntax.Import:
		return flowNormal, in.execImport(s)

	case *syntax.ImportFrom:
		return flowNormal, in.execImportFrom(s)

	case *syntax.Try:
		return in.execTry(s)

	case *syntax.Raise:
		return flowNormal, in.execRaise(s)

	case *syntax.Assert:
		test, err := in.eval(s.Test)
		if err != nil {
			return flowNormal, err
		}
		if truthy(test) {
			return flowNormal, nil
		}
		exc := &Exception{Class: AssertionErrorType}
		if s.Msg != nil {
			msg, err := in.eval(s.Msg)
			if err != nil {
				return flowNormal, err
			}
			exc.Args = []Value{msg}
		}
		return flowNormal, exc

	case *syntax.Delete:
		for _, target := range s.Targets {
			if err := in.delete(target); err != nil {
				return flowNormal, err
			}
		}
		return flowNormal, nil
	}

	return flowNormal, unsupportedNode(stmt)
}

func (in *Interp) execWhile(s *syntax.While) (flow, error) {
	for {
		cond, err := in.eval(s.Cond)
		if err != nil {
			return flowNormal, err
		}
		if !truthy(cond) {
			break
		}
		fl, err := in.execBlock(s.Body)
		if err != nil {
			return flowNormal, err
		}
		switch fl {
		case flowBreak:
			return flowNormal, nil
		case flowReturn:
			return flowReturn, nil
		}
	}
	return in.execBlock(s.Else)
}

// errLoopExit stops iteration early without being an evaluation error
var errLoopExit = errors.New("loop exit")

func (in *Interp) execFor(s *syntax.For) (flow, error) {
	if s.Async {
		return flowNormal, unsupported("async for loops are not supported")
	}
	iterable, err := in.eval(s.Iter)
	if err != nil {
		return flowNormal, err
	}

	exit := flowNormal
	broke := false
	err = in.iterate(iterable, func(item Value) error {
		if err := in.assign(s.Target, item); err != nil {
			return err
		}
		fl, err := in.execBlock(s.Body)
		if err != nil {
			return err
		}
		switch fl {
		case flowBreak:
			broke = true
			return errLoopExit
		case flowReturn:
			exit = flowReturn
			return errLoopExit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLoopExit) {
		return flowNormal, err
	}
	if exit == flowReturn {
		return flowReturn, nil
	}
	if broke {
		return flowNormal, nil
	}
	return in.execBlock(s.Else)
}

func (in *Interp) makeFunction(s *syntax.FuncDef) (*Function, error) {
	if s.Async {
		return nil, unsupported("async functions are not supported")
	}
	if len(s.Decorators) > 0 {
		return nil, unsupported("decorators are not supported")
	}
	defaults, err := in.evalDefaults(s.Params)
	if err != nil {
		return nil, err
	}
	return &Function{
		Name:     s.Name,
		Params:   s.Params,
		Defaults: defaults,
		Body:     s.Body,
		Closure:  in.scope,
	}, nil
}

func (in *Interp) evalDefaults(params []*syntax.Param) ([]Value, error) {
	defaults := make([]Value, len(params))
	for i, p := range params {
		if p.Default == nil {
			continue
		}
		v, err := in.eval(p.Default)
		if err != nil {
			return nil, err
		}
		defaults[i] = v
	}
	return defaults, nil
}

func (in *Interp) execTry(s *syntax.Try) (flow, error) {
	fl, err := in.execBlock(s.Body)

	var exc *Exception
	if err != nil && errors.As(err, &exc) {
		handled := false
		for _, h := range s.Handlers {
			match, merr := in.handlerMatches(h, exc)
			if merr != nil {
				return flowNormal, merr
			}
			if !match {
				continue
			}
			handled = true
			fl, err = in.runHandler(h, exc)
			break
		}
		if !handled {
			fl, err = flowNormal, exc
		}
	} else if err == nil && fl == flowNormal && s.Else != nil {
		fl, err = in.execBlock(s.Else)
	}

	if s.Finally == nil || !finallyRuns(err) {
		return fl, err
	}
	ffl, ferr := in.execBlock(s.Finally)
	if ferr != nil || ffl != flowNormal {
		return ffl, ferr
	}
	return fl, err
}

// finallyRuns reports whether a finally clause executes after err. Policy
// errors and final_answer halt evaluation immediately.
func finallyRuns(err error) bool {
	if err == nil {
		return true
	}
	var exc *Exception
	return errors.As(err, &exc)
}

func (in *Interp) handlerMatches(h *syntax.ExceptHandler, exc *Exception) (bool, error) {
	if h.Type == nil {
		return true, nil
	}
	t, err := in.eval(h.Type)
	if err != nil {
		return false, err
	}
	return exceptionMatches(exc, t)
}

func exceptionMatches(exc *Exception, spec Value) (bool, error) {
	switch x := spec.(type) {
	case *Type:
		if !isExceptionClass(x) {
			return false, excf(TypeErrorType, "catching classes that do not inherit from BaseException is not allowed")
		}
		return exc.Class.IsSubclass(x), nil
	case Tuple:
		for _, elt := range x {
			ok, err := exceptionMatches(exc, elt)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, excf(TypeErrorType, "catching classes that do not inherit from BaseException is not allowed")
}

func (in *Interp) runHandler(h *syntax.ExceptHandler, exc *Exception) (flow, error) {
	if h.Name != "" {
		in.scope.Set(h.Name, exc)
	}
	in.handling = append(in.handling, exc)
	fl, err := in.execBlock(h.Body)
	in.handling = in.handling[:len(in.handling)-1]
	if h.Name != "" {
		in.scope.Delete(h.Name)
	}
	return fl, err
}

func (in *Interp) execRaise(s *syntax.Raise) error {
	if s.Exc == nil {
		if n := len(in.handling); n > 0 {
			return in.handling[n-1]
		}
		return excf(RuntimeErrorType, "No active exception to reraise")
	}
	v, err := in.eval(s.Exc)
	if err != nil {
		return err
	}
	if s.Cause != nil {
		if _, err := in.eval(s.Cause); err != nil {
			return err
		}
	}
	switch x := v.(type) {
	case *Exception:
		// the message is rendered from the arguments when it is reported
		if err := in.chargeWalk(x); err != nil {
			return err
		}
		return x
	case *Type:
		if isExceptionClass(x) {
			return &Exception{Class: x}
		}
	}
	return excf(TypeErrorType, "exceptions must derive from BaseException")
}

// execImport checks every name against the policy before binding any
func (in *Interp) execImport(s *syntax.Import) error {
	for _, alias := range s.Names {
		if !in.pol.IsImportAllowed(alias.Name) {
			return importDenied(alias.Name)
		}
	}
	for _, alias := range s.Names {
		mod, err := in.loadModule(alias.Name)
		if err != nil {
			return err
		}
		if alias.AsName != "" {
			in.scope.Set(alias.AsName, mod)
			continue
		}
		top, _, _ := strings.Cut(alias.Name, ".")
		root, err := in.loadModule(top)
		if err != nil {
			return err
		}
		in.scope.Set(top, root)
	}
	return nil
}

func (in *Interp) execImportFrom(s *syntax.ImportFrom) error {
	if s.Level > 0 {
		return importDenied(strings.Repeat(".", s.Level) + s.Module)
	}
	if !in.pol.IsImportAllowed(s.Module) {
		return importDenied(s.Module)
	}

	star := len(s.Names) == 1 && s.Names[0].Name == "*"
	var names []string
	if !star {
		for _, alias := range s.Names {
			names = append(names, alias.Name)
		}
		for _, name := range names {
			if path := s.Module + "." + name; !in.pol.IsImportAllowed(path) {
				return importDenied(path)
			}
		}
	}

	mod, err := in.loadModule(s.Module)
	if err != nil {
		return err
	}

	if star {
		for name := range mod.Attrs {
			if !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			if path := s.Module + "." + name; !in.pol.IsImportAllowed(path) {
				return importDenied(path)
			}
		}
		for _, name := range names {
			in.scope.Set(name, mod.Attrs[name])
		}
		return nil
	}

	values := make([]Value, len(s.Names))
	for i, alias := range s.Names {
		v, ok := mod.Attrs[alias.Name]
		if !ok {
			return excf(ImportErrorType, "cannot import name '%s' from '%s'", alias.Name, s.Module)
		}
		values[i] = v
	}
	for i, alias := range s.Names {
		in.scope.Set(alias.Bound(), values[i])
	}
	return nil
}

func importDenied(path string) *result.Error {
	return result.Errorf(result.KindImportDenied, "%s", path)
}

// loadModule returns the native module registered under name, building it
// once per evaluation.
func (in *Interp) loadModule(name string) (*Module, error) {
	if mod, ok := in.modules[name]; ok {
		return mod, nil
	}
	build, ok := nativeModules[name]
	if !ok {
		return nil, excf(ModuleNotFoundErrorType, "No module named '%s'", name)
	}
	mod := build()
	in.modules[name] = mod
	return mod, nil
}
