package interp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/syntax"
)

// maxSequence bounds the element count of strings, lists and ranges that a
// single operation may materialize.
const maxSequence = 10_000_000

// contextCheckInterval is how many charged operations pass between checks
// of the caller's context.
const contextCheckInterval = 1024

// Input is one submission to the evaluator
type Input struct {
	Code      string
	Variables map[string]any
	Env       map[string]string
}

// Evaluator runs submissions under a fixed policy. It holds no per-run
// state and is safe for concurrent use.
type Evaluator struct {
	pol *policy.Policy
}

// New creates an Evaluator. A nil policy selects policy.Default().
func New(pol *policy.Policy) *Evaluator {
	if pol == nil {
		pol = policy.Default()
	}
	return &Evaluator{pol: pol}
}

// Policy returns the policy the evaluator enforces
func (e *Evaluator) Policy() *policy.Policy {
	return e.pol
}

// Interp is the state of one evaluation: scope chain, call depth, budget
// and captured output. It is created per submission and discarded after.
type Interp struct {
	ctx      context.Context
	pol      *policy.Policy
	budget   *policy.Budget
	out      *result.Output
	globals  *Scope
	scope    *Scope
	depth    int
	nextPoll int64
	last     Value
	ret      Value
	handling []*Exception
	modules  map[string]*Module
}

type flow int

const (
	flowNormal flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// Run evaluates input.Code and returns its result. Run never returns a nil
// result; every failure is reported through Result.Err.
func (e *Evaluator) Run(ctx context.Context, input Input) *result.Result {
	start := time.Now()
	in := &Interp{
		ctx:      ctx,
		pol:      e.pol,
		budget:   policy.NewBudget(e.pol.MaxOperations()),
		out:      result.NewOutput(e.pol.MaxOutputBytes()),
		globals:  NewScope(nil),
		modules:  map[string]*Module{},
		nextPoll: contextCheckInterval,
	}
	in.scope = in.globals

	res := &result.Result{}
	in.run(input, res)
	res.Output = in.out.Lines()
	res.OutputTruncated = in.out.Truncated()
	res.Operations = in.budget.Used()
	res.Duration = time.Since(start)
	return res
}

// run evaluates the program and fills in the outcome. Rendering the return
// value or the error happens here too, under the same recover.
func (in *Interp) run(input Input, res *result.Result) {
	defer func() {
		if r := recover(); r != nil {
			res.ReturnValue, res.IsFinalAnswer = nil, false
			if _, ok := r.(valueTooDeep); ok {
				res.Err = errValueTooDeep()
				return
			}
			res.Err = result.Errorf(result.KindRuntimeEvaluationError, "internal error: %v", r)
		}
	}()

	err := in.program(input)
	if err == nil && in.last != nil && !isNone(in.last) {
		err = in.chargeWalk(in.last)
	}

	var fa *finalAnswer
	switch {
	case errors.As(err, &fa):
		rv := repr(fa.value)
		res.ReturnValue = &rv
		res.IsFinalAnswer = true
	case err != nil:
		res.Err = toResultError(err)
	case in.last != nil && !isNone(in.last):
		rv := repr(in.last)
		res.ReturnValue = &rv
	}
}

func (in *Interp) program(input Input) error {
	if rerr := in.pol.CheckSource(input.Code); rerr != nil {
		return rerr
	}
	mod, err := syntax.Parse(input.Code)
	if err != nil {
		return syntaxError(err)
	}
	if err := in.bindInputs(input); err != nil {
		return err
	}

	for _, stmt := range mod.Body {
		in.last = nil
		fl, err := in.exec(stmt)
		if err != nil {
			return err
		}
		switch fl {
		case flowReturn:
			return result.Errorf(result.KindSyntaxError, "'return' outside function").AtLine(stmt.Position().Line)
		case flowBreak, flowContinue:
			return result.Errorf(result.KindSyntaxError, "'break' or 'continue' outside loop").AtLine(stmt.Position().Line)
		}
	}
	return nil
}

func (in *Interp) bindInputs(input Input) error {
	if input.Env != nil {
		env := NewDict()
		keys := make([]string, 0, len(input.Env))
		for k := range input.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env.SetStr(k, Str(input.Env[k]))
		}
		in.globals.Set("env", env)
	}

	names := make([]string, 0, len(input.Variables))
	for name := range input.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !isIdentifier(name) {
			return result.Errorf(result.KindRuntimeEvaluationError, "invalid variable name %q", name)
		}
		v, err := FromGo(input.Variables[name])
		if err != nil {
			return result.Errorf(result.KindRuntimeEvaluationError, "variable %s: %v", name, err)
		}
		in.globals.Set(name, v)
	}
	return nil
}

func syntaxError(err error) error {
	var serr *syntax.Error
	if errors.As(err, &serr) {
		return &result.Error{Kind: result.KindSyntaxError, Message: serr.Msg, Line: serr.Pos.Line}
	}
	return result.Errorf(result.KindSyntaxError, "%v", err)
}

// charge accounts for one evaluated node and polls the caller's context
func (in *Interp) charge() error {
	if err := in.budget.Charge(); err != nil {
		return err
	}
	return in.poll()
}

// poll checks the caller's context once every contextCheckInterval
// charged operations
func (in *Interp) poll() error {
	if in.ctx == nil || in.budget.Used() < in.nextPoll {
		return nil
	}
	in.nextPoll = in.budget.Used() + contextCheckInterval
	if err := in.ctx.Err(); err != nil {
		return result.Errorf(result.KindResourceExhausted, "evaluation interrupted: %v", err)
	}
	return nil
}

func checkSize(n int64) error {
	if n > maxSequence {
		return excf(MemoryErrorType, "sequence of %d elements exceeds the limit of %d", n, maxSequence)
	}
	return nil
}

// write appends s to the captured output
func (in *Interp) write(s string) {
	in.out.WriteString(s)
}

// withScope evaluates fn with sc as the current scope
func (in *Interp) withScope(sc *Scope, fn func() error) error {
	saved := in.scope
	in.scope = sc
	defer func() { in.scope = saved }()
	return fn()
}

func isIdentifier(name string) bool {
	if name == "" || syntax.IsKeyword(name) {
		return false
	}
	for i, r := range name {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || (i > 0 && '0' <= r && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func describe(v Value) string {
	return fmt.Sprintf("'%s' object", typeName(v))
}
