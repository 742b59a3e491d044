package interp

import (
	"github.com/isdmx/safebox/result"
)

// maxValueDepth bounds how deeply a value may nest when it is rendered,
// compared, hashed or encoded.
const maxValueDepth = 1000

// bytesPerOp is how many bytes of a string one charged operation covers
// when the string is copied or rendered.
const bytesPerOp = 64

// valueTooDeep is panicked by the recursive value walkers when a value
// nests past maxValueDepth. run recovers it as RecursionExceeded.
type valueTooDeep struct{}

func checkValueDepth(depth int) {
	if depth > maxValueDepth {
		panic(valueTooDeep{})
	}
}

func errValueTooDeep() *result.Error {
	return result.Errorf(result.KindRecursionExceeded,
		"maximum recursion depth of %d exceeded while walking a nested value", maxValueDepth)
}

// weigher counts the values a full traversal visits. Shared references
// count on every visit, the way repr and == walk them.
type weigher struct {
	limit int64
	n     int64
	deep  bool
	seen  map[any]bool
}

// weigh returns the traversal size of v, stopping as soon as it passes
// limit. deep reports nesting past maxValueDepth.
func weigh(v Value, limit int64) (n int64, deep bool) {
	w := &weigher{limit: limit}
	w.walk(v, 0)
	return w.n, w.deep
}

func (w *weigher) stop() bool {
	return w.deep || w.n > w.limit
}

func (w *weigher) walk(v Value, depth int) {
	w.n++
	if w.stop() {
		return
	}
	if depth > maxValueDepth {
		w.deep = true
		return
	}
	switch x := v.(type) {
	case Str:
		w.n += int64(len(x)) / bytesPerOp
	case Tuple:
		w.each(x, depth)
	case *List:
		if w.enter(x) {
			w.each(x.Elems, depth)
			delete(w.seen, x)
		}
	case *Dict:
		if w.enter(x) {
			w.each(x.keys, depth)
			w.each(x.vals, depth)
			delete(w.seen, x)
		}
	case *Set:
		w.each(x.items, depth)
	case *Exception:
		w.each(x.Args, depth)
	}
}

// enter marks a mutable container as on the current path; a container
// already on the path is a cycle and is not descended again.
func (w *weigher) enter(c any) bool {
	if w.seen == nil {
		w.seen = map[any]bool{}
	}
	if w.seen[c] {
		return false
	}
	w.seen[c] = true
	return true
}

func (w *weigher) each(vs []Value, depth int) {
	for _, elt := range vs {
		if w.stop() {
			return
		}
		w.walk(elt, depth+1)
	}
}

// needsWalk reports whether traversing v costs more than the single
// operation its evaluation was already charged.
func needsWalk(v Value) bool {
	switch x := v.(type) {
	case Str:
		return len(x) >= bytesPerOp
	case Tuple, *List, *Dict, *Set, *Exception:
		return true
	}
	return false
}

// chargeWalk charges the budget for traversing vs before the traversal
// runs. A traversal that does not fit in the remaining budget is refused
// without doing the work.
func (in *Interp) chargeWalk(vs ...Value) error {
	var total int64
	for _, v := range vs {
		if !needsWalk(v) {
			continue
		}
		n, deep := weigh(v, in.budget.Remaining()-total+1)
		if deep {
			return errValueTooDeep()
		}
		total += n - 1
	}
	return in.chargeN(total)
}

// chargeN charges n operations at once
func (in *Interp) chargeN(n int64) error {
	if n <= 0 {
		return nil
	}
	if err := in.budget.ChargeN(n); err != nil {
		return err
	}
	return in.poll()
}

// seqCost is the number of operations copying v's elements costs
func seqCost(v Value) int64 {
	switch x := v.(type) {
	case Str:
		return int64(len(x)) / bytesPerOp
	case *List:
		return int64(len(x.Elems))
	case Tuple:
		return int64(len(x))
	}
	return 0
}

// chargeBinary charges for the elements a sequence operator copies or
// renders before the operator runs.
func (in *Interp) chargeBinary(op string, a, b Value) error {
	switch op {
	case "+":
		return in.chargeN(seqCost(a) + seqCost(b))
	case "*":
		if n, ok := repeatCount(b); ok {
			return in.chargeN(seqCost(a) * n)
		}
		if n, ok := repeatCount(a); ok {
			return in.chargeN(seqCost(b) * n)
		}
	case "%":
		if _, ok := a.(Str); ok {
			return in.chargeWalk(b)
		}
	}
	return nil
}

func repeatCount(v Value) (int64, bool) {
	n, ok := v.(Int)
	if !ok {
		return 0, false
	}
	switch {
	case n < 0:
		return 0, true
	case n > maxSequence:
		// repeat refuses this size anyway; keep the product in range
		return maxSequence + 1, true
	}
	return int64(n), true
}

// walksArgs wraps a builtin whose work grows with the size of its
// arguments, charging for a traversal of them first.
func walksArgs(fn BuiltinFunc) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := in.chargeWalk(args...); err != nil {
			return nil, err
		}
		return fn(in, args, kwargs)
	}
}

// walksMethod is walksArgs for methods that also traverse the receiver
func walksMethod(fn methodFunc) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := in.chargeWalk(recv); err != nil {
			return nil, err
		}
		if err := in.chargeWalk(args...); err != nil {
			return nil, err
		}
		return fn(in, recv, args, kwargs)
	}
}
