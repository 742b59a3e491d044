package interp

import (
	"math"
	"strings"
)

// nativeModules maps importable module names to their builders. Each
// evaluation builds its own instance so mutations never leak across runs.
var nativeModules map[string]func() *Module

func init() {
	nativeModules = map[string]func() *Module{
		"math":        mathModule,
		"statistics":  statisticsModule,
		"string":      stringModule,
		"collections": collectionsModule,
		"itertools":   itertoolsModule,
		"json":        jsonModule,
		"re":          reModule,
	}
}

func newModule(name string, attrs map[string]Value, funcs map[string]BuiltinFunc) *Module {
	m := &Module{Name: name, Attrs: attrs}
	if m.Attrs == nil {
		m.Attrs = map[string]Value{}
	}
	for fn, impl := range funcs {
		m.Attrs[fn] = newBuiltin(fn, impl)
	}
	return m
}

// math

func mathModule() *Module {
	return newModule("math", map[string]Value{
		"pi":  Float(math.Pi),
		"e":   Float(math.E),
		"tau": Float(2 * math.Pi),
		"inf": Float(math.Inf(1)),
		"nan": Float(math.NaN()),
	}, map[string]BuiltinFunc{
		"sqrt":      mathUnary("sqrt", math.Sqrt, func(x float64) bool { return x >= 0 }),
		"exp":       mathUnary("exp", math.Exp, nil),
		"log2":      mathUnary("log2", math.Log2, positive),
		"log10":     mathUnary("log10", math.Log10, positive),
		"log1p":     mathUnary("log1p", math.Log1p, func(x float64) bool { return x > -1 }),
		"sin":       mathUnary("sin", math.Sin, finite),
		"cos":       mathUnary("cos", math.Cos, finite),
		"tan":       mathUnary("tan", math.Tan, finite),
		"asin":      mathUnary("asin", math.Asin, unitRange),
		"acos":      mathUnary("acos", math.Acos, unitRange),
		"atan":      mathUnary("atan", math.Atan, nil),
		"sinh":      mathUnary("sinh", math.Sinh, nil),
		"cosh":      mathUnary("cosh", math.Cosh, nil),
		"tanh":      mathUnary("tanh", math.Tanh, nil),
		"fabs":      mathUnary("fabs", math.Abs, nil),
		"degrees":   mathUnary("degrees", func(x float64) float64 { return x * 180 / math.Pi }, nil),
		"radians":   mathUnary("radians", func(x float64) float64 { return x * math.Pi / 180 }, nil),
		"floor":     mathRound("floor", math.Floor),
		"ceil":      mathRound("ceil", math.Ceil),
		"trunc":     mathRound("trunc", math.Trunc),
		"isnan":     mathPredicate("isnan", math.IsNaN),
		"isinf":     mathPredicate("isinf", func(x float64) bool { return math.IsInf(x, 0) }),
		"isfinite":  mathPredicate("isfinite", func(x float64) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }),
		"pow":       mathBinary("pow", mathPow),
		"atan2":     mathBinary("atan2", func(y, x float64) (float64, error) { return math.Atan2(y, x), nil }),
		"copysign":  mathBinary("copysign", func(x, y float64) (float64, error) { return math.Copysign(x, y), nil }),
		"fmod":      mathBinary("fmod", mathFmod),
		"log":       mathLog,
		"hypot":     mathHypot,
		"factorial": mathFactorial,
		"gcd":       mathGCD,
		"lcm":       mathLCM,
		"isqrt":     mathIsqrt,
		"comb":      mathComb,
		"perm":      mathPerm,
		"fsum":      mathFsum,
		"prod":      mathProd,
		"isclose":   mathIsclose,
		"modf":      mathModf,
	})
}

func domainError() *Exception {
	return excf(ValueErrorType, "math domain error")
}

func positive(x float64) bool  { return x > 0 }
func finite(x float64) bool    { return !math.IsInf(x, 0) }
func unitRange(x float64) bool { return x >= -1 && x <= 1 }

func mathUnary(name string, fn func(float64) float64, domain func(float64) bool) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		x, err := wantFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		if domain != nil && !math.IsNaN(x) && !domain(x) {
			return nil, domainError()
		}
		r := fn(x)
		if math.IsInf(r, 0) && !math.IsInf(x, 0) {
			return nil, excf(OverflowErrorType, "math range error")
		}
		return Float(r), nil
	}
}

func mathBinary(name string, fn func(a, b float64) (float64, error)) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 2, 2); err != nil {
			return nil, err
		}
		a, err := wantFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := wantFloat(name, args[1])
		if err != nil {
			return nil, err
		}
		r, err := fn(a, b)
		if err != nil {
			return nil, err
		}
		return Float(r), nil
	}
}

func mathPow(a, b float64) (float64, error) {
	if a == 0 && b < 0 {
		return 0, domainError()
	}
	if a < 0 && b != math.Trunc(b) && !math.IsInf(b, 0) {
		return 0, domainError()
	}
	r := math.Pow(a, b)
	if math.IsInf(r, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
		return 0, excf(OverflowErrorType, "math range error")
	}
	return r, nil
}

func mathFmod(a, b float64) (float64, error) {
	if b == 0 || math.IsInf(a, 0) {
		return 0, domainError()
	}
	return math.Mod(a, b), nil
}

func mathRound(name string, fn func(float64) float64) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		if n, ok := asInt(args[0]); ok {
			return Int(n), nil
		}
		x, err := wantFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		return floatToInt(fn(x))
	}
}

func mathPredicate(name string, fn func(float64) bool) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		x, err := wantFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		return Bool(fn(x)), nil
	}
}

func mathLog(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("log", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	x, err := wantFloat("log", args[0])
	if err != nil {
		return nil, err
	}
	if x <= 0 {
		return nil, domainError()
	}
	if len(args) == 1 {
		return Float(math.Log(x)), nil
	}
	base, err := wantFloat("log", args[1])
	if err != nil {
		return nil, err
	}
	if base <= 0 || base == 1 {
		if base == 1 {
			return nil, excf(ZeroDivisionErrorType, "float division by zero")
		}
		return nil, domainError()
	}
	return Float(math.Log(x) / math.Log(base)), nil
}

func mathHypot(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("hypot", args, kwargs, 0, -1); err != nil {
		return nil, err
	}
	sum := 0.0
	for _, a := range args {
		x, err := wantFloat("hypot", a)
		if err != nil {
			return nil, err
		}
		sum += x * x
	}
	return Float(math.Sqrt(sum)), nil
}

func wantNonNegative(fn string, v Value) (int64, error) {
	n, err := wantInt(fn, v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, excf(ValueErrorType, "%s() not defined for negative values", fn)
	}
	return n, nil
}

func mathFactorial(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("factorial", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	n, err := wantNonNegative("factorial", args[0])
	if err != nil {
		return nil, err
	}
	var r Value = Int(1)
	for i := int64(2); i <= n; i++ {
		if r, err = mulInt(int64(r.(Int)), i); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func mathGCD(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("gcd", args, kwargs, 0, -1); err != nil {
		return nil, err
	}
	g := int64(0)
	for _, a := range args {
		n, err := wantInt("gcd", a)
		if err != nil {
			return nil, err
		}
		g = gcd(g, n)
	}
	return Int(g), nil
}

func mathLCM(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("lcm", args, kwargs, 0, -1); err != nil {
		return nil, err
	}
	var l Value = Int(1)
	for _, a := range args {
		n, err := wantInt("lcm", a)
		if err != nil {
			return nil, err
		}
		cur := int64(l.(Int))
		if n == 0 || cur == 0 {
			l = Int(0)
			continue
		}
		if n < 0 {
			n = -n
		}
		if l, err = mulInt(cur/gcd(cur, n), n); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func mathIsqrt(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("isqrt", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	n, err := wantInt("isqrt", args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, excf(ValueErrorType, "isqrt() argument must be nonnegative")
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n && (r+1)*(r+1) > 0 {
		r++
	}
	return Int(r), nil
}

func combPerm(fn string, args []Value, kwargs []Kwarg, choose bool) (Value, error) {
	if err := exactArgs(fn, args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	n, err := wantNonNegative(fn, args[0])
	if err != nil {
		return nil, err
	}
	k := n
	if len(args) == 2 && !isNone(args[1]) {
		if k, err = wantNonNegative(fn, args[1]); err != nil {
			return nil, err
		}
	} else if choose {
		return nil, excf(TypeErrorType, "comb() missing required argument 'k' (pos 2)")
	}
	if k > n {
		return Int(0), nil
	}
	if choose && k > n-k {
		k = n - k
	}
	var r Value = Int(1)
	for i := int64(0); i < k; i++ {
		if r, err = mulInt(int64(r.(Int)), n-i); err != nil {
			return nil, err
		}
		if choose {
			r = Int(int64(r.(Int)) / (i + 1))
		}
	}
	return r, nil
}

func mathComb(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	return combPerm("comb", args, kwargs, true)
}

func mathPerm(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	return combPerm("perm", args, kwargs, false)
}

// floats collects numeric items of an iterable
func (in *Interp) floats(fn string, v Value) ([]float64, []Value, error) {
	items, err := in.toSlice(v)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := asFloat(item)
		if !ok {
			return nil, nil, excf(TypeErrorType, "%s: can't convert type '%s' to numerator/denominator", fn, typeName(item))
		}
		out[i] = f
	}
	return out, items, nil
}

func mathFsum(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("fsum", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	xs, _, err := in.floats("fsum", args[0])
	if err != nil {
		return nil, err
	}
	return Float(kahan(xs)), nil
}

// kahan sums with Neumaier compensation
func kahan(xs []float64) float64 {
	sum, c := 0.0, 0.0
	for _, x := range xs {
		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			c += (sum - t) + x
		} else {
			c += (x - t) + sum
		}
		sum = t
	}
	return sum + c
}

func mathProd(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("prod", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	var acc Value = Int(1)
	if a[1] != nil {
		acc = a[1]
	}
	err = in.iterate(a[0], func(item Value) error {
		v, err := binaryOp("*", acc, item)
		acc = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func mathIsclose(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("isclose", args, kwargs, []string{"a", "b", "rel_tol", "abs_tol"}, 2)
	if err != nil {
		return nil, err
	}
	x, err := wantFloat("isclose", a[0])
	if err != nil {
		return nil, err
	}
	y, err := wantFloat("isclose", a[1])
	if err != nil {
		return nil, err
	}
	rel, abs := 1e-9, 0.0
	if a[2] != nil {
		if rel, err = wantFloat("isclose", a[2]); err != nil {
			return nil, err
		}
	}
	if a[3] != nil {
		if abs, err = wantFloat("isclose", a[3]); err != nil {
			return nil, err
		}
	}
	if rel < 0 || abs < 0 {
		return nil, excf(ValueErrorType, "tolerances must be non-negative")
	}
	if x == y {
		return Bool(true), nil
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Bool(false), nil
	}
	diff := math.Abs(x - y)
	return Bool(diff <= math.Abs(rel*y) || diff <= math.Abs(rel*x) || diff <= abs), nil
}

func mathModf(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("modf", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	x, err := wantFloat("modf", args[0])
	if err != nil {
		return nil, err
	}
	i, f := math.Modf(x)
	return Tuple{Float(f), Float(i)}, nil
}

// statistics

func statisticsModule() *Module {
	return newModule("statistics", map[string]Value{
		"StatisticsError": StatisticsErrorType,
	}, map[string]BuiltinFunc{
		"mean":        statsMean(false),
		"fmean":       statsMean(true),
		"median":      statsMedian("median"),
		"median_low":  statsMedian("median_low"),
		"median_high": statsMedian("median_high"),
		"mode":        statsMode,
		"multimode":   statsMultimode,
		"variance":    statsVariance("variance", true, false),
		"pvariance":   statsVariance("pvariance", false, false),
		"stdev":       statsVariance("stdev", true, true),
		"pstdev":      statsVariance("pstdev", false, true),
	})
}

func allInts(items []Value) bool {
	for _, v := range items {
		if _, ok := asInt(v); !ok {
			return false
		}
	}
	return true
}

// exactOrFloat returns an int when ints produced an integral result
func exactOrFloat(ints bool, f float64) Value {
	if ints && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

func statsMean(float bool) BuiltinFunc {
	name := "mean"
	if float {
		name = "fmean"
	}
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		xs, items, err := in.floats(name, args[0])
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return nil, excf(StatisticsErrorType, "%s requires at least one data point", name)
		}
		m := kahan(xs) / float64(len(xs))
		if float {
			return Float(m), nil
		}
		return exactOrFloat(allInts(items), m), nil
	}
}

func statsMedian(kind string) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(kind, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, excf(StatisticsErrorType, "no median for empty data")
		}
		sorted, err := in.sortValues(items, None, false)
		if err != nil {
			return nil, err
		}
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		switch kind {
		case "median_low":
			return sorted[n/2-1], nil
		case "median_high":
			return sorted[n/2], nil
		}
		sum, err := binaryOp("+", sorted[n/2-1], sorted[n/2])
		if err != nil {
			return nil, err
		}
		return binaryOp("/", sum, Int(2))
	}
}

// counts tallies items preserving first-seen order
func counts(items []Value) (*Dict, error) {
	d := NewDict()
	for _, item := range items {
		if err := counterAdd(d, item, 1); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func statsMode(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("mode", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, excf(StatisticsErrorType, "no mode for empty data")
	}
	d, err := counts(items)
	if err != nil {
		return nil, err
	}
	best, bestN := d.keys[0], int64(0)
	for i, k := range d.keys {
		if n := int64(d.vals[i].(Int)); n > bestN {
			best, bestN = k, n
		}
	}
	return best, nil
}

func statsMultimode(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("multimode", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	d, err := counts(items)
	if err != nil {
		return nil, err
	}
	var top int64
	for _, v := range d.vals {
		top = max(top, int64(v.(Int)))
	}
	var out []Value
	for i, k := range d.keys {
		if int64(d.vals[i].(Int)) == top {
			out = append(out, k)
		}
	}
	return newList(out), nil
}

func statsVariance(name string, sample, root bool) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(name, args, kwargs, 1, 2); err != nil {
			return nil, err
		}
		xs, items, err := in.floats(name, args[0])
		if err != nil {
			return nil, err
		}
		minN := 1
		if sample {
			minN = 2
		}
		if len(xs) < minN {
			if sample {
				return nil, excf(StatisticsErrorType, "%s requires at least two data points", name)
			}
			return nil, excf(StatisticsErrorType, "%s requires at least one data point", name)
		}
		var mu float64
		if len(args) == 2 && !isNone(args[1]) {
			if mu, err = wantFloat(name, args[1]); err != nil {
				return nil, err
			}
		} else {
			mu = kahan(xs) / float64(len(xs))
		}
		sq := make([]float64, len(xs))
		for i, x := range xs {
			sq[i] = (x - mu) * (x - mu)
		}
		denom := float64(len(xs))
		if sample {
			denom--
		}
		v := kahan(sq) / denom
		if root {
			return Float(math.Sqrt(v)), nil
		}
		return exactOrFloat(allInts(items), v), nil
	}
}

// string

func stringModule() *Module {
	const (
		lower  = "abcdefghijklmnopqrstuvwxyz"
		upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		digits = "0123456789"
		punct  = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
		space  = " \t\n\r\x0b\x0c"
	)
	return newModule("string", map[string]Value{
		"ascii_lowercase": Str(lower),
		"ascii_uppercase": Str(upper),
		"ascii_letters":   Str(lower + upper),
		"digits":          Str(digits),
		"hexdigits":       Str(digits + "abcdefABCDEF"),
		"octdigits":       Str("01234567"),
		"punctuation":     Str(punct),
		"whitespace":      Str(space),
		"printable":       Str(digits + lower + upper + punct + space),
	}, map[string]BuiltinFunc{
		"capwords": func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("capwords", args, kwargs, 1, 2); err != nil {
				return nil, err
			}
			s, err := wantStr("capwords", args[0])
			if err != nil {
				return nil, err
			}
			var words []string
			sep := " "
			if len(args) == 2 && !isNone(args[1]) {
				if sep, err = wantStr("capwords", args[1]); err != nil {
					return nil, err
				}
				words = strings.Split(s, sep)
			} else {
				words = strings.Fields(s)
			}
			for i, w := range words {
				words[i] = capitalize(w)
			}
			return Str(strings.Join(words, sep)), nil
		},
	})
}

// collections

func collectionsModule() *Module {
	return newModule("collections", map[string]Value{
		"Counter":     CounterType,
		"defaultdict": DefaultDictType,
		"OrderedDict": DictType,
	}, map[string]BuiltinFunc{
		"namedtuple": func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			return nil, unsupported("namedtuple is not supported")
		},
		"deque": func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			return nil, unsupported("deque is not supported")
		},
	})
}

// itertools; every function materializes its result

func itertoolsModule() *Module {
	return newModule("itertools", nil, map[string]BuiltinFunc{
		"chain":                         iterChain,
		"product":                       iterProduct,
		"permutations":                  iterPermutations,
		"combinations":                  iterCombinations(false),
		"combinations_with_replacement": iterCombinations(true),
		"accumulate":                    iterAccumulate,
		"islice":                        iterIslice,
		"zip_longest":                   iterZipLongest,
		"groupby":                       iterGroupBy,
		"repeat":                        iterRepeat,
	})
}

// emitter collects generated tuples, charging the budget per item
type emitter struct {
	in  *Interp
	out []Value
}

func (e *emitter) emit(v Value) error {
	if err := e.in.charge(); err != nil {
		return err
	}
	e.out = append(e.out, v)
	return checkSize(int64(len(e.out)))
}

func iterChain(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("chain", args, kwargs, 0, -1); err != nil {
		return nil, err
	}
	var out []Value
	for _, a := range args {
		items, err := in.toSlice(a)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if err := checkSize(int64(len(out))); err != nil {
			return nil, err
		}
	}
	return newList(out), nil
}

func iterProduct(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	repeatN := int64(1)
	for _, kw := range kwargs {
		if kw.Name != "repeat" {
			return nil, excf(TypeErrorType, "product() got an unexpected keyword argument '%s'", kw.Name)
		}
		n, err := wantInt("product", kw.Value)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, excf(ValueErrorType, "repeat argument cannot be negative")
		}
		repeatN = n
	}
	var pools [][]Value
	for r := int64(0); r < repeatN; r++ {
		for _, a := range args {
			items, err := in.toSlice(a)
			if err != nil {
				return nil, err
			}
			pools = append(pools, items)
		}
	}

	e := &emitter{in: in}
	cur := make([]Value, len(pools))
	var rec func(depth int) error
	rec = func(depth int) error {
		if depth == len(pools) {
			return e.emit(append(Tuple(nil), cur...))
		}
		for _, v := range pools[depth] {
			cur[depth] = v
			if err := rec(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(0); err != nil {
		return nil, err
	}
	return newList(e.out), nil
}

func iterPermutations(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("permutations", args, kwargs, []string{"iterable", "r"}, 1)
	if err != nil {
		return nil, err
	}
	pool, err := in.toSlice(a[0])
	if err != nil {
		return nil, err
	}
	r, err := optInt("permutations", a[1], int64(len(pool)))
	if err != nil {
		return nil, err
	}
	if r < 0 {
		return nil, excf(ValueErrorType, "r must be non-negative")
	}
	e := &emitter{in: in}
	if r > int64(len(pool)) {
		return newList(nil), nil
	}
	used := make([]bool, len(pool))
	cur := make([]Value, 0, r)
	var rec func() error
	rec = func() error {
		if int64(len(cur)) == r {
			return e.emit(append(Tuple(nil), cur...))
		}
		for i, v := range pool {
			if used[i] {
				continue
			}
			used[i] = true
			cur = append(cur, v)
			if err := rec(); err != nil {
				return err
			}
			cur = cur[:len(cur)-1]
			used[i] = false
		}
		return nil
	}
	if err := rec(); err != nil {
		return nil, err
	}
	return newList(e.out), nil
}

func iterCombinations(replacement bool) BuiltinFunc {
	name := "combinations"
	if replacement {
		name = "combinations_with_replacement"
	}
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs(name, args, kwargs, []string{"iterable", "r"}, 2)
		if err != nil {
			return nil, err
		}
		pool, err := in.toSlice(a[0])
		if err != nil {
			return nil, err
		}
		r, err := wantInt(name, a[1])
		if err != nil {
			return nil, err
		}
		if r < 0 {
			return nil, excf(ValueErrorType, "r must be non-negative")
		}
		e := &emitter{in: in}
		cur := make([]Value, 0, r)
		var rec func(start int) error
		rec = func(start int) error {
			if int64(len(cur)) == r {
				return e.emit(append(Tuple(nil), cur...))
			}
			for i := start; i < len(pool); i++ {
				cur = append(cur, pool[i])
				next := i + 1
				if replacement {
					next = i
				}
				if err := rec(next); err != nil {
					return err
				}
				cur = cur[:len(cur)-1]
			}
			return nil
		}
		if err := rec(0); err != nil {
			return nil, err
		}
		return newList(e.out), nil
	}
}

func iterAccumulate(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("accumulate", args, kwargs, []string{"iterable", "func", "initial"}, 1)
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(a[0])
	if err != nil {
		return nil, err
	}
	var out []Value
	var acc Value
	if a[2] != nil && !isNone(a[2]) {
		acc = a[2]
		out = append(out, acc)
	}
	for _, item := range items {
		if acc == nil {
			acc = item
		} else if a[1] == nil || isNone(a[1]) {
			if acc, err = binaryOp("+", acc, item); err != nil {
				return nil, err
			}
		} else if acc, err = in.call(a[1], []Value{acc, item}, nil); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return newList(out), nil
}

func iterIslice(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("islice", args, kwargs, 2, 4); err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	var lo, hi, step Value = None, None, None
	switch len(args) {
	case 2:
		hi = args[1]
	case 3:
		lo, hi = args[1], args[2]
	default:
		lo, hi, step = args[1], args[2], args[3]
	}
	for _, v := range []Value{lo, hi, step} {
		if n, ok := asInt(v); ok && n < 0 {
			return nil, excf(ValueErrorType, "Indices for islice() must be None or an integer: 0 <= x <= sys.maxsize.")
		}
	}
	return sliceValue(newList(items), lo, hi, step)
}

func iterZipLongest(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	var fill Value = None
	for _, kw := range kwargs {
		if kw.Name != "fillvalue" {
			return nil, excf(TypeErrorType, "zip_longest() got an unexpected keyword argument '%s'", kw.Name)
		}
		fill = kw.Value
	}
	cols := make([][]Value, len(args))
	longest := 0
	for i, a := range args {
		items, err := in.toSlice(a)
		if err != nil {
			return nil, err
		}
		cols[i] = items
		longest = max(longest, len(items))
	}
	out := make([]Value, longest)
	for r := range out {
		row := make(Tuple, len(cols))
		for c := range cols {
			row[c] = fill
			if r < len(cols[c]) {
				row[c] = cols[c][r]
			}
		}
		out[r] = row
	}
	return newList(out), nil
}

func iterGroupBy(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("groupby", args, kwargs, []string{"iterable", "key"}, 1)
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(a[0])
	if err != nil {
		return nil, err
	}
	var out []Value
	var curKey Value
	var group []Value
	flush := func() {
		if group != nil {
			out = append(out, Tuple{curKey, newList(group)})
		}
	}
	for _, item := range items {
		k := item
		if a[1] != nil && !isNone(a[1]) {
			if k, err = in.call(a[1], []Value{item}, nil); err != nil {
				return nil, err
			}
		}
		if group != nil && equal(k, curKey) {
			group = append(group, item)
			continue
		}
		flush()
		curKey, group = k, []Value{item}
	}
	flush()
	return newList(out), nil
}

func iterRepeat(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("repeat", args, kwargs, []string{"object", "times"}, 1)
	if err != nil {
		return nil, err
	}
	if a[1] == nil {
		return nil, unsupported("itertools.repeat without times is unbounded")
	}
	n, err := wantInt("repeat", a[1])
	if err != nil {
		return nil, err
	}
	v, _, err := repeat(Tuple{a[0]}, n)
	if err != nil {
		return nil, err
	}
	return newList(v.(Tuple)), nil
}
