package interp

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
)

func newPolicy(t require.TestingT, opts policy.Options) *policy.Policy {
	pol, err := policy.New(opts)
	require.NoError(t, err)
	return pol
}

func run(src string) *result.Result {
	return New(nil).Run(context.Background(), Input{Code: src})
}

func TestScenarios(t *testing.T) {
	pol := newPolicy(t, policy.Options{
		AllowedImports:    []string{"math"},
		DangerousPatterns: []string{"math.nonexistent_danger"},
		MaxOperations:     1000,
	})
	ev := New(pol)

	t.Run("AllowedImport", func(t *testing.T) {
		res := ev.Run(context.Background(), Input{Code: "import math; print(math.sqrt(16))"})
		require.Nil(t, res.Err)
		assert.Equal(t, []string{"4.0"}, res.Output)
	})

	t.Run("DeniedImport", func(t *testing.T) {
		res := ev.Run(context.Background(), Input{Code: "import os"})
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindImportDenied, res.Err.Kind)
		assert.Equal(t, "os", res.Err.Message)
		assert.Empty(t, res.Output)
	})

	t.Run("DenyOverridesAllow", func(t *testing.T) {
		res := ev.Run(context.Background(), Input{Code: "from math import nonexistent_danger"})
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindImportDenied, res.Err.Kind)
		assert.Equal(t, "math.nonexistent_danger", res.Err.Message)
	})

	t.Run("BudgetStopsInfiniteLoop", func(t *testing.T) {
		small := New(newPolicy(t, policy.Options{MaxOperations: 5}))
		res := small.Run(context.Background(), Input{Code: "x=0\nwhile True:\n    x+=1"})
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
		assert.Equal(t, int64(5), res.Operations)
	})
}

func TestNothingRunsAfterDenial(t *testing.T) {
	res := run("print('before')\nimport os\nprint('after')\n")
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindImportDenied, res.Err.Kind)
	assert.Equal(t, 2, res.Err.Line)
	assert.Equal(t, []string{"before"}, res.Output)
}

func TestNothingRunsPastBudget(t *testing.T) {
	ev := New(newPolicy(t, policy.Options{MaxOperations: 50}))
	res := ev.Run(context.Background(), Input{Code: "x = 0\nwhile x < 100:\n    x += 1\nprint('done')\n"})
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
	assert.Empty(t, res.Output)
	assert.Equal(t, int64(50), res.Operations)
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"Arithmetic", "print(1 + 2 * 3, 7 / 2, 7 // 2, 7 % 3, -7 // 2, 2 ** 10)", []string{"7 3.5 3 1 -4 1024"}},
		{"Strings", `print("a" + "b" * 3, "a,b,,c".split(","), " x ".strip(), "-".join(["a", "b"]))`,
			[]string{"abbb ['a', 'b', '', 'c'] x a-b"}},
		{"FString", `print(f"{3.14159:.2f} {42:>5}|")`, []string{"3.14    42|"}},
		{"Comprehensions", `print([x * x for x in range(5) if x % 2 == 0], {k: v for k, v in zip("ab", [1, 2])})`,
			[]string{"[0, 4, 16] {'a': 1, 'b': 2}"}},
		{"Sorted", "print(sorted([3, 1, 2], reverse=True), sorted(['bb', 'a'], key=len))", []string{"[3, 2, 1] ['a', 'bb']"}},
		{"Functions", `
def f(a, b=2, *args, c=3, **kw):
    return a + b + c + sum(args) + len(kw)
print(f(1), f(1, 2, 3, 4, c=5, d=6))
`, []string{"6 16"}},
		{"Closures", `
def make(n):
    return lambda x: x + n
print(make(3)(4))
`, []string{"7"}},
		{"Recursion", `
def fib(n):
    return n if n < 2 else fib(n - 1) + fib(n - 2)
print(fib(15))
`, []string{"610"}},
		{"TryExcept", `
try:
    1 / 0
except ZeroDivisionError as e:
    print("caught", e)
else:
    print("unreachable")
finally:
    print("done")
`, []string{"caught division by zero", "done"}},
		{"Unpacking", "a, *b, c = [1, 2, 3, 4]\nprint(a, b, c)", []string{"1 [2, 3] 4"}},
		{"LoopElse", `
for i in range(3):
    if i == 5:
        break
else:
    print("no break")
n = 0
while True:
    n += 1
    if n == 3:
        break
print(n)
`, []string{"no break", "3"}},
		{"DictMethods", `
d = {"a": 1}
d.setdefault("b", 2)
print(d.get("c", 0), list(d.items()))
`, []string{"0 [('a', 1), ('b', 2)]"}},
		{"SliceAssignment", "xs = list(range(6))\nxs[1:3] = ['a']\ndel xs[::2]\nprint(xs)", []string{"['a', 4]"}},
		{"ChainedCompare", "x = 5\nprint(1 < x <= 5, x in {5, 6}, x is not None)", []string{"True True True"}},
		{"PrintKwargs", "print(1, 2, sep='-', end='!\\n')", []string{"1-2!"}},
		{"RaiseCustomMessage", `
try:
    raise ValueError("bad", 2)
except (TypeError, ValueError) as e:
    print(e.args)
`, []string{"('bad', 2)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(tt.src)
			require.Nil(t, res.Err, "unexpected error: %v", res.Err)
			assert.Equal(t, tt.want, res.Output)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind result.Kind
	}{
		{"SyntaxError", "x = (1,", result.KindSyntaxError},
		{"Class", "class A:\n    pass", result.KindUnsupportedOperation},
		{"With", "with x:\n    pass", result.KindUnsupportedOperation},
		{"Global", "def f():\n    global x\nf()", result.KindUnsupportedOperation},
		{"Walrus", "(y := 1)", result.KindUnsupportedOperation},
		{"MatMul", "a = 1 @ 2", result.KindUnsupportedOperation},
		{"Eval", "eval('1')", result.KindUnsupportedOperation},
		{"Open", "open('/etc/passwd')", result.KindUnsupportedOperation},
		{"DunderAttribute", "''.__class__", result.KindAttributeDenied},
		{"AttributeAssignment", "x = [1]\nx.y = 1", result.KindAttributeDenied},
		{"UnknownMethod", "[].nope()", result.KindAttributeDenied},
		{"DottedImport", "import os.path", result.KindImportDenied},
		{"RelativeImport", "from . import x", result.KindImportDenied},
		{"Undefined", "print(missing)", result.KindNameError},
		{"Recursion", "def f(n):\n    return f(n + 1)\nf(0)", result.KindRecursionExceeded},
		{"DivisionByZero", "1 // 0", result.KindRuntimeEvaluationError},
		{"Overflow", "2 ** 100", result.KindRuntimeEvaluationError},
		{"HugeRepeat", "'a' * 20000000", result.KindRuntimeEvaluationError},
		{"UncaughtRaise", "raise KeyError('k')", result.KindRuntimeEvaluationError},
		{"NotNativeModule", "import string\nimport collections.abc", result.KindRuntimeEvaluationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(tt.src)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind, res.Err.Message)
		})
	}
}

func TestRuntimeErrorMessage(t *testing.T) {
	res := run("x = 1\ny = x / 0\n")
	require.NotNil(t, res.Err)
	assert.Equal(t, "ZeroDivisionError: division by zero", res.Err.Message)
	assert.Equal(t, 2, res.Err.Line)
}

func TestPolicyErrorsAreNotCatchable(t *testing.T) {
	res := run(`
try:
    import os
except Exception:
    print("swallowed")
finally:
    print("finally")
`)
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindImportDenied, res.Err.Kind)
	assert.Empty(t, res.Output)
}

func TestPartialOutputKept(t *testing.T) {
	res := run("print('one')\nprint('two')\n[][0]\nprint('three')\n")
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindRuntimeEvaluationError, res.Err.Kind)
	assert.Equal(t, []string{"one", "two"}, res.Output)
}

func TestReturnValue(t *testing.T) {
	t.Run("LastExpression", func(t *testing.T) {
		res := run("x = [1, 2]\nx + [3]\n")
		require.Nil(t, res.Err)
		require.NotNil(t, res.ReturnValue)
		assert.Equal(t, "[1, 2, 3]", *res.ReturnValue)
		assert.False(t, res.IsFinalAnswer)
	})

	t.Run("NoneIsOmitted", func(t *testing.T) {
		res := run("print('x')\n")
		require.Nil(t, res.Err)
		assert.Nil(t, res.ReturnValue)
	})

	t.Run("FinalAnswerHalts", func(t *testing.T) {
		res := run("final_answer('done')\nprint('unreachable')\n")
		require.Nil(t, res.Err)
		require.NotNil(t, res.ReturnValue)
		assert.Equal(t, "'done'", *res.ReturnValue)
		assert.True(t, res.IsFinalAnswer)
		assert.Empty(t, res.Output)
	})
}

func TestInputs(t *testing.T) {
	res := New(nil).Run(context.Background(), Input{
		Code: "print(n + 1, names[0], cfg['k'], env['HOME'])",
		Variables: map[string]any{
			"n":     41,
			"names": []string{"ada"},
			"cfg":   map[string]any{"k": true},
		},
		Env: map[string]string{"HOME": "/home/sandbox"},
	})
	require.Nil(t, res.Err)
	assert.Equal(t, []string{"42 ada True /home/sandbox"}, res.Output)

	t.Run("InvalidName", func(t *testing.T) {
		res := New(nil).Run(context.Background(), Input{Code: "1", Variables: map[string]any{"not valid": 1}})
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindRuntimeEvaluationError, res.Err.Kind)
	})
}

func TestOutputTruncated(t *testing.T) {
	ev := New(newPolicy(t, policy.Options{MaxOutputBytes: 10}))
	res := ev.Run(context.Background(), Input{Code: "for i in range(10):\n    print('abcdef')\n"})
	require.Nil(t, res.Err)
	assert.True(t, res.OutputTruncated)
	assert.Equal(t, []string{"abcdef", "abc"}, res.Output)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(nil).Run(ctx, Input{Code: "while True:\n    pass\n"})
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
}

func TestBudgetProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64Range(1, 500).Draw(t, "max_ops")
		ev := New(newPolicy(t, policy.Options{MaxOperations: n}))
		res := ev.Run(context.Background(), Input{Code: "i = 0\nwhile True:\n    i += 1\n    print(i)\n"})
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
		assert.Equal(t, n, res.Operations)
	})
}

func TestDeterminismProperty(t *testing.T) {
	ev := New(nil)
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(-1000, 1000).Draw(t, "a")
		b := rapid.IntRange(1, 50).Draw(t, "b")
		src := fmt.Sprintf("xs = [i * %d %% %d for i in range(%d)]\nprint(sum(xs), sorted(xs)[:3], set(xs))\n{x: str(x) for x in xs}\n", a, b, b)

		first := ev.Run(context.Background(), Input{Code: src})
		second := ev.Run(context.Background(), Input{Code: src})
		require.Nil(t, first.Err)
		assert.Equal(t, first.Output, second.Output)
		assert.Equal(t, first.ReturnValue, second.ReturnValue)
		assert.Equal(t, first.Operations, second.Operations)
	})
}

func TestContainerWorkIsCharged(t *testing.T) {
	const budget = 10_000
	tests := []struct {
		name string
		src  string
	}{
		{"Str", "x = [[0] * 100] * 100\ny = str(x)\n"},
		{"Repr", "x = [[0] * 100] * 100\ny = repr(x)\n"},
		{"Print", "x = [[0] * 100] * 100\nprint(x)\n"},
		{"FString", "x = [[0] * 100] * 100\ny = f'{x}'\n"},
		{"Equality", "x = [[0] * 100] * 100\ny = x == [[0] * 100] * 100\n"},
		{"Ordering", "x = [[0] * 100] * 100\ny = x < [[0] * 100] * 100\n"},
		{"Sort", "x = [[0] * 100] * 100\ny = sorted(x)\n"},
		{"Hash", "t = ((0,) * 100,) * 100\nh = hash(t)\n"},
		{"Membership", "x = [[0] * 100] * 100\ny = [1] in x\n"},
		{"JSON", "import json\nx = [[0] * 100] * 100\ny = json.dumps(x)\n"},
		{"Repeat", "x = [0] * 20000\n"},
		{"LastExpression", "x = [[0] * 100] * 100\nx\n"},
	}

	ev := New(newPolicy(t, policy.Options{MaxOperations: budget}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ev.Run(context.Background(), Input{Code: tt.src})
			require.NotNil(t, res.Err)
			assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
			assert.LessOrEqual(t, res.Operations, int64(budget))
			assert.Nil(t, res.ReturnValue)
			assert.Empty(t, res.Output)
		})
	}

	t.Run("FitsInBudget", func(t *testing.T) {
		res := ev.Run(context.Background(), Input{Code: "x = [[0] * 10] * 10\nprint(len(str(x)), x == [[0] * 10] * 10)\n"})
		require.Nil(t, res.Err)
		assert.Equal(t, []string{"320 True"}, res.Output)
	})
}

func TestDeeplyNestedValues(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"Repr", "x = []\nfor i in range(5000):\n    x = [x]\ny = repr(x)\n"},
		{"LastExpression", "x = []\nfor i in range(5000):\n    x = [x]\nx\n"},
		{"Hash", "t = ()\nfor i in range(5000):\n    t = (t,)\nh = hash(t)\n"},
		{"DictKey", "t = ()\nfor i in range(5000):\n    t = (t,)\nd = {}\nd[t] = 1\n"},
		{"CyclicEquality", "a = []\na.append(a)\nb = []\nb.append(b)\na == b\n"},
		{"CyclicOrdering", "a = []\na.append(a)\nb = []\nb.append(b)\na < b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(tt.src)
			require.NotNil(t, res.Err)
			assert.Equal(t, result.KindRecursionExceeded, res.Err.Kind)
		})
	}

	t.Run("CycleRendersWithEllipsis", func(t *testing.T) {
		res := run("a = [1]\na.append(a)\nprint(a)\n")
		require.Nil(t, res.Err)
		assert.Equal(t, []string{"[1, [...]]"}, res.Output)
	})
}

func TestSourceLimits(t *testing.T) {
	t.Run("DeepParentheses", func(t *testing.T) {
		src := strings.Repeat("(", 100_000) + "1" + strings.Repeat(")", 100_000)
		res := run(src)
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindSyntaxError, res.Err.Kind)
		assert.Contains(t, res.Err.Message, "too many nested parentheses")
	})

	t.Run("DeepUnary", func(t *testing.T) {
		res := run(strings.Repeat("-", 200_000) + "1")
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindSyntaxError, res.Err.Kind)
	})

	t.Run("Oversized", func(t *testing.T) {
		src := strings.Repeat("(", 5_000_000) + "1" + strings.Repeat(")", 5_000_000)
		res := run(src)
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindResourceExhausted, res.Err.Kind)
		assert.Zero(t, res.Operations)
	})
}
