package interp

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/safebox/result"
)

func TestModules(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"Math", "import math\nprint(math.floor(2.7), math.gcd(12, 18), math.pi, math.factorial(5))",
			[]string{"2 6 3.141592653589793 120"}},
		{"MathAlias", "from math import sqrt as root, inf\nprint(root(2.25), inf > 10)", []string{"1.5 True"}},
		{"Statistics", "import statistics\nprint(statistics.mean([1, 2, 3, 4]), statistics.median([3, 1, 2]), statistics.mode('aab'))",
			[]string{"2.5 2 a"}},
		{"Counter", "from collections import Counter\nc = Counter('abca')\nprint(c.most_common(1), c['z'])",
			[]string{"[('a', 2)] 0"}},
		{"DefaultDict", "from collections import defaultdict\nd = defaultdict(list)\nd['k'].append(1)\nprint(dict(d))",
			[]string{"{'k': [1]}"}},
		{"Itertools", "import itertools\nprint(list(itertools.combinations([1, 2, 3], 2)), list(itertools.chain('ab', [1])))",
			[]string{"[(1, 2), (1, 3), (2, 3)] ['a', 'b', 1]"}},
		{"JSONDumps", `import json
print(json.dumps({"a": [1, 2.5, None, True]}))
print(json.dumps({"b": 1, "a": 2}, sort_keys=True, separators=(",", ":")))`,
			[]string{`{"a": [1, 2.5, null, true]}`, `{"a":2,"b":1}`}},
		{"JSONLoads", `import json
print(json.loads('{"b": 1, "a": [1, 2.5, "x"]}'))`,
			[]string{"{'b': 1, 'a': [1, 2.5, 'x']}"}},
		{"JSONIndent", `import json
print(json.dumps([1], indent=2))`,
			[]string{"[", "  1", "]"}},
		{"RegexSearch", `import re
m = re.search(r"(\d+)-(\d+)", "tel 12-34")
print(m.group(1), m.span(), m[2])`,
			[]string{"12 (4, 9) 34"}},
		{"RegexHelpers", `import re
print(re.findall(r"\d", "a1b2"), re.sub(r"(\w)(\d)", r"\2\1", "a1 b2"), re.split(r"[,;]", "a,b;c"))`,
			[]string{"['1', '2'] 1a 2b ['a', 'b', 'c']"}},
		{"RegexCompiled", `import re
p = re.compile(r"(?P<word>[a-z]+)", re.I)
print(p.match("Hello world").group("word"), p.fullmatch("Hi there"), len(p.findall("A b C")))`,
			[]string{"Hello None 3"}},
		{"RegexCallableRepl", `import re
print(re.sub(r"\d+", lambda m: str(int(m.group()) * 2), "a1 b20"))`,
			[]string{"a2 b40"}},
		{"String", "import string\nprint(string.ascii_lowercase[:3], string.capwords('hello world'))",
			[]string{"abc Hello World"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(tt.src)
			require.Nil(t, res.Err, "unexpected error: %v", res.Err)
			assert.Equal(t, tt.want, res.Output)
		})
	}
}

func TestModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		kind    result.Kind
		message string
	}{
		{"JSONDecode", "import json\njson.loads('{')", result.KindRuntimeEvaluationError, ""},
		{"JSONUnserializable", "import json\njson.dumps({1, 2})", result.KindRuntimeEvaluationError,
			"TypeError: Object of type set is not JSON serializable"},
		{"BadPattern", "import re\nre.compile('(')", result.KindRuntimeEvaluationError, ""},
		{"BadPatternCaught", "import re\ntry:\n    re.compile('(')\nexcept re.error as e:\n    raise ValueError(str(e))",
			result.KindRuntimeEvaluationError, ""},
		{"UnknownModuleAttribute", "import math\nmath.system", result.KindAttributeDenied, ""},
		{"MathDomain", "import math\nmath.sqrt(-1)", result.KindRuntimeEvaluationError, "ValueError: math domain error"},
		{"StatisticsEmpty", "import statistics\nstatistics.mean([])", result.KindRuntimeEvaluationError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(tt.src)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind, res.Err.Message)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.Err.Message)
			}
		})
	}
}

func TestPatternMessage(t *testing.T) {
	_, err := regexp.Compile("(")
	require.Error(t, err)
	assert.Equal(t, "missing closing ): (", patternMessage(err))
	assert.Equal(t, "plain", patternMessage(errors.New("plain")))
}

func TestModuleErrorsAreCatchable(t *testing.T) {
	res := run(`import json, re
try:
    json.loads("[1,")
except json.JSONDecodeError:
    print("json")
try:
    re.compile("[")
except re.error:
    print("re")
except ValueError:
    print("wrong")
`)
	require.Nil(t, res.Err, "unexpected error: %v", res.Err)
	assert.Equal(t, []string{"json", "re"}, res.Output)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{"b": []any{1, 2.5, nil}, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{'a': 'x', 'b': [1, 2.5, None]}", repr(v))

	_, err = FromGo(struct{}{})
	assert.Error(t, err)

	_, err = FromGo(uint64(1) << 63)
	assert.Error(t, err)
}
