package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/isdmx/safebox/result"
)

// resultMarker prefixes the report line the wrapper writes to stderr
const resultMarker = "__SAFEBOX_RESULT__ "

// exitKilled is the exit status of a process killed by SIGKILL, which is
// how the container runtime enforces the memory cap.
const exitKilled = 137

const wrapperTemplate = `import ast, base64, json, sys

class _FinalAnswer(BaseException):
    def __init__(self, value):
        self.value = value

def final_answer(answer):
    raise _FinalAnswer(answer)

def _report(payload):
    sys.stdout.flush()
    sys.stderr.write("\n` + resultMarker + `" + json.dumps(payload) + "\n")
    sys.stderr.flush()

_src = base64.b64decode("{{SOURCE}}").decode("utf-8")
_scope = {"__name__": "__main__", "final_answer": final_answer}
_scope.update(json.loads(base64.b64decode("{{VARIABLES}}").decode("utf-8")))
_payload = {}
try:
    _tree = ast.parse(_src, "<submission>", "exec")
    _last = None
    if _tree.body and isinstance(_tree.body[-1], ast.Expr):
        _last = ast.Expression(_tree.body.pop().value)
    exec(compile(_tree, "<submission>", "exec"), _scope)
    if _last is not None:
        _value = eval(compile(_last, "<submission>", "eval"), _scope)
        if _value is not None:
            _payload["return_value"] = repr(_value)
except _FinalAnswer as _fa:
    _payload["return_value"] = repr(_fa.value)
    _payload["final"] = True
except SyntaxError as _e:
    _payload["error"] = {"type": type(_e).__name__, "message": str(_e.msg), "line": _e.lineno or 0}
except BaseException as _e:
    _line = 0
    _tb = _e.__traceback__
    while _tb is not None:
        if _tb.tb_frame.f_code.co_filename == "<submission>":
            _line = _tb.tb_lineno
        _tb = _tb.tb_next
    _msg = type(_e).__name__
    if str(_e):
        _msg += ": " + str(_e)
    _payload["error"] = {"type": type(_e).__name__, "message": _msg, "line": _line}
_report(_payload)
`

// WrapProgram embeds code and its injected variables in the wrapper that
// captures the last expression value and the error class. The submission is
// base64 encoded so no quoting of the source is needed.
func WrapProgram(code string, variables map[string]any) (string, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	vars, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("failed to encode variables: %w", err)
	}
	return strings.NewReplacer(
		"{{SOURCE}}", base64.StdEncoding.EncodeToString([]byte(code)),
		"{{VARIABLES}}", base64.StdEncoding.EncodeToString(vars),
	).Replace(wrapperTemplate), nil
}

type report struct {
	ReturnValue *string `json:"return_value"`
	Final       bool    `json:"final"`
	Error       *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Line    int    `json:"line"`
	} `json:"error"`
}

// ParseOutput turns the raw output of a wrapped program into a Result.
// Stdout is captured under maxOutputBytes; the report line on stderr
// carries the return value and error.
func ParseOutput(out ExecOutput, maxOutputBytes int) *result.Result {
	captured := result.NewOutput(maxOutputBytes)
	captured.WriteString(out.Stdout)
	res := &result.Result{
		Output:          captured.Lines(),
		OutputTruncated: captured.Truncated(),
	}

	rep, ok := findReport(out.Stderr)
	switch {
	case ok && rep.Error != nil:
		kind := result.KindRuntimeEvaluationError
		switch rep.Error.Type {
		case "SyntaxError", "IndentationError", "TabError":
			kind = result.KindSyntaxError
		}
		res.Err = &result.Error{Kind: kind, Message: rep.Error.Message, Line: rep.Error.Line}
	case ok:
		res.ReturnValue = rep.ReturnValue
		res.IsFinalAnswer = rep.Final
	case out.ExitCode == exitKilled:
		res.Err = result.Errorf(result.KindResourceExhausted, "process killed, memory or process limit reached")
	default:
		res.Err = result.Errorf(result.KindRuntimeEvaluationError,
			"program exited with status %d without a result: %s", out.ExitCode, tail(out.Stderr, 500))
	}
	return res
}

func findReport(stderr string) (report, bool) {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		payload, ok := strings.CutPrefix(lines[i], resultMarker)
		if !ok {
			continue
		}
		var rep report
		if err := json.Unmarshal([]byte(payload), &rep); err != nil {
			return report{}, false
		}
		return rep, true
	}
	return report{}, false
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
