package sandbox

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/safebox/result"
)

func TestRealCommandRunner(t *testing.T) {
	runner := RealCommandRunner{}

	t.Run("NoCommand", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(context.Background(), nil, nil)
		require.Error(t, err)
	})

	t.Run("Stdin", func(t *testing.T) {
		stdout, _, code, err := runner.RunCommand(context.Background(), []string{"cat"}, strings.NewReader("piped"))
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, "piped", stdout)
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		_, stderr, code, err := runner.RunCommand(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 3"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, code)
		assert.Equal(t, "oops\n", stderr)
	})

	t.Run("Deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, _, _, err := runner.RunCommand(ctx, []string{"sleep", "5"}, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestWrapProgram(t *testing.T) {
	code := "print(\"\"\"quotes ' and \"\"\")\n"
	program, err := WrapProgram(code, map[string]any{"n": 3})
	require.NoError(t, err)

	assert.NotContains(t, program, "{{SOURCE}}")
	assert.NotContains(t, program, "{{VARIABLES}}")
	assert.NotContains(t, program, code)
	assert.Contains(t, program, base64.StdEncoding.EncodeToString([]byte(code)))
	assert.Contains(t, program, base64.StdEncoding.EncodeToString([]byte(`{"n":3}`)))

	_, err = WrapProgram("x", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func reportLine(payload string) string {
	return "some warning\n" + resultMarker + payload + "\n"
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name   string
		out    ExecOutput
		output []string
		rv     string
		final  bool
		kind   result.Kind
		msg    string
		line   int
	}{
		{
			name:   "ReturnValue",
			out:    ExecOutput{Stdout: "4.0\n", Stderr: reportLine(`{"return_value": "16"}`)},
			output: []string{"4.0"},
			rv:     "16",
		},
		{
			name:   "NoReturnValue",
			out:    ExecOutput{Stdout: "a\nb\n", Stderr: reportLine(`{}`)},
			output: []string{"a", "b"},
		},
		{
			name:   "FinalAnswer",
			out:    ExecOutput{Stderr: reportLine(`{"return_value": "'done'", "final": true}`)},
			output: []string{},
			rv:     "'done'",
			final:  true,
		},
		{
			name:   "SyntaxError",
			out:    ExecOutput{Stderr: reportLine(`{"error": {"type": "SyntaxError", "message": "invalid syntax", "line": 2}}`)},
			output: []string{},
			kind:   result.KindSyntaxError,
			msg:    "invalid syntax",
			line:   2,
		},
		{
			name:   "IndentationError",
			out:    ExecOutput{Stderr: reportLine(`{"error": {"type": "IndentationError", "message": "unexpected indent", "line": 1}}`)},
			output: []string{},
			kind:   result.KindSyntaxError,
			msg:    "unexpected indent",
			line:   1,
		},
		{
			name:   "RuntimeError",
			out:    ExecOutput{Stdout: "before\n", Stderr: reportLine(`{"error": {"type": "ZeroDivisionError", "message": "ZeroDivisionError: division by zero", "line": 3}}`), ExitCode: 0},
			output: []string{"before"},
			kind:   result.KindRuntimeEvaluationError,
			msg:    "ZeroDivisionError: division by zero",
			line:   3,
		},
		{
			name:   "Killed",
			out:    ExecOutput{Stdout: "partial\n", ExitCode: exitKilled},
			output: []string{"partial"},
			kind:   result.KindResourceExhausted,
		},
		{
			name:   "NoReport",
			out:    ExecOutput{Stderr: "python3: not found", ExitCode: 127},
			output: []string{},
			kind:   result.KindRuntimeEvaluationError,
			msg:    "program exited with status 127 without a result: python3: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseOutput(tt.out, 1000)
			assert.Equal(t, tt.output, res.Output)
			assert.Equal(t, tt.final, res.IsFinalAnswer)
			if tt.rv == "" {
				assert.Nil(t, res.ReturnValue)
			} else {
				require.NotNil(t, res.ReturnValue)
				assert.Equal(t, tt.rv, *res.ReturnValue)
			}
			if tt.kind == "" {
				assert.Nil(t, res.Err)
				return
			}
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, res.Err.Message)
			}
			assert.Equal(t, tt.line, res.Err.Line)
		})
	}
}

func TestParseOutputTruncation(t *testing.T) {
	res := ParseOutput(ExecOutput{Stdout: strings.Repeat("x", 30) + "\n", Stderr: reportLine(`{}`)}, 10)
	assert.True(t, res.OutputTruncated)
	assert.Equal(t, []string{strings.Repeat("x", 10)}, res.Output)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "state(42)", State(42).String())
}
