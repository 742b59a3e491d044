package result

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput(t *testing.T) {
	t.Run("CapturesLinesInOrder", func(t *testing.T) {
		out := NewOutput(0)
		fmt.Fprintln(out, "first")
		out.WriteString("second\nthird")
		assert.Equal(t, []string{"first", "second", "third"}, out.Lines())
		assert.False(t, out.Truncated())
	})

	t.Run("TruncatesAtCap", func(t *testing.T) {
		out := NewOutput(5)
		out.WriteString("abc")
		out.WriteString("defgh")
		out.WriteString("ignored")
		assert.Equal(t, "abcde", out.String())
		assert.True(t, out.Truncated())
	})

	t.Run("TruncatesAtCharacterBoundary", func(t *testing.T) {
		tests := []struct {
			name  string
			limit int
			write string
			want  string
		}{
			{name: "TwoByte", limit: 4, write: "abcé", want: "abc"},
			{name: "ThreeByte", limit: 5, write: "ab€€", want: "ab€"},
			{name: "FourByteAtStart", limit: 3, write: "😀x", want: ""},
			{name: "ExactFit", limit: 5, write: "abcéz", want: "abcé"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out := NewOutput(tt.limit)
				out.WriteString(tt.write)
				assert.Equal(t, tt.want, out.String())
				assert.True(t, utf8.ValidString(out.String()))
				assert.True(t, out.Truncated())
			})
		}
	})

	t.Run("EmptyOutputHasNoLines", func(t *testing.T) {
		out := NewOutput(10)
		lines := out.Lines()
		require.NotNil(t, lines)
		assert.Empty(t, lines)
	})
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Empty", "", []string{}},
		{"SingleLine", "4.0\n", []string{"4.0"}},
		{"NoTrailingNewline", "a\nb", []string{"a", "b"}},
		{"BlankLineKept", "a\n\nb\n", []string{"a", "", "b"}},
		{"WindowsEndings", "a\r\nb\r\n", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLines(tt.input))
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Run("StructuredError", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", Errorf(KindImportDenied, "os"))
		assert.Equal(t, KindImportDenied, KindOf(err))
	})

	t.Run("DeadlineIsTimeout", func(t *testing.T) {
		assert.Equal(t, KindSandboxTimeout, KindOf(context.DeadlineExceeded))
	})

	t.Run("OtherErrorsAreRuntime", func(t *testing.T) {
		assert.Equal(t, KindRuntimeEvaluationError, KindOf(errors.New("boom")))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(nil))
		assert.Nil(t, FromError(nil))
	})
}

func TestKindClassification(t *testing.T) {
	assert.True(t, KindImportDenied.PolicyViolation())
	assert.True(t, KindResourceExhausted.PolicyViolation())
	assert.False(t, KindRuntimeEvaluationError.PolicyViolation())
	assert.True(t, KindSandboxProvisionError.Retryable())
	assert.False(t, KindSyntaxError.Retryable())
	assert.True(t, KindSandboxTimeout.Exhaustion())
	assert.True(t, KindResourceExhausted.Exhaustion())
}

func TestErrorFormatting(t *testing.T) {
	err := Errorf(KindNameError, "name '%s' is not defined", "x")
	assert.Equal(t, "NameError: name 'x' is not defined", err.Error())

	located := err.AtLine(3)
	assert.Equal(t, "NameError: name 'x' is not defined (line 3)", located.Error())
	assert.Equal(t, 3, located.AtLine(7).Line)
	assert.Equal(t, 0, err.Line)
}

func TestResultHelpers(t *testing.T) {
	res := &Result{Output: []string{"a", "b"}}
	assert.Equal(t, "a\nb\n", res.Stdout())
	assert.Equal(t, "ok", res.Outcome())
	assert.False(t, res.Failed())

	failed := Failure("local", Errorf(KindSyntaxError, "invalid syntax"))
	assert.True(t, failed.Failed())
	assert.Equal(t, "SyntaxError", failed.Outcome())
	assert.Empty(t, failed.Output)
}
