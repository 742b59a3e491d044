package result

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxOutputBytes caps captured output when no limit is configured
const DefaultMaxOutputBytes = 50000

// Output captures text written by evaluated code in write order. Bytes past
// the cap are dropped and the buffer is marked truncated. Output is not safe
// for concurrent use; it belongs to a single evaluation.
type Output struct {
	buf       strings.Builder
	max       int
	truncated bool
}

// NewOutput creates an Output holding at most maxBytes bytes. A non-positive
// limit selects DefaultMaxOutputBytes.
func NewOutput(maxBytes int) *Output {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}
	return &Output{max: maxBytes}
}

// Write implements io.Writer. It never fails so that a chatty program cannot
// turn an output cap into an evaluation error.
func (o *Output) Write(p []byte) (int, error) {
	o.WriteString(string(p))
	return len(p), nil
}

// WriteString appends s, honouring the cap
func (o *Output) WriteString(s string) {
	if o.truncated {
		return
	}
	room := o.max - o.buf.Len()
	if len(s) > room {
		// never split a multi-byte character
		for room > 0 && !utf8.RuneStart(s[room]) {
			room--
		}
		s = s[:room]
		o.truncated = true
	}
	o.buf.WriteString(s)
}

// Truncated reports whether any output was dropped
func (o *Output) Truncated() bool {
	return o.truncated
}

// String returns everything captured so far
func (o *Output) String() string {
	return o.buf.String()
}

// Lines returns the captured text split into lines
func (o *Output) Lines() []string {
	return SplitLines(o.buf.String())
}

// SplitLines splits text on newlines. A trailing newline does not produce an
// empty final line, and empty input yields an empty, non-nil slice.
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}
