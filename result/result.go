package result

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies why a submission failed
type Kind string

// Error kinds
const (
	KindSyntaxError            Kind = "SyntaxError"
	KindUnsupportedOperation   Kind = "UnsupportedOperation"
	KindImportDenied           Kind = "ImportDenied"
	KindAttributeDenied        Kind = "AttributeDenied"
	KindNameError              Kind = "NameError"
	KindResourceExhausted      Kind = "ResourceExhausted"
	KindRecursionExceeded      Kind = "RecursionExceeded"
	KindRuntimeEvaluationError Kind = "RuntimeEvaluationError"
	KindSandboxProvisionError  Kind = "SandboxProvisionError"
	KindSandboxTimeout         Kind = "SandboxTimeout"
)

// PolicyViolation reports whether the kind is raised by the authorization
// policy or one of the resource guards rather than by the evaluated code.
func (k Kind) PolicyViolation() bool {
	switch k {
	case KindUnsupportedOperation, KindImportDenied, KindAttributeDenied,
		KindResourceExhausted, KindRecursionExceeded:
		return true
	default:
		return false
	}
}

// Retryable reports whether a caller may resubmit unchanged source.
func (k Kind) Retryable() bool {
	return k == KindSandboxProvisionError
}

// Exhaustion reports whether the kind counts as resource exhaustion for
// reporting purposes. Remote timeouts are treated like a spent budget.
func (k Kind) Exhaustion() bool {
	return k == KindResourceExhausted || k == KindSandboxTimeout
}

// Error is the structured error attached to a Result
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Errorf creates an Error of the given kind
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AtLine returns a copy of e annotated with a source line. An existing line
// is kept so the innermost position wins.
func (e *Error) AtLine(line int) *Error {
	if e.Line > 0 || line <= 0 {
		return e
	}
	cp := *e
	cp.Line = line
	return &cp
}

// KindOf maps an arbitrary error onto the taxonomy
func KindOf(err error) Kind {
	var rerr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rerr):
		return rerr.Kind
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindSandboxTimeout
	default:
		return KindRuntimeEvaluationError
	}
}

// FromError converts err into an Error, keeping an existing *Error as is
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return &Error{Kind: KindOf(err), Message: err.Error()}
}

// Result is the outcome of one submission. It is built once by the backend
// and handed to the caller, who owns it from then on.
type Result struct {
	Output          []string      `json:"output"`
	ReturnValue     *string       `json:"return_value,omitempty"`
	Err             *Error        `json:"error,omitempty"`
	IsFinalAnswer   bool          `json:"is_final_answer,omitempty"`
	OutputTruncated bool          `json:"output_truncated,omitempty"`
	Operations      int64         `json:"operations,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
	Backend         string        `json:"backend"`
	SessionID       string        `json:"session_id,omitempty"`
}

// Failed reports whether the submission ended with an error
func (r *Result) Failed() bool {
	return r != nil && r.Err != nil
}

// Stdout joins the captured output lines
func (r *Result) Stdout() string {
	if r == nil || len(r.Output) == 0 {
		return ""
	}
	return strings.Join(r.Output, "\n") + "\n"
}

// Outcome is a short label for metrics and logs: "ok" or the error kind.
func (r *Result) Outcome() string {
	if r.Failed() {
		return string(r.Err.Kind)
	}
	return "ok"
}

// Failure builds a Result holding only an error
func Failure(backend string, err *Error) *Result {
	return &Result{Output: []string{}, Err: err, Backend: backend}
}
