package interp

import (
	"errors"
	"fmt"

	"github.com/isdmx/safebox/result"
)

// Exception is a runtime exception raised by evaluated code. It is the only
// error that try/except can catch; policy errors are *result.Error values
// and always propagate.
type Exception struct {
	Class *Type
	Args  []Value
	Line  int
}

var (
	BaseExceptionType       = &Type{Name: "BaseException", Base: ObjectType}
	ExceptionType           = &Type{Name: "Exception", Base: BaseExceptionType}
	ArithmeticErrorType     = &Type{Name: "ArithmeticError", Base: ExceptionType}
	ZeroDivisionErrorType   = &Type{Name: "ZeroDivisionError", Base: ArithmeticErrorType}
	OverflowErrorType       = &Type{Name: "OverflowError", Base: ArithmeticErrorType}
	LookupErrorType         = &Type{Name: "LookupError", Base: ExceptionType}
	KeyErrorType            = &Type{Name: "KeyError", Base: LookupErrorType}
	IndexErrorType          = &Type{Name: "IndexError", Base: LookupErrorType}
	ValueErrorType          = &Type{Name: "ValueError", Base: ExceptionType}
	TypeErrorType           = &Type{Name: "TypeError", Base: ExceptionType}
	RuntimeErrorType        = &Type{Name: "RuntimeError", Base: ExceptionType}
	NotImplementedErrorType = &Type{Name: "NotImplementedError", Base: RuntimeErrorType}
	AssertionErrorType      = &Type{Name: "AssertionError", Base: ExceptionType}
	AttributeErrorType      = &Type{Name: "AttributeError", Base: ExceptionType}
	StopIterationType       = &Type{Name: "StopIteration", Base: ExceptionType}
	MemoryErrorType         = &Type{Name: "MemoryError", Base: ExceptionType}
	ImportErrorType         = &Type{Name: "ImportError", Base: ExceptionType}
	ModuleNotFoundErrorType = &Type{Name: "ModuleNotFoundError", Base: ImportErrorType}
	UnicodeErrorType        = &Type{Name: "UnicodeError", Base: ValueErrorType}
	StatisticsErrorType     = &Type{Name: "StatisticsError", Base: ValueErrorType}
	JSONDecodeErrorType     = &Type{Name: "JSONDecodeError", Base: ValueErrorType}
	PatternErrorType        = &Type{Name: "error", Base: ExceptionType}
)

// exceptionTypes are the classes bound as builtins
var exceptionTypes = []*Type{
	BaseExceptionType, ExceptionType, ArithmeticErrorType, ZeroDivisionErrorType,
	OverflowErrorType, LookupErrorType, KeyErrorType, IndexErrorType,
	ValueErrorType, TypeErrorType, RuntimeErrorType, NotImplementedErrorType,
	AssertionErrorType, AttributeErrorType, StopIterationType, MemoryErrorType,
	ImportErrorType, ModuleNotFoundErrorType,
}

func isExceptionClass(t *Type) bool {
	return t.IsSubclass(BaseExceptionType)
}

// excf builds an exception of class t with a formatted message
func excf(t *Type, format string, args ...any) *Exception {
	return &Exception{Class: t, Args: []Value{Str(fmt.Sprintf(format, args...))}}
}

// Message renders the exception arguments the way str() does
func (e *Exception) Message() string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		if e.Class.IsSubclass(KeyErrorType) {
			return repr(e.Args[0])
		}
		return str(e.Args[0])
	default:
		return repr(Tuple(e.Args))
	}
}

func (e *Exception) Error() string {
	if msg := e.Message(); msg != "" {
		return e.Class.Name + ": " + msg
	}
	return e.Class.Name
}

// finalAnswer halts evaluation after final_answer() recorded a value
type finalAnswer struct {
	value Value
}

func (*finalAnswer) Error() string {
	return "final answer"
}

func unsupported(format string, args ...any) *result.Error {
	return result.Errorf(result.KindUnsupportedOperation, format, args...)
}

func attributeDenied(format string, args ...any) *result.Error {
	return result.Errorf(result.KindAttributeDenied, format, args...)
}

// atLine attaches a source line to err if it has none yet
func atLine(err error, line int) error {
	var exc *Exception
	var rerr *result.Error
	switch {
	case errors.As(err, &exc):
		if exc.Line == 0 {
			exc.Line = line
		}
		return err
	case errors.As(err, &rerr):
		return rerr.AtLine(line)
	}
	return err
}

// toResultError converts an evaluation error into the structured form
func toResultError(err error) *result.Error {
	var exc *Exception
	if errors.As(err, &exc) {
		return &result.Error{
			Kind:    result.KindRuntimeEvaluationError,
			Message: exc.Error(),
			Line:    exc.Line,
		}
	}
	return result.FromError(err)
}
