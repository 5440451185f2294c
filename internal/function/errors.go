package function

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// LoadError reports a handler that could not be resolved
type LoadError struct {
	Handler string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load handler %s: %v", e.Handler, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InvocationError is a failure reported by a handler that runs outside the
// process, carrying the type name it declared.
type InvocationError struct {
	Message string
	Type    string
	Stack   []string
}

func (e *InvocationError) Error() string {
	return e.Message
}

func (e *InvocationError) ErrorType() string {
	if e.Type == "" {
		return "Error"
	}
	return e.Type
}

// PanicError wraps a value recovered from a panicking handler
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

type errorTyper interface {
	ErrorType() string
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ErrorType names the kind of err. Errors can choose their name by
// implementing ErrorType() string; otherwise the name of the concrete
// type behind the root cause is used, and unexported types read as "Error".
func ErrorType(err error) string {
	if err == nil {
		return "Error"
	}
	var typer errorTyper
	if errors.As(err, &typer) {
		return typer.ErrorType()
	}
	t := reflect.TypeOf(errors.Cause(err))
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper([]rune(name)[0]) {
		return "Error"
	}
	return name
}

// StackTrace returns the stack of err split into lines, or nil when err
// carries none.
func StackTrace(err error) []string {
	if err == nil {
		return nil
	}
	var invocationErr *InvocationError
	if errors.As(err, &invocationErr) && len(invocationErr.Stack) > 0 {
		return invocationErr.Stack
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) && len(panicErr.Stack) > 0 {
		return splitLines(string(panicErr.Stack))
	}
	var tracer stackTracer
	if errors.As(err, &tracer) {
		return splitLines(fmt.Sprintf("%s%+v", err.Error(), tracer.StackTrace()))
	}
	return nil
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
