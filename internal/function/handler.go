package function

import (
	"context"
	"runtime/debug"
)

// Event is the rendered request handed to a handler
type Event = map[string]any

// Handler runs one invocation and reports its outcome through lc. Invoke
// may return before the outcome is reported, or never report it at all.
type Handler interface {
	Invoke(ctx context.Context, event Event, lc *Context)
}

// HandlerFunc adapts a callback style function to Handler
type HandlerFunc func(ctx context.Context, event Event, lc *Context)

func (f HandlerFunc) Invoke(ctx context.Context, event Event, lc *Context) {
	f(ctx, event, lc)
}

// AsyncFunc is a handler that returns its outcome. It runs on its own
// goroutine and a panic is reported as a failure.
type AsyncFunc func(ctx context.Context, event Event) (any, error)

func (f AsyncFunc) Invoke(ctx context.Context, event Event, lc *Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				lc.Fail(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		result, err := f(ctx, event)
		lc.Done(err, result)
	}()
}

// asHandler converts a registered export into a Handler
func asHandler(export any) (Handler, bool) {
	switch h := export.(type) {
	case Handler:
		return h, h != nil
	case func(context.Context, Event, *Context):
		return HandlerFunc(h), h != nil
	case func(context.Context, Event) (any, error):
		return AsyncFunc(h), h != nil
	default:
		return nil, false
	}
}
