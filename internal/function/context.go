package function

import (
	"sync"
	"time"
)

// DoneFunc receives the outcome of one invocation
type DoneFunc func(err error, result any)

// Context is handed to every handler invocation. Exactly one of Done,
// Succeed or Fail takes effect; later calls are ignored.
type Context struct {
	FunctionName string
	AwsRequestID string
	Deadline     time.Time

	once sync.Once
	done DoneFunc
}

// NewContext creates the invocation context for one request
func NewContext(functionName, requestID string, timeout time.Duration, done DoneFunc) *Context {
	return &Context{
		FunctionName: functionName,
		AwsRequestID: requestID,
		Deadline:     time.Now().Add(timeout),
		done:         done,
	}
}

// RemainingTimeInMillis returns how long the handler has before it times
// out, never less than zero.
func (c *Context) RemainingTimeInMillis() int64 {
	remaining := time.Until(c.Deadline).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Done completes the invocation. A non-nil err marks a failure.
func (c *Context) Done(err error, result any) {
	c.once.Do(func() {
		if c.done != nil {
			c.done(err, result)
		}
	})
}

func (c *Context) Succeed(result any) {
	c.Done(nil, result)
}

func (c *Context) Fail(err error) {
	c.Done(err, nil)
}
