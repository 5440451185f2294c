package core

import (
	"fmt"
	"time"
)

// offlineInfo is attached to failures raised by the gateway itself rather
// than by a handler.
const offlineInfo = "If you believe this is an issue with serverless-offline please report it, thanks."

// TimeoutError reports a handler that did not complete within its budget
type TimeoutError struct {
	Function string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("[Serverless-offline] Your λ handler %s timed out after %dms.", e.Function, e.Timeout.Milliseconds())
}
