package errors

import "fmt"

// ErrUnsupportedRuntime is returned when a function names a runtime the gateway cannot run
func ErrUnsupportedRuntime(runtime string) error {
	return fmt.Errorf("unsupported runtime %q", runtime)
}

// ErrUnknownNotifierType is returned when the notifier type is not recognized
func ErrUnknownNotifierType(typ string) error {
	return fmt.Errorf("unknown notifier type: %s", typ)
}

// ErrUnexpectedStatus is returned when a peer answers with a non-OK status
func ErrUnexpectedStatus(code int) error {
	return fmt.Errorf("unexpected status code: %d", code)
}

// ErrMissingTarget is returned when a sender has nowhere to send
func ErrMissingTarget(kind string) error {
	return fmt.Errorf("%s target is not configured", kind)
}
