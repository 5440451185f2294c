package cnst

import "errors"

var (
	// ErrDuplicateFunctionName is returned when a function name is duplicated
	ErrDuplicateFunctionName = errors.New("duplicate function name")
	// ErrDuplicateRoute is returned when two endpoints share a method and path
	ErrDuplicateRoute = errors.New("duplicate route")
	// ErrNoDefaultResponse is returned when an endpoint lacks a "default" response
	ErrNoDefaultResponse = errors.New("endpoint has no default response")
	// ErrNoStage is returned when the project declares no stage
	ErrNoStage = errors.New("project declares no stage")

	// ErrHandlerNotFound is returned when a handler module cannot be resolved
	ErrHandlerNotFound = errors.New("handler module not found")
	// ErrHandlerNotCallable is returned when the resolved export is not a handler
	ErrHandlerNotCallable = errors.New("handler is not a function")

	ErrNotReceiver = errors.New("notifier cannot receive updates")
	ErrNotSender   = errors.New("notifier cannot send updates")
)
