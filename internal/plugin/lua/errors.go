package lua

import "errors"

// Errors for Lua scripts.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call exceeds its time limit.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNoHandler is returned when a script does not define on_event.
	ErrNoHandler = errors.New("script does not define " + HandlerName)

	// ErrNoEvents is returned when a script subscribes to nothing.
	ErrNoEvents = errors.New("script subscribes to no events")
)
