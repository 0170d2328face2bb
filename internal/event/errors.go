package event

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the event manager.
var (
	// ErrOutOfMemory is returned when the allocation pool cannot hold another event.
	ErrOutOfMemory = errors.New("event pool out of memory")

	// ErrInvalidName is returned when a type or listener name is empty.
	ErrInvalidName = errors.New("invalid name")

	// ErrDuplicateType is returned when two event types share a name.
	ErrDuplicateType = errors.New("duplicate event type")

	// ErrDuplicateListener is returned when two listeners share a name.
	ErrDuplicateListener = errors.New("duplicate listener")

	// ErrNilHandler is returned when a listener is declared without a callback.
	ErrNilHandler = errors.New("listener callback cannot be nil")

	// ErrUnknownType is returned when a subscription or allocation names a
	// type that is not registered in the registry being built or used.
	ErrUnknownType = errors.New("unknown event type")

	// ErrUnknownListener is returned when a subscription names a listener
	// from a different registry.
	ErrUnknownListener = errors.New("unknown listener")

	// ErrDuplicateFinal is returned when a type has more than one FINAL subscriber.
	ErrDuplicateFinal = errors.New("more than one final subscriber")

	// ErrDuplicateFirst is returned when a type has more than one FIRST subscriber.
	ErrDuplicateFirst = errors.New("more than one first subscriber")

	// ErrDuplicateSubscription is returned when a listener subscribes to the same type twice.
	ErrDuplicateSubscription = errors.New("duplicate subscription")

	// ErrFinalOnly is returned when a non-final listener subscribes to a final-only type.
	ErrFinalOnly = errors.New("event type accepts only a final subscriber")

	// ErrInvalidPriority is returned for a priority outside the known classes.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrRegistryFrozen is returned when registering after the table was built.
	ErrRegistryFrozen = errors.New("registry already built")

	// ErrNilTable is returned when a manager is created without a listener table.
	ErrNilTable = errors.New("listener table cannot be nil")

	// ErrInvalidEvent is returned when a nil event is submitted.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrNotAllocated is returned when an event was not produced by this
	// manager's allocator or was already submitted.
	ErrNotAllocated = errors.New("event not allocated by this manager")

	// ErrNoDynData is returned when dynamic data is requested for a type
	// that does not embed DynData.
	ErrNoDynData = errors.New("event type has no dynamic data")

	// ErrAlreadyRunning is returned when Start is called on a running manager.
	ErrAlreadyRunning = errors.New("event manager is already running")

	// ErrNotRunning is returned when Stop is called on a manager that was never started.
	ErrNotRunning = errors.New("event manager is not running")

	// ErrStopped is returned when submitting to or restarting a stopped manager.
	ErrStopped = errors.New("event manager is stopped")
)

// BuildError collects every problem found while building a listener table.
type BuildError struct {
	Errs []error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "listener table: " + strings.Join(msgs, "; ")
}

// Unwrap returns the individual errors so errors.Is matches any of them.
func (e *BuildError) Unwrap() []error {
	return e.Errs
}

// HeaderError reports an event header whose tag does not allow the
// requested operation. It indicates a double free, a foreign header or
// memory corruption and is raised with panic.
type HeaderError struct {
	// Op is the operation that found the bad tag ("free", "deliver", "release").
	Op string

	// Type is the event type name, if the header carries one.
	Type string

	// Seq is the event sequence number.
	Seq uint64

	// Tag is the tag value that was found.
	Tag uint32
}

// Error implements the error interface.
func (e *HeaderError) Error() string {
	return fmt.Sprintf("corrupted event header on %s: type=%q seq=%d tag=%#08x", e.Op, e.Type, e.Seq, e.Tag)
}

// UnhandledError is the panic value raised by Unhandled when debug
// assertions are enabled.
type UnhandledError struct {
	Type string
	Seq  uint64
}

// Error implements the error interface.
func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled event %s (seq %d)", e.Type, e.Seq)
}
