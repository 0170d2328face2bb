package dispatch

import "time"

// Handler is a listener as seen by the executor.
// This mirrors event.Listener to avoid circular imports.
type Handler interface {
	Notify(event any) bool
}

// Result represents the outcome of one listener invocation.
type Result struct {
	// Consumed is true if the listener claimed the event.
	Consumed bool

	// Panicked is true if the listener panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the listener took to run.
	Duration time.Duration
}

// PanicHandler is called when a listener panics during execution.
// It receives the event being processed, the panicking handler, the panic
// value and the stack trace.
type PanicHandler func(event any, handler Handler, panicValue any, stack []byte)

// FatalFunc reports whether a panic value must not be recovered.
type FatalFunc func(panicValue any) bool

// defaultPanicHandler is a no-op panic handler.
func defaultPanicHandler(any, Handler, any, []byte) {}
