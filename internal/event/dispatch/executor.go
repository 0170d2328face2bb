package dispatch

import (
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Executor invokes listeners with panic recovery and timing.
// It is used from a single dispatcher goroutine but its statistics may be
// read from any goroutine.
type Executor struct {
	panicHandler PanicHandler
	fatal        FatalFunc

	// Stats
	executed    atomic.Uint64
	consumed    atomic.Uint64
	panicked    atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the panic handler for the executor.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.panicHandler = h
		}
	}
}

// WithFatal sets the predicate selecting panic values that are re-raised
// instead of recovered.
func WithFatal(f FatalFunc) ExecutorOption {
	return func(e *Executor) {
		e.fatal = f
	}
}

// Execute runs one listener with the given event and returns the result.
// Panics are recovered unless the fatal predicate selects them.
func (e *Executor) Execute(event any, handler Handler) (result Result) {
	start := time.Now()
	e.executed.Add(1)

	defer func() {
		result.Duration = time.Since(start)
		e.totalTimeNs.Add(result.Duration.Nanoseconds())

		r := recover()
		if r == nil {
			return
		}
		if e.fatal != nil && e.fatal(r) {
			panic(r)
		}

		stack := debug.Stack()
		e.panicked.Add(1)

		result.Consumed = false
		result.Panicked = true
		result.PanicValue = r
		result.PanicStack = stack

		// Protect the panic handler call - don't let it crash the process
		if e.panicHandler != nil {
			func() {
				defer func() { _ = recover() }()
				e.panicHandler(event, handler, r, stack)
			}()
		}
	}()

	if handler.Notify(event) {
		result.Consumed = true
		e.consumed.Add(1)
	}
	return result
}

// Stats contains executor statistics.
type Stats struct {
	// Executed is the number of listener invocations.
	Executed uint64

	// Consumed is the number of invocations that consumed the event.
	Consumed uint64

	// Panicked is the number of invocations that panicked.
	Panicked uint64

	// TotalDuration is the cumulative time spent in listeners.
	TotalDuration time.Duration

	// AvgDuration is the average listener run time.
	AvgDuration time.Duration
}

// Stats returns executor statistics.
func (e *Executor) Stats() Stats {
	executed := e.executed.Load()
	totalNs := e.totalTimeNs.Load()

	var avgNs int64
	if executed > 0 {
		avgNs = totalNs / int64(executed)
	}

	return Stats{
		Executed:      executed,
		Consumed:      e.consumed.Load(),
		Panicked:      e.panicked.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}
