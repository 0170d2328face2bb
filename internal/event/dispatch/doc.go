// Package dispatch provides listener execution for the event manager.
//
// The Executor invokes one listener at a time on the caller's goroutine,
// which in the event manager is always the single dispatcher goroutine.
//
// # Panic Recovery
//
// A listener that panics does not take the dispatcher down. The panic is
// recovered, reported via a configurable PanicHandler and recorded in the
// Result; the event counts as not consumed. Panic values selected by the
// FatalFunc (for example a corrupted event header or a debug assertion) are
// re-raised instead.
//
// # Usage
//
//	executor := dispatch.NewExecutor(
//	    dispatch.WithPanicHandler(func(event any, h dispatch.Handler, v any, stack []byte) {
//	        logger.Error("listener panic", "value", v)
//	    }),
//	)
//	res := executor.Execute(evt, listener)
//	if res.Consumed {
//	    // stop delivering
//	}
package dispatch
