// Package event implements the application event manager: a typed
// publish/subscribe bus with one dispatcher goroutine per Manager.
//
// # Declaring
//
// Event types and listeners are declared from package-level variables and
// init functions into a Registry (normally Default):
//
//	type ButtonEvent struct {
//	    event.Header
//	    KeyID   uint16
//	    Pressed bool
//	}
//
//	var ButtonEventType = event.Declare[ButtonEvent]("button_event")
//
//	func init() {
//	    event.Listen("leds", onEvent).Subscribe(ButtonEventType)
//	}
//
// Build validates the declarations and freezes them into an immutable
// Table. Validation errors (a second FINAL subscriber, a subscription to a
// type from another registry, duplicate names) are returned together in a
// *BuildError; nothing is detected later at run time.
//
// # Delivery
//
// Listeners of a type run in priority order FIRST, EARLY, NORMAL, FINAL
// and in declaration order within a class. A listener that returns true
// consumes the event and no later listener sees it. All listeners run on
// the dispatcher goroutine, serialized, and must not block.
//
// # Lifecycle of an event
//
//	evt, err := ButtonEventType.New(m)   // allocated, may fail with ErrOutOfMemory
//	evt.KeyID = 3
//	err = m.Submit(evt)                  // queued, owned by the manager
//	// delivering, then released by the dispatcher
//
// The header tag catches double frees and foreign events; such a
// violation panics with *HeaderError and is never recovered.
package event
