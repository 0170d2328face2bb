package event

// Default is the process-wide registry used by Declare, Listen and Build.
// Packages declare their event types and listeners into it from
// package-level variables and init functions; main builds it once.
var Default = NewRegistry()

// Listen declares a listener in the Default registry.
//
//	var _ = event.Listen("click_detector", onEvent).
//	    SubscribeEarly(ButtonEventType)
func Listen(name string, fn HandlerFunc) *Listener {
	return Default.Listen(name, fn)
}

// Build builds the Default registry.
func Build() (*Table, error) {
	return Default.Build()
}

// MustBuild builds the Default registry and panics on error.
func MustBuild() *Table {
	return Default.MustBuild()
}
