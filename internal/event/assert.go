package event

// Unhandled reports that a listener received evt but has no handling path
// for it. It counts the event against its type and returns false, so a
// listener can end with
//
//	return event.Unhandled(evt)
//
// With debug assertions enabled on the registry it panics with
// *UnhandledError instead. The dispatcher does not recover that panic.
func Unhandled(evt Event) bool {
	h := evt.EventHeader()
	t := h.typ
	if t == nil {
		return false
	}
	t.unhandled.Add(1)
	if t.registry != nil && t.registry.Assertions() {
		panic(&UnhandledError{Type: t.name, Seq: h.seq})
	}
	return false
}
