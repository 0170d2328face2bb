// Package lua runs event listeners written in Lua.
//
// A script defines a global on_event function. It receives one table per
// event and returns true to consume it:
//
//	function on_event(evt)
//	    if evt.type == "button_event" and evt.Pressed then
//	        appevent.log("pressed", {key = evt.KeyID, seq = evt.seq})
//	        return true
//	    end
//	    return false
//	end
//
// The table carries type, seq and size from the header, data for events
// with a dynamic payload, and the exported payload fields under their Go
// names.
//
// Scripts are declared into a registry before it is built, usually from
// the [[script]] sections of the configuration:
//
//	s, err := lua.Declare(event.Default, cfg, logger)
//
// The state is opened with the base, table, string and math libraries
// only. Loading functions are removed, print goes to the script's logger,
// and each call is bounded by an execution timeout.
package lua
