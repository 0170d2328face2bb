// Package module implements the module state convention: every module
// announces its own state transitions as module_state_event so other
// modules can gate on them.
package module

import (
	"fmt"
	"strings"

	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/profiler"
)

// ID names a module.
type ID string

// State is a module state.
type State uint8

const (
	// StateUninitialized is the state before a module reports anything.
	StateUninitialized State = iota

	// StateReady means the module is running.
	StateReady

	// StateOff means the module is powered down.
	StateOff

	// StateStandby means the module is idle and may be powered down.
	StateStandby

	// StateError means the module failed.
	StateError
)

var stateNames = [...]string{
	StateUninitialized: "UNINITIALIZED",
	StateReady:         "READY",
	StateOff:           "OFF",
	StateStandby:       "STANDBY",
	StateError:         "ERROR",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Active reports whether a module in state s keeps the system awake.
func (s State) Active() bool {
	return s == StateReady
}

// ParseState parses a state name, case-insensitively.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(s, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown module state %q", s)
}

// StateEvent announces a module state transition.
type StateEvent struct {
	event.Header
	Module ID
	State  State
}

// StateEventType is the well-known module state event.
var StateEventType = event.Declare[StateEvent]("module_state_event",
	event.WithFlags(event.FlagLogEnabled),
	event.WithLog(func(e *StateEvent) string {
		return fmt.Sprintf("module:%s state:%s", e.Module, e.State)
	}),
	event.WithProfile(profiler.Info{
		Labels: []string{"module", "state"},
		Types:  []profiler.ArgType{profiler.ArgString, profiler.ArgU8},
	}, func(e *StateEvent, b *profiler.Buffer) {
		b.PutString(string(e.Module))
		b.PutU8(uint8(e.State))
	}),
)

// Set announces that module id entered state s.
func Set(m *event.Manager, id ID, s State) error {
	evt, err := StateEventType.New(m)
	if err != nil {
		return fmt.Errorf("module %s: %w", id, err)
	}
	evt.Module = id
	evt.State = s
	return m.Submit(evt)
}

// Check reports whether evt announces that module id entered state s.
func Check(evt *StateEvent, id ID, s State) bool {
	return evt != nil && evt.Module == id && evt.State == s
}

// Cast returns evt as a module state event.
func Cast(evt event.Event) (*StateEvent, bool) {
	return StateEventType.Cast(evt)
}
