package event

import (
	"fmt"
	"strings"
)

// Priority selects the delivery class of a subscription.
// Lower values are delivered first.
type Priority int

const (
	// PriorityFirst runs before every other listener. At most one per type.
	PriorityFirst Priority = iota

	// PriorityEarly runs before normal listeners, in declaration order.
	PriorityEarly

	// PriorityNormal is the default class, in declaration order.
	PriorityNormal

	// PriorityFinal runs last. At most one per type.
	PriorityFinal
)

// String returns the priority class name.
func (p Priority) String() string {
	switch p {
	case PriorityFirst:
		return "first"
	case PriorityEarly:
		return "early"
	case PriorityNormal:
		return "normal"
	case PriorityFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the known classes.
func (p Priority) Valid() bool {
	return p >= PriorityFirst && p <= PriorityFinal
}

// ParsePriority parses a priority class name. The empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return PriorityFirst, nil
	case "early":
		return PriorityEarly, nil
	case "", "normal":
		return PriorityNormal, nil
	case "final":
		return PriorityFinal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// Flags are per-type registration flags.
type Flags uint8

const (
	// FlagLogEnabled turns on trace logging for the type at startup.
	FlagLogEnabled Flags = 1 << iota

	// FlagProfileEnabled turns on profiler records for the type at startup.
	FlagProfileEnabled

	// FlagFinalOnly restricts the type to a single FINAL subscriber.
	FlagFinalOnly
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// String lists the set flags.
func (f Flags) String() string {
	var parts []string
	if f.Has(FlagLogEnabled) {
		parts = append(parts, "log")
	}
	if f.Has(FlagProfileEnabled) {
		parts = append(parts, "profile")
	}
	if f.Has(FlagFinalOnly) {
		parts = append(parts, "final-only")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// HandlerFunc is a listener callback. It runs on the dispatcher goroutine
// and returns true when it consumed the event, which stops delivery to the
// remaining listeners.
type HandlerFunc func(evt Event) bool

// DispatcherState is the state of the delivery loop.
type DispatcherState int32

const (
	// StateStopped means the dispatcher goroutine is not running.
	StateStopped DispatcherState = iota

	// StateIdle means the dispatcher is waiting for the queue.
	StateIdle

	// StateDelivering means the dispatcher is walking a listener list.
	StateDelivering
)

// String returns the state name.
func (s DispatcherState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateIdle:
		return "idle"
	case StateDelivering:
		return "delivering"
	default:
		return "unknown"
	}
}

// SubmitHook runs on the producer goroutine after an event is queued.
type SubmitHook func(evt Event)

// PreProcessHook runs on the dispatcher goroutine before the listener walk.
type PreProcessHook func(evt Event)

// PostProcessHook runs on the dispatcher goroutine after the listener walk.
type PostProcessHook func(evt Event, consumed bool)

// PostInitHook runs once the dispatcher has started.
type PostInitHook func(m *Manager)
