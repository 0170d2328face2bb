package event

import (
	"sync/atomic"

	"github.com/dshills/appevent/internal/profiler"
)

// TypeID is the dense identifier of a registered event type. IDs are
// assigned in registration order starting at zero.
type TypeID uint16

// Type is the registered metadata of one event type. Everything except the
// two display toggles is fixed at registration.
type Type struct {
	id       TypeID
	name     string
	flags    Flags
	size     int64
	registry *Registry

	format  func(Event) string
	profile *profiler.Info
	encode  func(Event, *profiler.Buffer)

	logEnabled     atomic.Bool
	profileEnabled atomic.Bool
	unhandled      atomic.Uint64
}

// TypeProvider is implemented by *Type and by typed descriptors.
type TypeProvider interface {
	EventType() *Type
}

// EventType returns t.
func (t *Type) EventType() *Type { return t }

// ID returns the type's dense identifier.
func (t *Type) ID() TypeID { return t.id }

// Name returns the unique type name.
func (t *Type) Name() string { return t.name }

// String returns the type name.
func (t *Type) String() string { return t.name }

// Flags returns the registration flags.
func (t *Type) Flags() Flags { return t.flags }

// Size returns the base number of bytes accounted per instance.
func (t *Type) Size() int64 { return t.size }

// HasLog reports whether the type has a log formatter.
func (t *Type) HasLog() bool { return t.format != nil }

// Format renders evt with the type's log formatter. It returns "" when the
// type has no formatter.
func (t *Type) Format(evt Event) string {
	if t.format == nil {
		return ""
	}
	return t.format(evt)
}

// ProfileInfo returns the profiler argument description, if any.
func (t *Type) ProfileInfo() (profiler.Info, bool) {
	if t.profile == nil {
		return profiler.Info{}, false
	}
	return *t.profile, true
}

// Encode writes the profiled arguments of evt into b.
func (t *Type) Encode(evt Event, b *profiler.Buffer) {
	if t.encode != nil {
		t.encode(evt, b)
	}
}

// LogEnabled reports whether trace logging is on for this type.
func (t *Type) LogEnabled() bool { return t.logEnabled.Load() }

// SetLogEnabled turns trace logging on or off at run time.
func (t *Type) SetLogEnabled(on bool) { t.logEnabled.Store(on) }

// ProfileEnabled reports whether profiler records are emitted for this type.
func (t *Type) ProfileEnabled() bool { return t.profileEnabled.Load() }

// SetProfileEnabled turns profiler records on or off at run time. It has no
// effect on a type registered without profiler information.
func (t *Type) SetProfileEnabled(on bool) {
	if t.profile == nil {
		on = false
	}
	t.profileEnabled.Store(on)
}

// Unhandled returns how many times a listener reported this type unhandled.
func (t *Type) Unhandled() uint64 { return t.unhandled.Load() }

// TypeOption configures an event type at registration.
type TypeOption func(*Type)

// WithFlags sets registration flags.
func WithFlags(f Flags) TypeOption {
	return func(t *Type) {
		t.flags |= f
	}
}

// WithLog sets the human-readable formatter used by trace logging.
// Events whose concrete type is not P render as "".
func WithLog[P Event](fn func(P) string) TypeOption {
	return func(t *Type) {
		if fn == nil {
			return
		}
		t.format = func(evt Event) string {
			if p, ok := evt.(P); ok {
				return fn(p)
			}
			return ""
		}
	}
}

// WithProfile sets the profiler argument description and the encoder that
// writes those arguments for one event.
func WithProfile[P Event](info profiler.Info, fn func(P, *profiler.Buffer)) TypeOption {
	return func(t *Type) {
		t.profile = &info
		if fn == nil {
			return
		}
		t.encode = func(evt Event, b *profiler.Buffer) {
			if p, ok := evt.(P); ok {
				fn(p, b)
			}
		}
	}
}

func withSize(n int64) TypeOption {
	return func(t *Type) {
		t.size = n
	}
}
