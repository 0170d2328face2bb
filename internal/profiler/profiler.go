// Package profiler defines the binary tracing hook used by the event manager.
//
// Each event type that opts into profiling registers a TypeDescriptor
// naming and typing its arguments. The manager then emits a Record when an
// event is submitted (carrying the encoded arguments) and when its delivery
// starts and ends. Sinks decide where records go: memory, a binary stream,
// or a remote broker.
package profiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArgType is the wire type of one profiled argument.
type ArgType uint8

const (
	ArgU8 ArgType = iota
	ArgS8
	ArgU16
	ArgS16
	ArgU32
	ArgS32
	ArgString
	ArgTime
)

// String returns the argument type name.
func (a ArgType) String() string {
	switch a {
	case ArgU8:
		return "u8"
	case ArgS8:
		return "s8"
	case ArgU16:
		return "u16"
	case ArgS16:
		return "s16"
	case ArgU32:
		return "u32"
	case ArgS32:
		return "s32"
	case ArgString:
		return "string"
	case ArgTime:
		return "time"
	default:
		return "unknown"
	}
}

// ParseArgType parses an argument type name as produced by String.
func ParseArgType(s string) (ArgType, error) {
	for a := ArgU8; a <= ArgTime; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown profiler argument type %q", s)
}

// ErrInvalidInfo is returned when labels and types do not line up.
var ErrInvalidInfo = errors.New("profiler labels and types differ in length")

// Info describes the arguments a profiled event type encodes.
type Info struct {
	// Labels names each argument.
	Labels []string

	// Types gives the wire type of each argument.
	Types []ArgType
}

// Validate checks that every argument has both a label and a type.
func (i Info) Validate() error {
	if len(i.Labels) != len(i.Types) {
		return fmt.Errorf("%w: %d labels, %d types", ErrInvalidInfo, len(i.Labels), len(i.Types))
	}
	return nil
}

// TypeDescriptor announces one event type to a profiler.
type TypeDescriptor struct {
	ID   uint16
	Name string
	Info Info
}

// RecordKind identifies what a Record marks.
type RecordKind uint8

const (
	// KindSubmit marks an event entering the submission queue.
	KindSubmit RecordKind = iota + 1

	// KindDispatchStart marks the start of a listener walk.
	KindDispatchStart

	// KindDispatchEnd marks the end of a listener walk.
	KindDispatchEnd
)

// String returns the record kind name.
func (k RecordKind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindDispatchStart:
		return "dispatch_start"
	case KindDispatchEnd:
		return "dispatch_end"
	default:
		return "unknown"
	}
}

// Record is one trace entry.
type Record struct {
	Kind      RecordKind
	TypeID    uint16
	Seq       uint64
	Timestamp time.Time

	// Args holds the encoded arguments. Only set for KindSubmit.
	Args []byte
}

// Profiler receives type descriptors and trace records.
// Emit is called from the dispatcher goroutine and from producers; it must
// not block.
type Profiler interface {
	RegisterType(d TypeDescriptor) error
	Emit(r Record)
	Close() error
}

// Nop discards everything.
type Nop struct{}

// RegisterType accepts d and does nothing.
func (Nop) RegisterType(TypeDescriptor) error { return nil }

// Emit drops r.
func (Nop) Emit(Record) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// NewSessionID returns a fresh identifier for one tracing session.
func NewSessionID() uuid.UUID {
	return uuid.New()
}
