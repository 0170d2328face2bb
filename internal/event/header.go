package event

import (
	"sync/atomic"

	"github.com/dshills/appevent/internal/event/alloc"
)

// Event is implemented by every event instance through its embedded Header.
//
//	type ButtonEvent struct {
//	    event.Header
//	    KeyID   uint16
//	    Pressed bool
//	}
type Event interface {
	EventHeader() *Header
}

// Header tags. A header moves strictly forward through
// allocated -> queued -> delivering -> released, or allocated -> released
// when the producer frees an event it never submitted.
const (
	tagFree       uint32 = 0
	tagAllocated  uint32 = 0xA11C_0001
	tagQueued     uint32 = 0xA11C_0002
	tagDelivering uint32 = 0xA11C_0003
	tagReleased   uint32 = 0xDEAD_0000
)

// Header is the common prefix of every event. Its fields are written by the
// allocator and must not be modified by producers. Events must not be copied
// after allocation.
type Header struct {
	typ  *Type
	seq  uint64
	size int64
	pool *alloc.Pool
	tag  atomic.Uint32
}

// EventHeader returns h. It makes every struct embedding Header an Event.
func (h *Header) EventHeader() *Header { return h }

// Type returns the event type, or nil for a header that was never allocated.
func (h *Header) Type() *Type { return h.typ }

// TypeName returns the event type name, or "" for an unallocated header.
func (h *Header) TypeName() string {
	if h.typ == nil {
		return ""
	}
	return h.typ.name
}

// Seq returns the allocation sequence number, unique per manager.
func (h *Header) Seq() uint64 { return h.seq }

// Size returns the number of bytes accounted to the pool for this event.
func (h *Header) Size() int64 { return h.size }

func (h *Header) headerError(op string) *HeaderError {
	return &HeaderError{Op: op, Type: h.TypeName(), Seq: h.seq, Tag: h.tag.Load()}
}

// DynData carries a variable-length payload. Embed it in an event type to
// allocate instances with Descriptor.NewWithData.
type DynData struct {
	Data []byte
}

func (d *DynData) dynData() *DynData { return d }

type dynDataCarrier interface {
	dynData() *DynData
}
