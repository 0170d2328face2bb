package event

import (
	"errors"
	"fmt"
	"unsafe"
)

// eventPointer constrains P to *T where *T is an Event.
type eventPointer[T any] interface {
	*T
	Event
}

// Descriptor is the typed handle of a declared event type. It allocates and
// recognises instances of T.
type Descriptor[T any, P eventPointer[T]] struct {
	typ *Type
}

// Declare registers event type T under name in the Default registry.
//
//	var ButtonEventType = event.Declare[ButtonEvent]("button_event",
//	    event.WithLog(func(e *ButtonEvent) string {
//	        return fmt.Sprintf("key:%d pressed:%t", e.KeyID, e.Pressed)
//	    }),
//	)
func Declare[T any, P eventPointer[T]](name string, opts ...TypeOption) *Descriptor[T, P] {
	return DeclareIn[T, P](Default, name, opts...)
}

// DeclareIn registers event type T under name in r. Registration errors
// are reported by r.Build; the descriptor of a failed declaration cannot
// allocate events.
func DeclareIn[T any, P eventPointer[T]](r *Registry, name string, opts ...TypeOption) *Descriptor[T, P] {
	var zero T
	all := make([]TypeOption, 0, len(opts)+1)
	all = append(all, withSize(int64(unsafe.Sizeof(zero))))
	all = append(all, opts...)

	t, err := r.RegisterType(name, all...)
	if err != nil {
		if errors.Is(err, ErrRegistryFrozen) {
			panic(err)
		}
		r.record(err)
		t = &Type{name: name}
	}
	return &Descriptor[T, P]{typ: t}
}

// EventType returns the registered type.
func (d *Descriptor[T, P]) EventType() *Type { return d.typ }

// Name returns the type name.
func (d *Descriptor[T, P]) Name() string { return d.typ.name }

// New allocates a zeroed instance from m's pool and stamps its header.
// It returns an error wrapping ErrOutOfMemory when the pool is exhausted.
func (d *Descriptor[T, P]) New(m *Manager) (P, error) {
	p := P(new(T))
	if err := m.allocate(p.EventHeader(), d.typ, 0); err != nil {
		var zero P
		return zero, err
	}
	return p, nil
}

// NewWithData allocates an instance with an n-byte dynamic payload. T must
// embed DynData.
func (d *Descriptor[T, P]) NewWithData(m *Manager, n int) (P, error) {
	var zero P
	if n < 0 {
		return zero, fmt.Errorf("allocate %s: negative data size %d", d.typ.name, n)
	}

	p := P(new(T))
	carrier, ok := any(p).(dynDataCarrier)
	if !ok {
		return zero, fmt.Errorf("allocate %s: %w", d.typ.name, ErrNoDynData)
	}
	if err := m.allocate(p.EventHeader(), d.typ, int64(n)); err != nil {
		return zero, err
	}
	carrier.dynData().Data = make([]byte, n)
	return p, nil
}

// Is reports whether evt is an instance of this type.
func (d *Descriptor[T, P]) Is(evt Event) bool {
	_, ok := d.Cast(evt)
	return ok
}

// Cast returns evt as *T if it is an instance of this type.
func (d *Descriptor[T, P]) Cast(evt Event) (P, bool) {
	var zero P
	if evt == nil || evt.EventHeader().typ != d.typ {
		return zero, false
	}
	p, ok := evt.(P)
	return p, ok
}
