package event

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Registry collects event type, listener and subscription declarations.
// Declarations normally happen from package-level variables and init
// functions, before main runs. Build turns them into the immutable Table
// used by a Manager; after that the registry accepts no further
// declarations.
//
// Registration methods are safe for concurrent use, although declarations
// made concurrently have no defined relative order.
type Registry struct {
	mu sync.Mutex

	types     []*Type
	typeNames map[string]*Type

	listeners     []*Listener
	listenerNames map[string]*Listener

	subs []*Subscription

	// errs holds declaration problems reported by Build.
	errs []error

	table    *Table
	buildErr error

	assertions atomic.Bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAssertions enables debug assertions: Unhandled panics instead of
// counting.
func WithAssertions(on bool) RegistryOption {
	return func(r *Registry) {
		r.assertions.Store(on)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		typeNames:     make(map[string]*Type),
		listenerNames: make(map[string]*Listener),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAssertions turns debug assertions on or off.
func (r *Registry) SetAssertions(on bool) { r.assertions.Store(on) }

// Assertions reports whether debug assertions are enabled.
func (r *Registry) Assertions() bool { return r.assertions.Load() }

// Frozen reports whether Build has run.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table != nil || r.buildErr != nil
}

// RegisterType registers an event type. It fails with ErrDuplicateType if
// the name is taken, ErrInvalidName for an empty name and ErrRegistryFrozen
// after Build.
func (r *Registry) RegisterType(name string, opts ...TypeOption) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozenLocked() {
		return nil, fmt.Errorf("register type %q: %w", name, ErrRegistryFrozen)
	}
	if name == "" {
		return nil, fmt.Errorf("register type: %w", ErrInvalidName)
	}
	if _, exists := r.typeNames[name]; exists {
		return nil, fmt.Errorf("register type %q: %w", name, ErrDuplicateType)
	}
	if len(r.types) > math.MaxUint16 {
		return nil, fmt.Errorf("register type %q: too many event types", name)
	}

	t := &Type{
		id:       TypeID(len(r.types)),
		name:     name,
		registry: r,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logEnabled.Store(t.flags.Has(FlagLogEnabled))
	t.profileEnabled.Store(t.flags.Has(FlagProfileEnabled) && t.profile != nil)

	if t.profile != nil {
		if err := t.profile.Validate(); err != nil {
			return nil, fmt.Errorf("register type %q: %w", name, err)
		}
	}

	r.types = append(r.types, t)
	r.typeNames[name] = t
	return t, nil
}

// Listen declares a listener. Problems (empty or duplicate name, nil
// callback) are reported by Build; the returned listener is always usable
// for further declarations.
func (r *Registry) Listen(name string, fn HandlerFunc) *Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := newListener(r, name, fn)

	r.mustNotBeFrozenLocked("listener " + name)
	switch {
	case name == "":
		r.errs = append(r.errs, fmt.Errorf("declare listener: %w", ErrInvalidName))
		return l
	case fn == nil:
		r.errs = append(r.errs, fmt.Errorf("declare listener %q: %w", name, ErrNilHandler))
		return l
	}
	if _, exists := r.listenerNames[name]; exists {
		r.errs = append(r.errs, fmt.Errorf("declare listener %q: %w", name, ErrDuplicateListener))
		return l
	}

	r.listeners = append(r.listeners, l)
	r.listenerNames[name] = l
	return l
}

// Subscribe declares that l receives events of type t in priority class p.
// Validation happens in Build.
func (r *Registry) Subscribe(l *Listener, t TypeProvider, p Priority) {
	var typ *Type
	if t != nil {
		typ = t.EventType()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := "<nil>"
	if l != nil {
		name = l.name
	}
	r.mustNotBeFrozenLocked("subscription of " + name)

	r.subs = append(r.subs, &Subscription{
		Listener: l,
		Type:     typ,
		Priority: p,
		order:    len(r.subs),
	})
}

// record stores a declaration problem for Build to report.
func (r *Registry) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotBeFrozenLocked(err.Error())
	r.errs = append(r.errs, err)
}

func (r *Registry) frozenLocked() bool {
	return r.table != nil || r.buildErr != nil
}

// mustNotBeFrozenLocked panics on declarations made after Build. Such a
// declaration could never take effect, which is a programming error.
func (r *Registry) mustNotBeFrozenLocked(what string) {
	if r.frozenLocked() {
		panic(fmt.Errorf("declare %s: %w", what, ErrRegistryFrozen))
	}
}

// Types returns the registered types in ID order.
func (r *Registry) Types() []*Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Type, len(r.types))
	copy(out, r.types)
	return out
}

// TypeByName returns a registered type.
func (r *Registry) TypeByName(name string) (*Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.typeNames[name]
	return t, ok
}
