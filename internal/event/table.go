package event

import (
	"fmt"
	"sort"
)

// Table is the immutable listener table built from a Registry. It maps each
// event type to its subscriptions ordered FIRST, EARLY, NORMAL, FINAL, and
// by declaration order within a class. A Table is never modified after
// Build returns, so it is shared between the dispatcher and producers
// without locking.
type Table struct {
	registry  *Registry
	types     []*Type
	byName    map[string]*Type
	lists     [][]Subscription
	listeners []*Listener
}

// Build validates every declaration and returns the listener table. It runs
// once; later calls return the same table and error. Validation rejects:
//
//   - more than one FINAL or FIRST subscriber for a type
//   - subscriptions to types or listeners from another registry
//   - non-FINAL subscribers of a FlagFinalOnly type
//   - the same listener subscribed twice to one type
//   - any declaration error recorded earlier (duplicate names and so on)
//
// All problems are reported together in a *BuildError.
func (r *Registry) Build() (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozenLocked() {
		return r.table, r.buildErr
	}

	errs := append([]error(nil), r.errs...)
	lists := make([][]Subscription, len(r.types))

	type pair struct {
		l *Listener
		t *Type
	}
	seen := make(map[pair]bool)

	for _, sub := range r.subs {
		switch {
		case sub.Listener == nil || sub.Listener.registry != r || r.listenerNames[sub.Listener.name] != sub.Listener:
			errs = append(errs, fmt.Errorf("subscription to %s: %w", typeLabel(sub.Type), ErrUnknownListener))
			continue
		case sub.Type == nil || sub.Type.registry != r:
			errs = append(errs, fmt.Errorf("listener %q subscribes to %s: %w", sub.Listener.name, typeLabel(sub.Type), ErrUnknownType))
			continue
		case !sub.Priority.Valid():
			errs = append(errs, fmt.Errorf("listener %q on %q: %w: %d", sub.Listener.name, sub.Type.name, ErrInvalidPriority, sub.Priority))
			continue
		}

		key := pair{sub.Listener, sub.Type}
		if seen[key] {
			errs = append(errs, fmt.Errorf("listener %q on %q: %w", sub.Listener.name, sub.Type.name, ErrDuplicateSubscription))
			continue
		}
		seen[key] = true

		if sub.Type.flags.Has(FlagFinalOnly) && sub.Priority != PriorityFinal {
			errs = append(errs, fmt.Errorf("listener %q on %q (%s): %w", sub.Listener.name, sub.Type.name, sub.Priority, ErrFinalOnly))
			continue
		}

		lists[sub.Type.id] = append(lists[sub.Type.id], *sub)
	}

	for id, list := range lists {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority < list[j].Priority
			}
			return list[i].order < list[j].order
		})

		if err := checkExclusive(r.types[id], list, PriorityFinal, ErrDuplicateFinal); err != nil {
			errs = append(errs, err)
		}
		if err := checkExclusive(r.types[id], list, PriorityFirst, ErrDuplicateFirst); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		r.buildErr = &BuildError{Errs: errs}
		return nil, r.buildErr
	}

	t := &Table{
		registry:  r,
		types:     append([]*Type(nil), r.types...),
		byName:    make(map[string]*Type, len(r.types)),
		lists:     lists,
		listeners: append([]*Listener(nil), r.listeners...),
	}
	for _, typ := range t.types {
		t.byName[typ.name] = typ
	}

	r.table = t
	return t, nil
}

// MustBuild is like Build but panics on error. Use it from main so a
// misdeclared program fails at startup.
func (r *Registry) MustBuild() *Table {
	t, err := r.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func checkExclusive(t *Type, list []Subscription, p Priority, sentinel error) error {
	var names []string
	for _, sub := range list {
		if sub.Priority == p {
			names = append(names, sub.Listener.name)
		}
	}
	if len(names) > 1 {
		return fmt.Errorf("event %q: %w: %v", t.name, sentinel, names)
	}
	return nil
}

func typeLabel(t *Type) string {
	if t == nil {
		return "<nil type>"
	}
	return fmt.Sprintf("%q", t.name)
}

// Registry returns the registry the table was built from.
func (t *Table) Registry() *Registry { return t.registry }

// Type returns the type with the given id, or nil if no such type exists.
func (t *Table) Type(id TypeID) *Type {
	if int(id) >= len(t.types) {
		return nil
	}
	return t.types[id]
}

// TypeByName returns the type registered under name.
func (t *Table) TypeByName(name string) (*Type, bool) {
	typ, ok := t.byName[name]
	return typ, ok
}

// Types returns all types in ID order.
func (t *Table) Types() []*Type {
	out := make([]*Type, len(t.types))
	copy(out, t.types)
	return out
}

// Contains reports whether typ belongs to this table.
func (t *Table) Contains(typ *Type) bool {
	return typ != nil && typ.registry == t.registry && t.Type(typ.id) == typ
}

// Subscribers returns the ordered subscriptions of typ.
func (t *Table) Subscribers(typ TypeProvider) []Subscription {
	if typ == nil {
		return nil
	}
	et := typ.EventType()
	if !t.Contains(et) {
		return nil
	}
	list := t.lists[et.id]
	out := make([]Subscription, len(list))
	copy(out, list)
	return out
}

// Listeners returns all declared listeners in declaration order.
func (t *Table) Listeners() []*Listener {
	out := make([]*Listener, len(t.listeners))
	copy(out, t.listeners)
	return out
}

// Listener returns the listener declared under name.
func (t *Table) Listener(name string) (*Listener, bool) {
	for _, l := range t.listeners {
		if l.name == name {
			return l, true
		}
	}
	return nil, false
}

// SubscriptionsOf returns every subscription of l, in type ID order.
func (t *Table) SubscriptionsOf(l *Listener) []Subscription {
	var out []Subscription
	for _, list := range t.lists {
		for _, sub := range list {
			if sub.Listener == l {
				out = append(out, sub)
			}
		}
	}
	return out
}

// list returns the internal subscription slice for id. Callers must not
// modify it.
func (t *Table) list(id TypeID) []Subscription {
	return t.lists[id]
}
