package event

// Listener is a named callback declared in a Registry.
type Listener struct {
	name     string
	fn       HandlerFunc
	registry *Registry
}

func newListener(r *Registry, name string, fn HandlerFunc) *Listener {
	return &Listener{name: name, fn: fn, registry: r}
}

// Name returns the listener name.
func (l *Listener) Name() string { return l.name }

// Notify invokes the callback. It implements dispatch.Handler.
func (l *Listener) Notify(evt any) bool {
	e, ok := evt.(Event)
	if !ok || l.fn == nil {
		return false
	}
	return l.fn(e)
}

// Subscribe declares normal-priority subscriptions and returns l.
func (l *Listener) Subscribe(types ...TypeProvider) *Listener {
	return l.subscribe(PriorityNormal, types)
}

// SubscribeEarly declares early-priority subscriptions and returns l.
func (l *Listener) SubscribeEarly(types ...TypeProvider) *Listener {
	return l.subscribe(PriorityEarly, types)
}

// SubscribeFinal declares final-priority subscriptions and returns l.
func (l *Listener) SubscribeFinal(types ...TypeProvider) *Listener {
	return l.subscribe(PriorityFinal, types)
}

// SubscribeFirst declares first-priority subscriptions and returns l.
func (l *Listener) SubscribeFirst(types ...TypeProvider) *Listener {
	return l.subscribe(PriorityFirst, types)
}

func (l *Listener) subscribe(p Priority, types []TypeProvider) *Listener {
	for _, t := range types {
		l.registry.Subscribe(l, t, p)
	}
	return l
}

// Subscription is one (listener, type, priority) declaration.
type Subscription struct {
	Listener *Listener
	Type     *Type
	Priority Priority

	// order is the declaration index, used to keep declaration order
	// within a priority class.
	order int
}
