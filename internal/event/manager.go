package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/appevent/internal/event/alloc"
	"github.com/dshills/appevent/internal/event/dispatch"
	"github.com/dshills/appevent/internal/event/queue"
	"github.com/dshills/appevent/internal/profiler"
)

// Manager owns the allocation pool, the submission queue and the single
// dispatcher goroutine that delivers events to the listeners of a Table.
//
// Every listener runs on the dispatcher goroutine, one at a time, so
// listener code needs no locking for state that only listeners touch.
// Producers may call New, Submit and Free from any goroutine.
type Manager struct {
	id     uuid.UUID
	table  *Table
	pool   *alloc.Pool
	queue  *queue.Queue[Event]
	exec   *dispatch.Executor
	config managerConfig
	logger *slog.Logger

	seq atomic.Uint64

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	mu       sync.Mutex
	started  bool
	stopping bool

	closed     atomic.Bool
	submitters atomic.Int64
	pending    atomic.Int64
	state      atomic.Int32

	submitted atomic.Uint64
	delivered atomic.Uint64
	consumed  atomic.Uint64
	rejected  atomic.Uint64
	freed     atomic.Uint64
}

// NewManager creates a manager for t. Types with profiler information are
// announced to the configured profiler.
func NewManager(t *Table, opts ...Option) (*Manager, error) {
	if t == nil {
		return nil, ErrNilTable
	}

	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		id:     uuid.New(),
		table:  t,
		pool:   alloc.New(alloc.WithMaxBytes(cfg.maxBytes), alloc.WithMaxEvents(cfg.maxEvents)),
		queue:  queue.New[Event](),
		config: cfg,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.logger = cfg.logger.With("manager", m.id.String())
	m.exec = dispatch.NewExecutor(
		dispatch.WithFatal(isFatal),
		dispatch.WithPanicHandler(m.listenerPanic),
	)

	for _, typ := range t.types {
		info, ok := typ.ProfileInfo()
		if !ok {
			continue
		}
		d := profiler.TypeDescriptor{ID: uint16(typ.id), Name: typ.name, Info: info}
		if err := cfg.profiler.RegisterType(d); err != nil {
			return nil, fmt.Errorf("register %q with profiler: %w", typ.name, err)
		}
	}

	return m, nil
}

// isFatal selects panic values the dispatcher must not swallow.
func isFatal(v any) bool {
	switch v.(type) {
	case *HeaderError, *UnhandledError:
		return true
	}
	return false
}

// listenerPanic logs a recovered listener panic. The walk carries on with
// the next listener.
func (m *Manager) listenerPanic(evt any, h dispatch.Handler, v any, stack []byte) {
	attrs := []any{"panic", fmt.Sprint(v), "stack", string(stack)}
	if l, ok := h.(*Listener); ok {
		attrs = append(attrs, "listener", l.name)
	}
	if e, ok := evt.(Event); ok {
		if hdr := e.EventHeader(); hdr != nil {
			attrs = append(attrs, "type", hdr.TypeName(), "seq", hdr.seq)
		}
	}
	m.logger.Error("listener panic", attrs...)
}

// ID returns the manager's unique identifier.
func (m *Manager) ID() uuid.UUID { return m.id }

// Table returns the listener table.
func (m *Manager) Table() *Table { return m.table }

// Pool returns the allocation pool.
func (m *Manager) Pool() *alloc.Pool { return m.pool }

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// State returns the dispatcher state.
func (m *Manager) State() DispatcherState {
	return DispatcherState(m.state.Load())
}

// Start launches the dispatcher goroutine. Events submitted before Start
// are delivered once it runs. A manager cannot be restarted after Stop.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyRunning
	}
	m.started = true
	m.state.Store(int32(StateIdle))

	go m.run()

	m.logger.Debug("event manager started", "types", len(m.table.types), "listeners", len(m.table.listeners))
	return nil
}

// Stop rejects further submissions, delivers everything already queued and
// waits for the dispatcher goroutine to exit or ctx to end.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotRunning
	}
	first := !m.stopping
	m.stopping = true
	m.mu.Unlock()

	if first {
		m.closed.Store(true)
		// A producer that saw closed == false finishes its push before quit
		// closes, so the final drain sees every accepted event.
		for m.submitters.Load() > 0 {
			runtime.Gosched()
		}
		close(m.quit)
	}

	select {
	case <-m.done:
		m.logger.Debug("event manager stopped", "delivered", m.delivered.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits until every submitted event has been delivered and released.
func (m *Manager) Drain(ctx context.Context) error {
	if m.pending.Load() == 0 {
		return nil
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m.pending.Load() == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Submit hands an allocated event to the dispatcher. It never blocks.
// After a successful Submit the event belongs to the manager and the
// producer must not touch it again. On ErrStopped the event is released.
func (m *Manager) Submit(evt Event) error {
	if evt == nil {
		return ErrInvalidEvent
	}
	h := evt.EventHeader()
	if h == nil {
		return ErrInvalidEvent
	}
	if h.pool != m.pool || !h.tag.CompareAndSwap(tagAllocated, tagQueued) {
		return fmt.Errorf("submit %q seq %d: %w", h.TypeName(), h.seq, ErrNotAllocated)
	}

	m.submitters.Add(1)
	defer m.submitters.Add(-1)

	if m.closed.Load() {
		m.rejected.Add(1)
		m.release(h, tagQueued, "submit")
		return ErrStopped
	}

	t := h.typ
	if t.ProfileEnabled() {
		var b profiler.Buffer
		t.Encode(evt, &b)
		m.config.profiler.Emit(profiler.Record{
			Kind:      profiler.KindSubmit,
			TypeID:    uint16(t.id),
			Seq:       h.seq,
			Timestamp: time.Now(),
			Args:      b.Bytes(),
		})
	}
	for _, hook := range m.config.submitHooks {
		hook(evt)
	}

	m.pending.Add(1)
	m.submitted.Add(1)
	m.queue.Push(evt)

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Free releases an event that was allocated but never submitted. Freeing
// a submitted, delivered or foreign event panics with *HeaderError.
func (m *Manager) Free(evt Event) {
	if evt == nil {
		return
	}
	h := evt.EventHeader()
	if h.pool != m.pool {
		panic(h.headerError("free"))
	}
	m.release(h, tagAllocated, "free")
	m.freed.Add(1)
}

// allocate stamps h as a fresh instance of t and reserves its size plus
// extra bytes from the pool.
func (m *Manager) allocate(h *Header, t *Type, extra int64) error {
	if !m.table.Contains(t) {
		return fmt.Errorf("allocate %s: %w", typeLabel(t), ErrUnknownType)
	}
	if h.tag.Load() != tagFree {
		panic(h.headerError("allocate"))
	}

	size := t.size + extra
	if err := m.pool.Reserve(size); err != nil {
		return fmt.Errorf("allocate %q (%d bytes): %w: %w", t.name, size, ErrOutOfMemory, err)
	}

	h.typ = t
	h.size = size
	h.pool = m.pool
	h.seq = m.seq.Add(1)
	h.tag.Store(tagAllocated)
	return nil
}

// release moves h from the from tag to released and returns its bytes.
func (m *Manager) release(h *Header, from uint32, op string) {
	if !h.tag.CompareAndSwap(from, tagReleased) {
		panic(h.headerError(op))
	}
	m.pool.Release(h.size)
}

func (m *Manager) run() {
	defer close(m.done)

	for _, hook := range m.config.initHooks {
		hook(m)
	}

	for {
		m.drainQueue()
		select {
		case <-m.wake:
		case <-m.quit:
			m.drainQueue()
			m.state.Store(int32(StateStopped))
			return
		}
	}
}

func (m *Manager) drainQueue() {
	for {
		evt, ok := m.queue.Pop()
		if !ok {
			return
		}
		m.deliver(evt)
	}
}

// deliver walks the listener list of evt's type until a listener consumes
// it, then releases the event.
func (m *Manager) deliver(evt Event) {
	h := evt.EventHeader()
	if !h.tag.CompareAndSwap(tagQueued, tagDelivering) {
		panic(h.headerError("deliver"))
	}
	m.state.Store(int32(StateDelivering))

	t := h.typ
	if t.LogEnabled() {
		m.logger.Info("event dispatched", "type", t.name, "seq", h.seq, "data", t.Format(evt))
	}
	profile := t.ProfileEnabled()
	if profile {
		m.emit(profiler.KindDispatchStart, h)
	}
	for _, hook := range m.config.preHooks {
		hook(evt)
	}

	consumed := false
	for _, sub := range m.table.list(t.id) {
		if m.config.showListeners {
			m.logger.Debug("notify listener", "listener", sub.Listener.name, "type", t.name, "seq", h.seq, "priority", sub.Priority.String())
		}
		res := m.exec.Execute(evt, sub.Listener)
		if res.Consumed {
			consumed = true
			break
		}
	}

	for _, hook := range m.config.postHooks {
		hook(evt, consumed)
	}
	if profile {
		m.emit(profiler.KindDispatchEnd, h)
	}

	m.release(h, tagDelivering, "release")
	m.delivered.Add(1)
	if consumed {
		m.consumed.Add(1)
	}
	m.state.Store(int32(StateIdle))
	m.pending.Add(-1)
}

func (m *Manager) emit(kind profiler.RecordKind, h *Header) {
	m.config.profiler.Emit(profiler.Record{
		Kind:      kind,
		TypeID:    uint16(h.typ.id),
		Seq:       h.seq,
		Timestamp: time.Now(),
	})
}

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Queued    int         `json:"queued"`
	Pending   int64       `json:"pending"`
	Submitted uint64      `json:"submitted"`
	Delivered uint64      `json:"delivered"`
	Consumed  uint64      `json:"consumed"`
	Calls     uint64      `json:"listener_calls"`
	Unhandled uint64      `json:"unhandled"`
	Rejected  uint64      `json:"rejected"`
	Freed     uint64      `json:"freed"`
	Panics    uint64      `json:"panics"`
	Pool      alloc.Stats `json:"pool"`

	// ListenerTime is the cumulative time spent inside listeners and
	// ListenerAvg the mean per call.
	ListenerTime time.Duration `json:"listener_time_ns"`
	ListenerAvg  time.Duration `json:"listener_avg_ns"`
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	var unhandled uint64
	for _, t := range m.table.types {
		unhandled += t.Unhandled()
	}
	es := m.exec.Stats()
	return Stats{
		ID:        m.id.String(),
		State:     m.State().String(),
		Queued:    m.queue.Len(),
		Pending:   m.pending.Load(),
		Submitted: m.submitted.Load(),
		Delivered: m.delivered.Load(),
		Consumed:  m.consumed.Load(),
		Calls:     es.Executed,
		Unhandled: unhandled,
		Rejected:  m.rejected.Load(),
		Freed:     m.freed.Load(),
		Panics:    es.Panicked,
		Pool:      m.pool.Stats(),

		ListenerTime: es.TotalDuration,
		ListenerAvg:  es.AvgDuration,
	}
}
