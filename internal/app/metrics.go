package app

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/appevent/internal/event"
)

// Metrics tracks delivery timing through the manager hooks.
type Metrics struct {
	// Listener walk timing
	deliveries atomic.Uint64
	consumed   atomic.Uint64
	walkTotal  atomic.Int64
	walkMin    atomic.Int64
	walkMax    atomic.Int64
	walkLast   atomic.Int64

	// Time from Submit to the start of the walk
	waits     atomic.Uint64
	waitTotal atomic.Int64
	waitMax   atomic.Int64

	submitted sync.Map // seq -> time.Time

	// walkStart is only touched by the dispatcher hooks.
	walkStart time.Time

	mu     sync.Mutex
	byType map[string]uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		byType:    make(map[string]uint64),
		startTime: time.Now(),
	}
	// Initialize min to max int64 so the first delivery will be smaller
	m.walkMin.Store(1<<63 - 1)
	return m
}

// Options returns the manager hooks that feed m.
func (m *Metrics) Options() []event.Option {
	return []event.Option{
		event.WithSubmitHook(m.onSubmit),
		event.WithPreProcessHook(m.onPreProcess),
		event.WithPostProcessHook(m.onPostProcess),
	}
}

func (m *Metrics) onSubmit(evt event.Event) {
	m.submitted.Store(evt.EventHeader().Seq(), time.Now())
}

func (m *Metrics) onPreProcess(evt event.Event) {
	now := time.Now()
	if v, ok := m.submitted.LoadAndDelete(evt.EventHeader().Seq()); ok {
		m.RecordWait(now.Sub(v.(time.Time)))
	}
	m.walkStart = now
}

func (m *Metrics) onPostProcess(evt event.Event, consumed bool) {
	m.RecordDelivery(evt.EventHeader().TypeName(), time.Since(m.walkStart), consumed)
}

// RecordDelivery records one listener walk for the named type.
func (m *Metrics) RecordDelivery(typeName string, d time.Duration, consumed bool) {
	ns := d.Nanoseconds()

	m.deliveries.Add(1)
	if consumed {
		m.consumed.Add(1)
	}
	m.walkTotal.Add(ns)
	m.walkLast.Store(ns)

	// Update min (atomic compare-and-swap loop)
	for {
		old := m.walkMin.Load()
		if ns >= old {
			break
		}
		if m.walkMin.CompareAndSwap(old, ns) {
			break
		}
	}
	storeMax(&m.walkMax, ns)

	m.mu.Lock()
	m.byType[typeName]++
	m.mu.Unlock()
}

// RecordWait records the time an event spent queued.
func (m *Metrics) RecordWait(d time.Duration) {
	ns := d.Nanoseconds()
	m.waits.Add(1)
	m.waitTotal.Add(ns)
	storeMax(&m.waitMax, ns)
}

func storeMax(v *atomic.Int64, ns int64) {
	for {
		old := v.Load()
		if ns <= old {
			return
		}
		if v.CompareAndSwap(old, ns) {
			return
		}
	}
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	deliveries := m.deliveries.Load()
	waits := m.waits.Load()

	var avgWalk int64
	if deliveries > 0 {
		avgWalk = m.walkTotal.Load() / int64(deliveries)
	}
	var avgWait int64
	if waits > 0 {
		avgWait = m.waitTotal.Load() / int64(waits)
	}
	minWalk := m.walkMin.Load()
	if minWalk == 1<<63-1 {
		minWalk = 0
	}

	m.mu.Lock()
	byType := maps.Clone(m.byType)
	m.mu.Unlock()

	return MetricsSnapshot{
		Uptime:     time.Since(m.startTime),
		Deliveries: deliveries,
		Consumed:   m.consumed.Load(),
		AvgWalkNs:  avgWalk,
		MinWalkNs:  minWalk,
		MaxWalkNs:  m.walkMax.Load(),
		LastWalkNs: m.walkLast.Load(),
		AvgWaitNs:  avgWait,
		MaxWaitNs:  m.waitMax.Load(),
		ByType:     byType,
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime     time.Duration     `json:"uptime"`
	Deliveries uint64            `json:"deliveries"`
	Consumed   uint64            `json:"consumed"`
	AvgWalkNs  int64             `json:"avg_walk_ns"`
	MinWalkNs  int64             `json:"min_walk_ns"`
	MaxWalkNs  int64             `json:"max_walk_ns"`
	LastWalkNs int64             `json:"last_walk_ns"`
	AvgWaitNs  int64             `json:"avg_wait_ns"`
	MaxWaitNs  int64             `json:"max_wait_ns"`
	ByType     map[string]uint64 `json:"by_type"`
}

// ConsumeRate returns the percentage of deliveries a listener consumed.
func (s MetricsSnapshot) ConsumeRate() float64 {
	if s.Deliveries == 0 {
		return 0
	}
	return float64(s.Consumed) / float64(s.Deliveries) * 100
}
