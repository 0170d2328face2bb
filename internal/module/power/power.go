// Package power powers the system down when no module is active and wakes
// it when one becomes ready again.
//
// The tracker listens to module state events. Its state is only touched by
// its listener, which runs on the dispatcher goroutine.
package power

import (
	"fmt"
	"sync/atomic"

	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/module"
)

// DownEvent requests a system power down.
type DownEvent struct {
	event.Header

	// Error is set when the last active module went down with an error.
	Error bool
}

// WakeUpEvent requests that powered-down modules resume.
type WakeUpEvent struct {
	event.Header
}

var (
	// DownEventType is submitted when the last active module leaves READY.
	DownEventType = event.Declare[DownEvent]("power_down_event",
		event.WithFlags(event.FlagLogEnabled),
		event.WithLog(func(e *DownEvent) string { return fmt.Sprintf("error:%t", e.Error) }),
	)

	// WakeUpEventType is submitted when a module becomes ready after a
	// power down.
	WakeUpEventType = event.Declare[WakeUpEvent]("wake_up_event",
		event.WithFlags(event.FlagLogEnabled),
	)
)

// Tracker counts active modules.
type Tracker struct {
	mgr atomic.Pointer[event.Manager]

	// Dispatcher goroutine only.
	active      map[module.ID]bool
	poweredDown bool

	count atomic.Int64
	down  atomic.Bool
}

// NewTracker creates a tracker with no active modules.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[module.ID]bool)}
}

var tracker = NewTracker()

func init() {
	event.Listen("power_manager", tracker.handle).Subscribe(module.StateEventType)
}

// Default returns the tracker subscribed in event.Default.
func Default() *Tracker { return tracker }

// Attach binds the default tracker to m. It has the event.PostInitHook
// signature.
func Attach(m *event.Manager) { tracker.Attach(m) }

// Attach binds t to the manager its events are submitted to.
func (t *Tracker) Attach(m *event.Manager) { t.mgr.Store(m) }

// Active returns the number of modules in READY.
func (t *Tracker) Active() int { return int(t.count.Load()) }

// PoweredDown reports whether a power down was requested and no module has
// become ready since.
func (t *Tracker) PoweredDown() bool { return t.down.Load() }

func (t *Tracker) handle(evt event.Event) bool {
	se, ok := module.Cast(evt)
	if !ok {
		return event.Unhandled(evt)
	}

	if se.State.Active() {
		t.active[se.Module] = true
		if t.poweredDown {
			t.poweredDown = false
			t.submitWakeUp()
		}
	} else if t.active[se.Module] {
		delete(t.active, se.Module)
		if len(t.active) == 0 && !t.poweredDown {
			t.poweredDown = true
			t.submitDown(se.State == module.StateError)
		}
	}

	t.count.Store(int64(len(t.active)))
	t.down.Store(t.poweredDown)
	return false
}

func (t *Tracker) submitDown(withError bool) {
	m := t.mgr.Load()
	if m == nil {
		return
	}
	evt, err := DownEventType.New(m)
	if err != nil {
		m.Logger().Warn("power down dropped", "err", err)
		return
	}
	evt.Error = withError
	if err := m.Submit(evt); err != nil {
		m.Logger().Warn("power down dropped", "err", err)
	}
}

func (t *Tracker) submitWakeUp() {
	m := t.mgr.Load()
	if m == nil {
		return
	}
	evt, err := WakeUpEventType.New(m)
	if err != nil {
		m.Logger().Warn("wake up dropped", "err", err)
		return
	}
	if err := m.Submit(evt); err != nil {
		m.Logger().Warn("wake up dropped", "err", err)
	}
}

// reset forgets all module states.
func (t *Tracker) reset() {
	t.active = make(map[module.ID]bool)
	t.poweredDown = false
	t.count.Store(0)
	t.down.Store(false)
}
