// Package sample is a small application built on the event manager: a
// click detector turns button presses into clicks, a heartbeat producer
// drives simulated input, and configured modules announce their state.
//
// The event types and listener subscriptions are generated from
// events.yaml.
package sample

//go:generate go run ../../cmd/appevent-gen -i events.yaml -o events_gen.go

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/module"
)

// Click kinds carried by ClickEvent.Click.
const (
	ClickShort uint8 = iota + 1
	ClickLong
	ClickDouble
)

// ClickName returns the name of a click kind.
func ClickName(c uint8) string {
	switch c {
	case ClickShort:
		return "short"
	case ClickLong:
		return "long"
	case ClickDouble:
		return "double"
	default:
		return fmt.Sprintf("click(%d)", c)
	}
}

const (
	// LongPress is the hold time from which a release is a long click.
	LongPress = 500 * time.Millisecond

	// DoubleClickWindow is the largest gap between the releases of two
	// short clicks that also yields a double click.
	DoubleClickWindow = 300 * time.Millisecond
)

// Detector recognises clicks and counts what the sample listeners saw.
type Detector struct {
	mgr atomic.Pointer[event.Manager]

	// Dispatcher goroutine only.
	pressed   map[uint16]time.Duration
	lastShort map[uint16]time.Duration
	lastBeat  uint32

	short, long, double atomic.Uint64
	logged              atomic.Uint64
	beats               atomic.Uint64
	gaps                atomic.Uint64
}

// NewDetector creates a detector with no keys held.
func NewDetector() *Detector {
	return &Detector{
		pressed:   make(map[uint16]time.Duration),
		lastShort: make(map[uint16]time.Duration),
	}
}

var detector = NewDetector()

// Default returns the detector behind the generated listeners.
func Default() *Detector { return detector }

// Attach binds the default detector to m. It has the event.PostInitHook
// signature.
func Attach(m *event.Manager) { detector.mgr.Store(m) }

func detectClick(evt event.Event) bool      { return detector.handleButton(evt) }
func logClick(evt event.Event) bool         { return detector.handleClick(evt) }
func monitorHeartbeat(evt event.Event) bool { return detector.handleHeartbeat(evt) }

// handleButton never consumes: later listeners still see the raw input.
func (d *Detector) handleButton(evt event.Event) bool {
	b, ok := ButtonEventType.Cast(evt)
	if !ok {
		return event.Unhandled(evt)
	}

	if b.Pressed {
		d.pressed[b.KeyID] = b.At
		return false
	}
	start, held := d.pressed[b.KeyID]
	if !held {
		return false
	}
	delete(d.pressed, b.KeyID)

	hold := b.At - start
	if hold >= LongPress {
		delete(d.lastShort, b.KeyID)
		d.submitClick(b.KeyID, ClickLong, hold)
		return false
	}

	d.submitClick(b.KeyID, ClickShort, hold)
	if last, ok := d.lastShort[b.KeyID]; ok && b.At-last <= DoubleClickWindow {
		delete(d.lastShort, b.KeyID)
		d.submitClick(b.KeyID, ClickDouble, b.At-last)
		return false
	}
	d.lastShort[b.KeyID] = b.At
	return false
}

func (d *Detector) submitClick(key uint16, kind uint8, dur time.Duration) {
	m := d.mgr.Load()
	if m == nil {
		return
	}
	c, err := ClickEventType.New(m)
	if err != nil {
		m.Logger().Warn("click dropped", "key", key, "err", err)
		return
	}
	c.KeyID, c.Click, c.Duration = key, kind, dur
	if err := m.Submit(c); err != nil {
		m.Logger().Warn("click dropped", "key", key, "err", err)
	}
}

func (d *Detector) handleClick(evt event.Event) bool {
	c, ok := ClickEventType.Cast(evt)
	if !ok {
		return event.Unhandled(evt)
	}

	switch c.Click {
	case ClickShort:
		d.short.Add(1)
	case ClickLong:
		d.long.Add(1)
	case ClickDouble:
		d.double.Add(1)
	}
	d.logged.Add(1)
	if m := d.mgr.Load(); m != nil {
		m.Logger().Info("click", "key", c.KeyID, "click", ClickName(c.Click), "duration", c.Duration)
	}
	return true
}

func (d *Detector) handleHeartbeat(evt event.Event) bool {
	h, ok := HeartbeatEventType.Cast(evt)
	if !ok {
		return event.Unhandled(evt)
	}

	if d.lastBeat != 0 && h.Count != d.lastBeat+1 {
		d.gaps.Add(1)
		if m := d.mgr.Load(); m != nil {
			m.Logger().Warn("heartbeat gap", "last", d.lastBeat, "count", h.Count)
		}
	}
	d.lastBeat = h.Count
	d.beats.Add(1)
	return true
}

// reset forgets held keys and counters. Call it only while no manager is
// delivering to the detector.
func (d *Detector) reset() {
	d.pressed = make(map[uint16]time.Duration)
	d.lastShort = make(map[uint16]time.Duration)
	d.lastBeat = 0
	for _, c := range []*atomic.Uint64{&d.short, &d.long, &d.double, &d.logged, &d.beats, &d.gaps} {
		c.Store(0)
	}
	d.mgr.Store(nil)
}

// Stats counts what the sample listeners handled.
type Stats struct {
	Short      uint64 `json:"short"`
	Long       uint64 `json:"long"`
	Double     uint64 `json:"double"`
	Logged     uint64 `json:"logged"`
	Heartbeats uint64 `json:"heartbeats"`
	Gaps       uint64 `json:"gaps"`
}

// Stats returns the current counters.
func (d *Detector) Stats() Stats {
	return Stats{
		Short:      d.short.Load(),
		Long:       d.long.Load(),
		Double:     d.double.Load(),
		Logged:     d.logged.Load(),
		Heartbeats: d.beats.Load(),
		Gaps:       d.gaps.Load(),
	}
}

// Press submits a button event for key at offset at.
func Press(m *event.Manager, key uint16, pressed bool, at time.Duration) error {
	b, err := ButtonEventType.New(m)
	if err != nil {
		return err
	}
	b.KeyID, b.Pressed, b.At = key, pressed, at
	return m.Submit(b)
}

// Beat submits heartbeat n followed by a simulated press and release of
// key n%4 at offset at. Every fifth beat holds the key long enough for a
// long click.
func Beat(m *event.Manager, n uint32, at time.Duration) error {
	hb, err := HeartbeatEventType.New(m)
	if err != nil {
		return err
	}
	hb.Count = n
	if err := m.Submit(hb); err != nil {
		return err
	}

	hold := 100 * time.Millisecond
	if n%5 == 0 {
		hold = LongPress + 200*time.Millisecond
	}
	key := uint16(n % 4)
	return errors.Join(
		Press(m, key, true, at),
		Press(m, key, false, at+hold),
	)
}

// Run calls Beat every interval until ctx ends. A zero interval disables
// the producer and Run just waits for ctx.
func Run(ctx context.Context, m *event.Manager, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	var n uint32
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n++
			err := Beat(m, n, time.Since(start))
			if errors.Is(err, event.ErrStopped) {
				return nil
			}
			if err != nil {
				m.Logger().Warn("heartbeat dropped", "count", n, "err", err)
			}
		}
	}
}

// Announce sets every module in ids to state s.
func Announce(m *event.Manager, ids []string, s module.State) error {
	var errs []error
	for _, id := range ids {
		errs = append(errs, module.Set(m, module.ID(id), s))
	}
	return errors.Join(errs...)
}
