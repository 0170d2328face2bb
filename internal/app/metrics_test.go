package app

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/appevent/internal/event"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	snapshot := m.Snapshot()
	if snapshot.Deliveries != 0 {
		t.Errorf("expected 0 deliveries, got %d", snapshot.Deliveries)
	}
	if snapshot.MinWalkNs != 0 {
		t.Errorf("expected 0 min walk time (sentinel handled), got %d", snapshot.MinWalkNs)
	}
	if snapshot.ConsumeRate() != 0 {
		t.Errorf("expected 0 consume rate, got %f", snapshot.ConsumeRate())
	}
}

func TestMetrics_RecordDelivery(t *testing.T) {
	m := NewMetrics()

	m.RecordDelivery("a", 10*time.Millisecond, true)
	m.RecordDelivery("b", 20*time.Millisecond, false)
	m.RecordDelivery("a", 5*time.Millisecond, false)

	s := m.Snapshot()
	if s.Deliveries != 3 || s.Consumed != 1 {
		t.Errorf("deliveries = %d consumed = %d", s.Deliveries, s.Consumed)
	}
	if s.MinWalkNs != int64(5*time.Millisecond) {
		t.Errorf("expected min 5ms, got %d ns", s.MinWalkNs)
	}
	if s.MaxWalkNs != int64(20*time.Millisecond) {
		t.Errorf("expected max 20ms, got %d ns", s.MaxWalkNs)
	}
	if s.LastWalkNs != int64(5*time.Millisecond) {
		t.Errorf("expected last 5ms, got %d ns", s.LastWalkNs)
	}
	if s.AvgWalkNs != int64(35*time.Millisecond)/3 {
		t.Errorf("unexpected average %d ns", s.AvgWalkNs)
	}
	if s.ByType["a"] != 2 || s.ByType["b"] != 1 {
		t.Errorf("by type = %v", s.ByType)
	}
}

func TestMetrics_RecordWait(t *testing.T) {
	m := NewMetrics()
	m.RecordWait(2 * time.Millisecond)
	m.RecordWait(4 * time.Millisecond)

	s := m.Snapshot()
	if s.AvgWaitNs != int64(3*time.Millisecond) {
		t.Errorf("expected avg 3ms, got %d ns", s.AvgWaitNs)
	}
	if s.MaxWaitNs != int64(4*time.Millisecond) {
		t.Errorf("expected max 4ms, got %d ns", s.MaxWaitNs)
	}
}

func TestMetrics_SnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.RecordDelivery("a", time.Millisecond, false)

	s := m.Snapshot()
	s.ByType["a"] = 100
	if m.Snapshot().ByType["a"] != 1 {
		t.Error("snapshot must not alias the live counters")
	}
}

type tick struct {
	event.Header
}

func TestMetrics_Hooks(t *testing.T) {
	r := event.NewRegistry()
	tickType := event.DeclareIn[tick](r, "tick")
	r.Listen("eat", func(event.Event) bool { return true }).Subscribe(tickType)

	m := NewMetrics()
	mgr, err := event.NewManager(r.MustBuild(), m.Options()...)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	for range 3 {
		evt, err := tickType.New(mgr)
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if err := mgr.Submit(evt); err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}

	s := m.Snapshot()
	if s.Deliveries != 3 || s.Consumed != 3 {
		t.Errorf("deliveries = %d consumed = %d", s.Deliveries, s.Consumed)
	}
	if s.ByType["tick"] != 3 {
		t.Errorf("by type = %v", s.ByType)
	}
	if s.AvgWaitNs < 0 || s.MaxWaitNs < s.AvgWaitNs {
		t.Errorf("inconsistent wait times: %+v", s)
	}
}
