package power

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/module"
)

var table *event.Table

func TestMain(m *testing.M) {
	table = event.MustBuild()
	os.Exit(m.Run())
}

// observed records power events after their listener walk.
type observed struct {
	mu     sync.Mutex
	events []string
}

func (o *observed) hook(evt event.Event, _ bool) {
	var name string
	switch {
	case DownEventType.Is(evt):
		d, _ := DownEventType.Cast(evt)
		name = "down"
		if d.Error {
			name = "down:error"
		}
	case WakeUpEventType.Is(evt):
		name = "wake"
	default:
		return
	}
	o.mu.Lock()
	o.events = append(o.events, name)
	o.mu.Unlock()
}

func (o *observed) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func start(t *testing.T) (*event.Manager, *observed) {
	t.Helper()
	tracker.reset()
	obs := &observed{}
	m, err := event.NewManager(table,
		event.WithPostInitHook(Attach),
		event.WithPostProcessHook(obs.hook),
	)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		tracker.Attach(nil)
	})
	return m, obs
}

func drain(t *testing.T, m *event.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Drain(ctx))
}

func set(t *testing.T, m *event.Manager, id module.ID, s module.State) {
	t.Helper()
	require.NoError(t, module.Set(m, id, s))
	drain(t, m)
}

func TestTracker_PowerDownAndWake(t *testing.T) {
	m, obs := start(t)

	set(t, m, "leds", module.StateReady)
	set(t, m, "buttons", module.StateReady)
	assert.Equal(t, 2, Default().Active())

	set(t, m, "leds", module.StateStandby)
	assert.Empty(t, obs.list())

	set(t, m, "buttons", module.StateOff)
	drain(t, m)
	assert.Equal(t, []string{"down"}, obs.list())
	assert.True(t, Default().PoweredDown())
	assert.Zero(t, Default().Active())

	// Staying down does not repeat the request.
	set(t, m, "buttons", module.StateOff)
	assert.Equal(t, []string{"down"}, obs.list())

	set(t, m, "leds", module.StateReady)
	drain(t, m)
	assert.Equal(t, []string{"down", "wake"}, obs.list())
	assert.False(t, Default().PoweredDown())
}

func TestTracker_ErrorDown(t *testing.T) {
	m, obs := start(t)

	set(t, m, "sensor", module.StateReady)
	set(t, m, "sensor", module.StateError)
	drain(t, m)

	assert.Equal(t, []string{"down:error"}, obs.list())
}

func TestTracker_InactiveModuleIgnored(t *testing.T) {
	m, obs := start(t)

	set(t, m, "late", module.StateStandby)
	assert.Empty(t, obs.list())
	assert.False(t, Default().PoweredDown())
}

func TestTracker_Subscribed(t *testing.T) {
	l, ok := table.Listener("power_manager")
	require.True(t, ok)
	subs := table.SubscriptionsOf(l)
	require.Len(t, subs, 1)
	assert.Equal(t, module.StateEventType.EventType(), subs[0].Type)
}
