package app

import (
	"testing"

	"github.com/dshills/appevent/internal/config"
	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/profiler"
)

type traced struct {
	event.Header
	N uint8
}

func traceTable(t *testing.T) *event.Table {
	t.Helper()
	r := event.NewRegistry()
	info := profiler.Info{Labels: []string{"n"}, Types: []profiler.ArgType{profiler.ArgU8}}
	encode := func(e *traced, b *profiler.Buffer) { b.PutU8(e.N) }

	event.DeclareIn[traced](r, "loud", event.WithFlags(event.FlagLogEnabled|event.FlagProfileEnabled),
		event.WithProfile(info, encode))
	event.DeclareIn[traced](r, "quiet", event.WithProfile(info, encode))
	event.DeclareIn[traced](r, "plain")
	return r.MustBuild()
}

func toggles(t *testing.T, tab *event.Table, name string) (log, profile bool) {
	t.Helper()
	typ, ok := tab.TypeByName(name)
	if !ok {
		t.Fatalf("type %q not found", name)
	}
	return typ.LogEnabled(), typ.ProfileEnabled()
}

func TestApplyTrace(t *testing.T) {
	tab := traceTable(t)

	if n := ApplyTrace(tab, config.TraceConfig{}); n != 0 {
		t.Errorf("defaults changed %d toggles, want 0", n)
	}
	if log, profile := toggles(t, tab, "loud"); !log || !profile {
		t.Error("registration flags should stay on with an empty trace config")
	}

	n := ApplyTrace(tab, config.TraceConfig{Log: []string{"quiet"}, Profile: []string{"*"}})
	if n != 3 {
		t.Errorf("changed %d toggles, want 3", n)
	}
	if log, profile := toggles(t, tab, "loud"); log || !profile {
		t.Errorf("loud: log=%t profile=%t", log, profile)
	}
	if log, profile := toggles(t, tab, "quiet"); !log || !profile {
		t.Errorf("quiet: log=%t profile=%t", log, profile)
	}
	if log, profile := toggles(t, tab, "plain"); log || profile {
		t.Errorf("plain: log=%t profile=%t", log, profile)
	}

	ApplyTrace(tab, config.TraceConfig{})
	if log, profile := toggles(t, tab, "quiet"); log || profile {
		t.Error("a nil list should restore the registration flags")
	}
}

func TestApplyTrace_EmptyListDisables(t *testing.T) {
	tab := traceTable(t)
	ApplyTrace(tab, config.TraceConfig{Log: []string{}, Profile: []string{}})
	if log, profile := toggles(t, tab, "loud"); log || profile {
		t.Errorf("loud: log=%t profile=%t", log, profile)
	}
}

func TestApplyTrace_Assertions(t *testing.T) {
	tab := traceTable(t)
	ApplyTrace(tab, config.TraceConfig{Assertions: true})
	if !tab.Registry().Assertions() {
		t.Error("expected assertions on")
	}
	ApplyTrace(tab, config.TraceConfig{})
	if tab.Registry().Assertions() {
		t.Error("expected assertions off")
	}
}
