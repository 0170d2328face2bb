package lua

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/appevent/internal/config"
	"github.com/dshills/appevent/internal/event"
)

// HandlerName is the global function a script defines to receive events.
// It is called with one table argument and returns true to consume the
// event.
const HandlerName = "on_event"

// Script is a Lua listener. Notify runs on the dispatcher goroutine only.
type Script struct {
	name    string
	state   *State
	bridge  *Bridge
	handler *lua.LFunction
	logger  *slog.Logger

	calls    atomic.Uint64
	consumed atomic.Uint64
	failures atomic.Uint64
}

// Load reads and runs the script at path. The script must define on_event.
func Load(name, path string, logger *slog.Logger, opts ...StateOption) (*Script, error) {
	return load(name, logger, opts, func(s *State) error { return s.DoFile(path) })
}

// LoadString runs code as the script name.
func LoadString(name, code string, logger *slog.Logger, opts ...StateOption) (*Script, error) {
	return load(name, logger, opts, func(s *State) error { return s.DoString(code) })
}

func load(name string, logger *slog.Logger, opts []StateOption, run func(*State) error) (*Script, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Script{
		name:   name,
		state:  NewState(opts...),
		logger: logger.With("script", name),
	}
	s.bridge = NewBridge(s.state.L)
	s.state.Sandbox().SetLogger(s.logger)
	s.state.RegisterModule("appevent", map[string]lua.LGFunction{
		"log":  s.luaLog(slog.LevelInfo),
		"warn": s.luaLog(slog.LevelWarn),
	})

	if err := run(s.state); err != nil {
		_ = s.state.Close()
		return nil, fmt.Errorf("load script %q: %w", name, err)
	}
	s.handler = s.state.Function(HandlerName)
	if s.handler == nil {
		_ = s.state.Close()
		return nil, fmt.Errorf("load script %q: %w", name, ErrNoHandler)
	}
	return s, nil
}

// Declare loads the script described by cfg and subscribes it in r.
func Declare(r *event.Registry, cfg config.ScriptConfig, logger *slog.Logger, opts ...StateOption) (*Script, error) {
	p, err := event.ParsePriority(cfg.Priority)
	if err != nil {
		return nil, fmt.Errorf("script %q: %w", cfg.Name, err)
	}
	s, err := Load(cfg.Name, cfg.Path, logger, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.Register(r, cfg.Events, p); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Register declares s as a listener in r subscribed to the named event
// types at priority p. The types must already be registered.
func (s *Script) Register(r *event.Registry, events []string, p event.Priority) (*event.Listener, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("script %q: %w", s.name, ErrNoEvents)
	}
	types := make([]*event.Type, 0, len(events))
	for _, name := range events {
		t, ok := r.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("script %q: event %q: %w", s.name, name, event.ErrUnknownType)
		}
		types = append(types, t)
	}

	l := r.Listen(s.name, s.Notify)
	for _, t := range types {
		r.Subscribe(l, t, p)
	}
	return l, nil
}

// Name returns the listener name.
func (s *Script) Name() string { return s.name }

// Notify passes evt to on_event. A script error is logged and the event
// is not consumed.
func (s *Script) Notify(evt event.Event) bool {
	s.calls.Add(1)
	h := evt.EventHeader()

	ret, err := s.state.Call(s.handler, s.bridge.EventTable(evt))
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("script failed", "type", h.TypeName(), "seq", h.Seq(), "error", err)
		return false
	}
	if lua.LVAsBool(ret) {
		s.consumed.Add(1)
		return true
	}
	return false
}

// luaLog implements appevent.log(msg [, fields]).
func (s *Script) luaLog(level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		var attrs []any
		if t, ok := L.Get(2).(*lua.LTable); ok {
			if fields, ok := s.bridge.ToGoValue(t).(map[string]any); ok {
				for k, v := range fields {
					attrs = append(attrs, k, v)
				}
			}
		}
		s.logger.Log(L.Context(), level, msg, attrs...)
		return 0
	}
}

// Close releases the Lua state.
func (s *Script) Close() error {
	return s.state.Close()
}

// Stats counts calls into the script.
type Stats struct {
	Calls    uint64 `json:"calls"`
	Consumed uint64 `json:"consumed"`
	Failures uint64 `json:"failures"`
}

// Stats returns the current counters.
func (s *Script) Stats() Stats {
	return Stats{
		Calls:    s.calls.Load(),
		Consumed: s.consumed.Load(),
		Failures: s.failures.Load(),
	}
}
