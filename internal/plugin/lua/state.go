package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into a script.
const DefaultExecutionTimeout = 100 * time.Millisecond

// State wraps a gopher-lua state opened with the safe standard libraries.
//
// gopher-lua's LState is not goroutine-safe. Script listeners only run on
// the dispatcher goroutine; the mutex covers loading and Close, which may
// happen elsewhere.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the time limit for each call. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)

	s.sandbox = NewSandbox(s.L)
	s.sandbox.Install()
	return s
}

// openSafeLibraries opens the Lua libraries that cannot reach the host.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// Sandbox returns the sandbox installed in the state.
func (s *State) Sandbox() *Sandbox { return s.sandbox }

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.do(func() error { return s.L.DoFile(path) })
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	return s.do(func() error { return s.L.DoString(code) })
}

func (s *State) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.withTimeout(fn)
}

// withTimeout runs fn with the call deadline installed on the state.
// The caller holds s.mu or owns the state exclusively.
func (s *State) withTimeout(fn func() error) (err error) {
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
		defer func() {
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w after %s: %w", ErrExecutionTimeout, s.timeout, err)
			}
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Function returns the global function name, or nil.
func (s *State) Function(name string) *lua.LFunction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	fn, _ := s.L.GetGlobal(name).(*lua.LFunction)
	return fn
}

// Call calls fn with args and returns its first result.
func (s *State) Call(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	ret := lua.LValue(lua.LNil)
	err := s.withTimeout(func() error {
		if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	return ret, err
}

// RegisterModule installs a global table of Go functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.SetFuncs(s.L.NewTable(), funcs))
}

// Close releases the Lua state. Further calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
