package lua

import (
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox strips a state of functions that reach the host and routes
// script output to a logger.
type Sandbox struct {
	L      *lua.LState
	logger *slog.Logger
}

// NewSandbox creates a sandbox for L. Output is discarded until SetLogger.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{L: L, logger: slog.New(slog.DiscardHandler)}
}

// removedGlobals load code from outside the script.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"collectgarbage",
}

// Install applies the restrictions.
func (s *Sandbox) Install() {
	for _, name := range removedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.L.SetGlobal("print", s.L.NewFunction(s.print))
}

// SetLogger sets the logger that receives print output.
func (s *Sandbox) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Sandbox) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info(strings.Join(parts, "\t"))
	return 0
}
