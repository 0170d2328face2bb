package dispatch

import (
	"errors"
	"testing"
)

type fatalValue struct{}

type handlerFunc func(event any) bool

func (f handlerFunc) Notify(event any) bool { return f(event) }

func TestExecutor_Execute(t *testing.T) {
	e := NewExecutor()

	var got any
	res := e.Execute("ping", handlerFunc(func(event any) bool {
		got = event
		return true
	}))

	if got != "ping" {
		t.Errorf("handler received %v, want ping", got)
	}
	if !res.Consumed {
		t.Error("expected result to be consumed")
	}
	if res.Panicked {
		t.Error("expected no panic")
	}
}

func TestExecutor_NotConsumed(t *testing.T) {
	e := NewExecutor()

	res := e.Execute(1, handlerFunc(func(any) bool { return false }))
	if res.Consumed {
		t.Error("expected result not to be consumed")
	}
}

func TestExecutor_PanicRecovery(t *testing.T) {
	var (
		gotEvent   any
		gotHandler Handler
		gotValue   any
		gotStack   []byte
	)
	e := NewExecutor(WithPanicHandler(func(event any, h Handler, v any, stack []byte) {
		gotEvent, gotHandler, gotValue, gotStack = event, h, v, stack
	}))

	boom := handlerFunc(func(any) bool {
		panic("listener failed")
	})
	res := e.Execute("boom", boom)

	if !res.Panicked {
		t.Fatal("expected result to record the panic")
	}
	if res.Consumed {
		t.Error("a panicking handler must not consume the event")
	}
	if res.PanicValue != "listener failed" {
		t.Errorf("PanicValue = %v", res.PanicValue)
	}
	if len(res.PanicStack) == 0 {
		t.Error("expected a stack trace")
	}
	if gotEvent != "boom" || gotValue != "listener failed" || len(gotStack) == 0 {
		t.Error("panic handler was not called with the event, value and stack")
	}
	if gotHandler == nil {
		t.Error("panic handler did not receive the panicking handler")
	}
}

func TestExecutor_PanicHandlerPanics(t *testing.T) {
	e := NewExecutor(WithPanicHandler(func(any, Handler, any, []byte) {
		panic("handler failed too")
	}))

	res := e.Execute(nil, handlerFunc(func(any) bool { panic("first") }))
	if !res.Panicked {
		t.Error("expected panic to be recorded")
	}
}

func TestExecutor_FatalRepanics(t *testing.T) {
	e := NewExecutor(WithFatal(func(v any) bool {
		_, ok := v.(fatalValue)
		return ok
	}))

	defer func() {
		r := recover()
		if _, ok := r.(fatalValue); !ok {
			t.Errorf("recovered %v, want fatalValue", r)
		}
		if e.Stats().Panicked != 0 {
			t.Error("fatal panics must not be counted as recovered")
		}
	}()

	e.Execute(nil, handlerFunc(func(any) bool { panic(fatalValue{}) }))
	t.Fatal("Execute returned after a fatal panic")
}

func TestExecutor_NonFatalError(t *testing.T) {
	e := NewExecutor(WithFatal(func(v any) bool {
		_, ok := v.(fatalValue)
		return ok
	}))

	errBoom := errors.New("boom")
	res := e.Execute(nil, handlerFunc(func(any) bool { panic(errBoom) }))
	if !res.Panicked || res.PanicValue != errBoom {
		t.Errorf("result = %+v", res)
	}
}

func TestExecutor_Stats(t *testing.T) {
	e := NewExecutor()

	e.Execute(nil, handlerFunc(func(any) bool { return true }))
	e.Execute(nil, handlerFunc(func(any) bool { return false }))
	e.Execute(nil, handlerFunc(func(any) bool { panic("x") }))

	s := e.Stats()
	if s.Executed != 3 {
		t.Errorf("Executed = %d, want 3", s.Executed)
	}
	if s.Consumed != 1 {
		t.Errorf("Consumed = %d, want 1", s.Consumed)
	}
	if s.Panicked != 1 {
		t.Errorf("Panicked = %d, want 1", s.Panicked)
	}
	if s.TotalDuration < 0 || s.AvgDuration > s.TotalDuration {
		t.Errorf("durations inconsistent: %+v", s)
	}
}
