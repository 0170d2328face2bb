package app

import (
	"errors"
	"fmt"
	"testing"
)

func TestComponentError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ComponentError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "component only",
			err:      &ComponentError{Component: "admin"},
			expected: "admin",
		},
		{
			name:     "component and action",
			err:      &ComponentError{Component: "admin", Action: "shutdown"},
			expected: "admin: shutdown",
		},
		{
			name:     "component and error",
			err:      &ComponentError{Component: "profiler", Err: errors.New("disk full")},
			expected: "profiler: disk full",
		},
		{
			name:     "full",
			err:      NewComponentError("profiler", "close", errors.New("disk full")),
			expected: "profiler: close: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestComponentError_Is(t *testing.T) {
	inner := errors.New("inner")
	err := NewComponentError("script", "close", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to match wrapped error")
	}
	if !errors.Is(err, err) {
		t.Error("expected errors.Is to match itself")
	}
	if errors.Is(err, NewComponentError("script", "close", inner)) {
		t.Error("distinct wrappers must not match")
	}

	wrapped := fmt.Errorf("shutdown: %w", err)
	var ce *ComponentError
	if !errors.As(wrapped, &ce) || ce.Component != "script" {
		t.Error("expected errors.As to find the component error")
	}
}

func TestComponentError_NilReceiver(t *testing.T) {
	var err *ComponentError
	if err.Unwrap() != nil {
		t.Error("expected nil from Unwrap() on nil receiver")
	}
	if err.Is(ErrShutdownTimeout) {
		t.Error("nil receiver must not match")
	}
}

func TestInitError(t *testing.T) {
	inner := errors.New("address in use")
	err := &InitError{Component: "admin", Err: inner}

	if err.Error() != "init admin: address in use" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrInitialization) {
		t.Error("expected InitError to match ErrInitialization")
	}
	if !errors.Is(err, inner) {
		t.Error("expected InitError to unwrap to the cause")
	}
}
