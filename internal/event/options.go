package event

import (
	"log/slog"

	"github.com/dshills/appevent/internal/profiler"
)

// Option configures a Manager.
type Option func(*managerConfig)

// managerConfig contains configuration for the event manager.
type managerConfig struct {
	// logger receives event traces and listener panics.
	logger *slog.Logger

	// profiler receives type descriptors and trace records.
	profiler profiler.Profiler

	// maxBytes is the allocation pool byte budget (0 = unbounded).
	maxBytes int64

	// maxEvents is the maximum number of live events (0 = unbounded).
	maxEvents int64

	// showListeners logs every listener invocation at debug level.
	showListeners bool

	submitHooks []SubmitHook
	preHooks    []PreProcessHook
	postHooks   []PostProcessHook
	initHooks   []PostInitHook
}

// defaultManagerConfig returns sensible default configuration.
func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger:   slog.New(slog.DiscardHandler),
		profiler: profiler.Nop{},
		maxBytes: 1 << 20,
	}
}

// WithLogger sets the logger used for event traces.
func WithLogger(l *slog.Logger) Option {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProfiler sets the trace backend.
func WithProfiler(p profiler.Profiler) Option {
	return func(c *managerConfig) {
		if p != nil {
			c.profiler = p
		}
	}
}

// WithMaxBytes sets the allocation pool byte budget. Zero means unbounded.
func WithMaxBytes(n int64) Option {
	return func(c *managerConfig) {
		if n >= 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxEvents limits the number of live events. Zero means unbounded.
func WithMaxEvents(n int64) Option {
	return func(c *managerConfig) {
		if n >= 0 {
			c.maxEvents = n
		}
	}
}

// WithShowListeners logs each listener call at debug level.
func WithShowListeners(on bool) Option {
	return func(c *managerConfig) {
		c.showListeners = on
	}
}

// WithSubmitHook adds a hook run by Submit on the producer goroutine.
func WithSubmitHook(h SubmitHook) Option {
	return func(c *managerConfig) {
		if h != nil {
			c.submitHooks = append(c.submitHooks, h)
		}
	}
}

// WithPreProcessHook adds a hook run before each listener walk.
func WithPreProcessHook(h PreProcessHook) Option {
	return func(c *managerConfig) {
		if h != nil {
			c.preHooks = append(c.preHooks, h)
		}
	}
}

// WithPostProcessHook adds a hook run after each listener walk.
func WithPostProcessHook(h PostProcessHook) Option {
	return func(c *managerConfig) {
		if h != nil {
			c.postHooks = append(c.postHooks, h)
		}
	}
}

// WithPostInitHook adds a hook run on the dispatcher goroutine once it
// starts, before any queued event is delivered.
func WithPostInitHook(h PostInitHook) Option {
	return func(c *managerConfig) {
		if h != nil {
			c.initHooks = append(c.initHooks, h)
		}
	}
}
