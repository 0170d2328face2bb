// Package app wires the event manager to its configuration, logger,
// profiler sink, scripted listeners, admin API and the sample application,
// and manages the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/appevent/internal/admin"
	"github.com/dshills/appevent/internal/config"
	"github.com/dshills/appevent/internal/config/watcher"
	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/module"
	"github.com/dshills/appevent/internal/module/power"
	"github.com/dshills/appevent/internal/plugin/lua"
	"github.com/dshills/appevent/internal/profiler"
	"github.com/dshills/appevent/internal/profiler/mqtt"
	"github.com/dshills/appevent/internal/sample"
)

// DefaultShutdownTimeout bounds the shutdown sequence.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures the application.
type Options struct {
	// ConfigPath is the TOML configuration file. Relative script paths
	// are resolved against its directory.
	ConfigPath string

	// Watch reloads ConfigPath while running when it changes.
	Watch bool

	// Config is used instead of loading ConfigPath when set.
	Config *config.Config

	// Override adjusts every loaded configuration, including the ones read
	// by Reload, before it is validated. Command line flags go here.
	Override func(*config.Config)

	// Registry holds the event types and listeners. Defaults to
	// event.Default.
	Registry *event.Registry

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// ShutdownTimeout bounds Run's shutdown sequence.
	ShutdownTimeout time.Duration
}

// Application owns one event manager and everything around it.
type Application struct {
	opts Options
	cfg  atomic.Pointer[config.Config]

	log   *slog.Logger
	level *slog.LevelVar

	registry *event.Registry
	table    *event.Table
	manager  *event.Manager
	metrics  *Metrics

	prof      profiler.Profiler
	profStats admin.StatsFunc
	scripts   []*lua.Script
	server    *admin.Server
	watcher   *watcher.Watcher

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates an Application with the given options. Scripted listeners
// are declared in the registry before it is built, so New must run before
// anything else builds the registry.
func New(opts Options) (*Application, error) {
	if opts.Registry == nil {
		opts.Registry = event.Default
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	app := &Application{
		opts:     opts,
		registry: opts.Registry,
		metrics:  NewMetrics(),
	}
	if err := app.bootstrap(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		_ = app.closeComponents(ctx)
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Configuration
	cfg := app.opts.Config
	if cfg == nil {
		var err error
		cfg, err = app.loadConfig()
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
	}
	app.cfg.Store(cfg)

	// 2. Logger
	log, level, err := NewLogger(cfg.Log, app.opts.LogOutput)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	app.log, app.level = log, level

	// 3. Scripted listeners, declared before the registry freezes
	for _, sc := range cfg.Scripts {
		sc.Path = app.resolve(sc.Path)
		s, err := lua.Declare(app.registry, sc, ComponentLogger(log, "script").With("script", sc.Name))
		if err != nil {
			return &InitError{Component: "script", Err: err}
		}
		app.scripts = append(app.scripts, s)
	}

	// 4. Listener table
	app.table, err = app.registry.Build()
	if err != nil {
		return &InitError{Component: "registry", Err: err}
	}
	ApplyTrace(app.table, cfg.Trace)

	// 5. Profiler sink
	if err := app.openProfiler(cfg.Profiler); err != nil {
		return &InitError{Component: "profiler", Err: err}
	}

	// 6. Event manager
	mopts := []event.Option{
		event.WithLogger(ComponentLogger(log, "event")),
		event.WithProfiler(app.prof),
		event.WithMaxBytes(cfg.Pool.MaxBytes),
		event.WithMaxEvents(cfg.Pool.MaxEvents),
		event.WithShowListeners(cfg.Trace.ShowListeners),
		event.WithPostInitHook(power.Attach),
		event.WithPostInitHook(sample.Attach),
	}
	mopts = append(mopts, app.metrics.Options()...)
	app.manager, err = event.NewManager(app.table, mopts...)
	if err != nil {
		return &InitError{Component: "manager", Err: err}
	}

	// 7. Admin API
	if cfg.Admin.Addr != "" {
		api := admin.New(ComponentLogger(log, "admin"), app.manager, app.statsOptions()...)
		app.server, err = admin.Listen(cfg.Admin.Addr, api)
		if err != nil {
			return &InitError{Component: "admin", Err: err}
		}
	}

	// 8. Config watcher
	if app.opts.Watch && app.opts.ConfigPath != "" {
		if err := app.watch(); err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
	}

	return nil
}

// resolve makes a script path relative to the configuration file.
func (app *Application) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || app.opts.ConfigPath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(app.opts.ConfigPath), path)
}

func (app *Application) openProfiler(cfg config.ProfilerConfig) error {
	log := ComponentLogger(app.log, "profiler")
	switch cfg.Sink {
	case "file":
		f, err := os.Create(cfg.Path)
		if err != nil {
			return err
		}
		s := profiler.NewStream(f, profiler.NewSessionID())
		app.prof = s
		app.profStats = func() any {
			return map[string]any{"sink": "file", "session": s.Session().String(), "dropped": s.Dropped(), "truncated": s.Truncated()}
		}
		log.Info("writing trace", "path", cfg.Path, "session", s.Session().String())
	case "mqtt":
		s, err := mqtt.Dial(log, mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Buffer:   cfg.MQTT.Buffer,
		})
		if err != nil {
			return err
		}
		app.prof = s
		app.profStats = func() any { return s.Stats() }
	default:
		app.prof = profiler.Nop{}
	}
	return nil
}

func (app *Application) statsOptions() []admin.Option {
	opts := []admin.Option{
		admin.WithStats("metrics", func() any { return app.metrics.Snapshot() }),
		admin.WithStats("power", func() any {
			t := power.Default()
			return map[string]any{"active": t.Active(), "powered_down": t.PoweredDown()}
		}),
		admin.WithStats("sample", func() any { return sample.Default().Stats() }),
	}
	if len(app.scripts) > 0 {
		opts = append(opts, admin.WithStats("scripts", func() any {
			out := make(map[string]lua.Stats, len(app.scripts))
			for _, s := range app.scripts {
				out[s.Name()] = s.Stats()
			}
			return out
		}))
	}
	if app.profStats != nil {
		opts = append(opts, admin.WithStats("profiler", app.profStats))
	}
	return opts
}

func (app *Application) watch() error {
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		app.log.Warn("config watcher error", "error", err)
	}))
	if err != nil {
		return err
	}
	if err := w.Watch(app.opts.ConfigPath); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove {
			return
		}
		if err := app.Reload(); err != nil {
			app.log.Warn("config reload failed", "path", ev.Path, "error", err)
		}
	})
	app.watcher = w
	return nil
}

// loadConfig reads ConfigPath and applies Override on top of it.
func (app *Application) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.opts.Override == nil {
		return cfg, nil
	}
	app.opts.Override(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload reads the configuration file again and applies the settings that
// can change while running: the log level and the trace section. Override
// is applied again, so command line flags keep precedence over the file.
func (app *Application) Reload() error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	lvl, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	app.cfg.Store(cfg)
	app.level.Set(lvl)
	n := ApplyTrace(app.table, cfg.Trace)
	app.log.Info("config reloaded", "changed", n, "level", lvl.String())
	return nil
}

// Run starts the dispatcher and the sample producers and blocks until ctx
// ends, then shuts everything down. An Application runs once.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.manager.Start(); err != nil {
		return &InitError{Component: "manager", Err: err}
	}
	if app.watcher != nil {
		app.watcher.Start()
	}
	if app.server != nil {
		app.server.Serve()
	}

	cfg := app.Config()
	if err := sample.Announce(app.manager, cfg.Sample.Modules, module.StateReady); err != nil {
		app.log.Warn("announce modules", "error", err)
	}
	if d := cfg.Sample.HeartbeatInterval(); d > 0 {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := sample.Run(ctx, app.manager, d); err != nil {
				app.log.Warn("sample stopped", "error", err)
			}
		}()
	}

	app.log.Info("appevent running",
		"manager", app.manager.ID().String(),
		"types", len(app.table.Types()),
		"listeners", len(app.table.Listeners()),
	)
	<-ctx.Done()
	return app.shutdown()
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.opts.ShutdownTimeout)
	defer cancel()

	app.wg.Wait()

	var errs []error
	if err := sample.Announce(app.manager, app.Config().Sample.Modules, module.StateOff); err != nil {
		errs = append(errs, NewComponentError("sample", "announce", err))
	}
	if err := app.manager.Stop(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrShutdownTimeout, err)
		}
		errs = append(errs, NewComponentError("manager", "stop", err))
	}
	errs = append(errs, app.closeComponents(ctx))

	app.log.Info("appevent stopped", "delivered", app.manager.Stats().Delivered)
	return errors.Join(errs...)
}

// closeComponents releases everything opened by bootstrap. It tolerates a
// partially initialized application.
func (app *Application) closeComponents(ctx context.Context) error {
	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Stop(); err != nil {
			errs = append(errs, NewComponentError("watcher", "stop", err))
		}
	}
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			errs = append(errs, NewComponentError("admin", "shutdown", err))
		}
	}
	if app.prof != nil {
		if err := app.prof.Close(); err != nil {
			errs = append(errs, NewComponentError("profiler", "close", err))
		}
	}
	for _, s := range app.scripts {
		if err := s.Close(); err != nil {
			errs = append(errs, NewComponentError("script", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close releases an application that was created but never run.
func (app *Application) Close() error {
	if app.running.Load() {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.opts.ShutdownTimeout)
	defer cancel()
	return app.closeComponents(ctx)
}

// IsRunning returns true if the application is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the current configuration. It changes on Reload.
func (app *Application) Config() *config.Config {
	return app.cfg.Load()
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.log }

// Manager returns the event manager.
func (app *Application) Manager() *event.Manager { return app.manager }

// Table returns the listener table.
func (app *Application) Table() *event.Table { return app.table }

// Metrics returns the delivery metrics.
func (app *Application) Metrics() *Metrics { return app.metrics }

// AdminAddr returns the admin API address, or "" when it is disabled.
func (app *Application) AdminAddr() string {
	if app.server == nil {
		return ""
	}
	return app.server.Addr()
}
