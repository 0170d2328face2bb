// Package config holds the appevent configuration: the allocation budget,
// logging, trace toggles, profiler sink, admin listener and scripted
// listeners.
//
// Configuration comes from a TOML file overlaid with APPEVENT_* environment
// variables:
//
//	[pool]
//	max_bytes = 1048576
//
//	[trace]
//	log = ["button_event", "module_state_event"]
//
//	[[script]]
//	name = "beeper"
//	path = "scripts/beeper.lua"
//	events = ["click_event"]
//	priority = "early"
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/appevent/internal/config/loader"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "APPEVENT_"

// Config is the complete application configuration.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Pool     PoolConfig     `toml:"pool"`
	Trace    TraceConfig    `toml:"trace"`
	Profiler ProfilerConfig `toml:"profiler"`
	Admin    AdminConfig    `toml:"admin"`
	Scripts  []ScriptConfig `toml:"script"`
	Sample   SampleConfig   `toml:"sample"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

// PoolConfig configures the event allocation budget.
type PoolConfig struct {
	// MaxBytes is the byte budget; 0 means unbounded.
	MaxBytes int64 `toml:"max_bytes"`
	// MaxEvents limits live events; 0 means unbounded.
	MaxEvents int64 `toml:"max_events"`
}

// TraceConfig selects which event types are traced. These settings are
// reloaded while running.
type TraceConfig struct {
	// Log names types whose deliveries are logged. "*" selects all.
	Log []string `toml:"log"`
	// Profile names types that emit profiler records. "*" selects all.
	Profile []string `toml:"profile"`
	// ShowListeners logs every listener call at debug level.
	ShowListeners bool `toml:"show_listeners"`
	// Assertions makes unhandled events panic.
	Assertions bool `toml:"assertions"`
}

// Logs reports whether deliveries of type name should be logged.
func (t TraceConfig) Logs(name string) bool { return selects(t.Log, name) }

// Profiles reports whether type name should emit profiler records.
func (t TraceConfig) Profiles(name string) bool { return selects(t.Profile, name) }

func selects(list []string, name string) bool {
	return slices.Contains(list, "*") || slices.Contains(list, name)
}

// ProfilerConfig selects the trace backend.
type ProfilerConfig struct {
	// Sink is none, file or mqtt.
	Sink string `toml:"sink"`
	// Path is the output file of the file sink.
	Path string `toml:"path"`

	MQTT MQTTConfig `toml:"mqtt"`
}

// MQTTConfig configures the MQTT trace sink.
type MQTTConfig struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
	QoS      int    `toml:"qos"`
	Buffer   int    `toml:"buffer"`
}

// AdminConfig configures the HTTP introspection API.
type AdminConfig struct {
	// Addr is the listen address; empty disables the API.
	Addr string `toml:"addr"`
}

// ScriptConfig declares a Lua listener.
type ScriptConfig struct {
	Name     string   `toml:"name"`
	Path     string   `toml:"path"`
	Events   []string `toml:"events"`
	Priority string   `toml:"priority"`
}

// SampleConfig configures the sample application.
type SampleConfig struct {
	// Heartbeat is the heartbeat interval, e.g. "1s". Empty disables it.
	Heartbeat string `toml:"heartbeat"`
	// Modules are announced READY at startup.
	Modules []string `toml:"modules"`
}

// HeartbeatInterval parses Heartbeat. It returns 0 when disabled.
func (s SampleConfig) HeartbeatInterval() time.Duration {
	d, _ := time.ParseDuration(s.Heartbeat)
	return d
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Pool:     PoolConfig{MaxBytes: 1 << 20},
		Profiler: ProfilerConfig{Sink: "none", MQTT: MQTTConfig{Topic: "appevent/trace", QoS: 1, Buffer: 1024}},
		Sample:   SampleConfig{Heartbeat: "1s"},
	}
}

// Load reads path (if non-empty and present), applies environment
// overrides on top and validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(path, loader.NewEnvLoader(EnvPrefix), loader.NewTOMLLoader(path))
}

// LoadWith merges the defaults, the file loader and the environment loader.
// Either loader may be nil.
func LoadWith(path string, env loader.Loader, file loader.Loader) (*Config, error) {
	merged := map[string]any{}
	if file != nil && path != "" {
		data, err := file.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}
	if env != nil {
		data, err := env.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	normalizeLists(merged)

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// listKeys are settings that accept a single string in place of a list.
var listKeys = [][2]string{
	{"trace", "log"},
	{"trace", "profile"},
	{"sample", "modules"},
}

func normalizeLists(data map[string]any) {
	for _, k := range listKeys {
		section, ok := data[k[0]].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := section[k[1]].(string); ok {
			section[k[1]] = []any{s}
		}
	}
}

// decode overlays the settings in data on cfg.
func decode(data map[string]any, cfg *Config) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []*ValidationError
	add := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		add("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add("log.format", "must be text or json", c.Log.Format)
	}

	if c.Pool.MaxBytes < 0 {
		add("pool.max_bytes", "must not be negative", c.Pool.MaxBytes)
	}
	if c.Pool.MaxEvents < 0 {
		add("pool.max_events", "must not be negative", c.Pool.MaxEvents)
	}

	switch c.Profiler.Sink {
	case "", "none":
	case "file":
		if c.Profiler.Path == "" {
			add("profiler.path", "required for the file sink", c.Profiler.Path)
		}
	case "mqtt":
		if c.Profiler.MQTT.Broker == "" {
			add("profiler.mqtt.broker", "required for the mqtt sink", c.Profiler.MQTT.Broker)
		}
		if q := c.Profiler.MQTT.QoS; q < 0 || q > 2 {
			add("profiler.mqtt.qos", "must be 0, 1 or 2", q)
		}
	default:
		add("profiler.sink", "must be none, file or mqtt", c.Profiler.Sink)
	}

	names := make(map[string]bool)
	for i, s := range c.Scripts {
		path := fmt.Sprintf("script[%d]", i)
		switch {
		case s.Name == "":
			add(path+".name", "required", s.Name)
		case names[s.Name]:
			add(path+".name", "duplicate script name", s.Name)
		}
		names[s.Name] = true
		if s.Path == "" {
			add(path+".path", "required", s.Path)
		}
		if len(s.Events) == 0 {
			add(path+".events", "at least one event type required", s.Events)
		}
		switch strings.ToLower(s.Priority) {
		case "", "first", "early", "normal", "final":
		default:
			add(path+".priority", "must be first, early, normal or final", s.Priority)
		}
	}

	if s := c.Sample.Heartbeat; s != "" {
		if d, err := time.ParseDuration(s); err != nil || d < 0 {
			add("sample.heartbeat", "must be a non-negative duration", s)
		}
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
