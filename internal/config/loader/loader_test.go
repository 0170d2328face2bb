package loader

import (
	"errors"
	"io/fs"
	"testing"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func TestTOMLLoader_Load(t *testing.T) {
	mfs := NewMemFS()
	mfs.AddFile("/etc/appevent.toml", `
[pool]
max_bytes = 4096

[trace]
log = ["button_event"]

[[script]]
name = "beeper"
events = ["click_event"]
`)

	config, err := NewTOMLLoaderWithFS(mfs, "/etc/appevent.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if val, ok := getByPath(config, "pool.max_bytes"); !ok || val != int64(4096) {
		t.Errorf("pool.max_bytes = %v (%T), want 4096", val, val)
	}
	list, ok := getByPath(config, "trace.log")
	if !ok {
		t.Fatal("trace.log missing")
	}
	if l, _ := list.([]any); len(l) != 1 || l[0] != "button_event" {
		t.Errorf("trace.log = %v", list)
	}
	scripts, _ := config["script"].([]any)
	if len(scripts) != 1 {
		t.Fatalf("script = %v", config["script"])
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/nope.toml").Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if config != nil {
		t.Errorf("config = %v, want nil", config)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	mfs := NewMemFS()
	mfs.AddFile("bad.toml", "[pool]\nmax_bytes = = 3\n")

	_, err := NewTOMLLoaderWithFS(mfs, "bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if perr.Path != "bad.toml" {
		t.Errorf("Path = %q", perr.Path)
	}
	if perr.Line != 2 {
		t.Errorf("Line = %d, want 2", perr.Line)
	}
	if perr.Unwrap() == nil {
		t.Error("expected wrapped decode error")
	}
}

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoaderFrom("APPEVENT_", []string{
		"APPEVENT_POOL_MAX_EVENTS=32",
		"APPEVENT_LOG_LEVEL=debug",
		"APPEVENT_TRACE_SHOW_LISTENERS=true",
		"APPEVENT_TRACE_LOG=button_event,click_event",
		"APPEVENT_PROFILER_MQTT_BROKER=tcp://broker:1883",
		"APPEVENT_SAMPLE_HEARTBEAT=250ms",
		"APPEVENT_EMPTY=",
		"APPEVENT_NOSECTION=1",
		"OTHER_POOL_MAX_EVENTS=1",
	})

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"pool.max_events", int64(32)},
		{"log.level", "debug"},
		{"trace.show_listeners", true},
		{"profiler.mqtt.broker", "tcp://broker:1883"},
		{"sample.heartbeat", "250ms"},
	}
	for _, tt := range tests {
		got, ok := getByPath(config, tt.path)
		if !ok || got != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.path, got, got, tt.want)
		}
	}

	list, _ := getByPath(config, "trace.log")
	if l, _ := list.([]any); len(l) != 2 || l[1] != "click_event" {
		t.Errorf("trace.log = %v", list)
	}
	if len(config) != 5 {
		t.Errorf("unexpected sections: %v", config)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"yes", true},
		{"OFF", false},
		{"-12", int64(-12)},
		{"0.5", 0.5},
		{"1s", "1s"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}

	arr, ok := parseValue(`["a","b"]`).([]any)
	if !ok || len(arr) != 2 {
		t.Errorf("JSON array not parsed: %v", arr)
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"pool": map[string]any{"max_bytes": int64(1), "max_events": int64(2)},
		"log":  map[string]any{"level": "info"},
	}
	src := map[string]any{
		"pool":  map[string]any{"max_bytes": int64(9)},
		"trace": map[string]any{"log": []any{"x"}},
	}

	got := DeepMerge(dst, src)

	if v, _ := getByPath(got, "pool.max_bytes"); v != int64(9) {
		t.Errorf("pool.max_bytes = %v, want 9", v)
	}
	if v, _ := getByPath(got, "pool.max_events"); v != int64(2) {
		t.Errorf("pool.max_events = %v, want 2", v)
	}
	if _, ok := getByPath(got, "trace.log"); !ok {
		t.Error("trace.log not merged")
	}
	if DeepMerge(nil, nil) == nil {
		t.Error("DeepMerge(nil, nil) should return an empty map")
	}
}

// getByPath retrieves a value from a nested map using a dot-separated path.
func getByPath(data map[string]any, path string) (any, bool) {
	current := any(data)
	for _, part := range splitPath(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}
