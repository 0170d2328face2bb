package admin

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/appevent/internal/event"
	"github.com/dshills/appevent/internal/profiler"
)

type button struct {
	event.Header
	Key uint16
}

type tick struct {
	event.Header
}

func newTestAPI(t *testing.T, opts ...Option) (*httptest.Server, *event.Manager) {
	t.Helper()

	r := event.NewRegistry()
	buttonType := event.DeclareIn[button](r, "button_event",
		event.WithFlags(event.FlagLogEnabled),
		event.WithLog(func(e *button) string { return "key" }),
		event.WithProfile(profiler.Info{
			Labels: []string{"key"},
			Types:  []profiler.ArgType{profiler.ArgU16},
		}, func(e *button, b *profiler.Buffer) { b.PutU16(e.Key) }),
	)
	tickType := event.DeclareIn[tick](r, "tick_event")

	r.Listen("click_detector", func(event.Event) bool { return true }).
		SubscribeEarly(buttonType)
	r.Listen("recorder", func(event.Event) bool { return false }).
		Subscribe(buttonType, tickType)

	m, err := event.NewManager(r.MustBuild())
	require.NoError(t, err)

	srv := httptest.NewServer(New(nil, m, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func do(t *testing.T, method, url, body string) (int, gjson.Result) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.True(t, gjson.ValidBytes(raw), "invalid JSON: %s", raw)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func TestEventsList(t *testing.T) {
	srv, _ := newTestAPI(t)

	status, body := do(t, http.MethodGet, srv.URL+"/v1/events", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Array(), 2)

	b := body.Get("0")
	assert.Equal(t, "button_event", b.Get("name").String())
	assert.EqualValues(t, 0, b.Get("id").Int())
	assert.True(t, b.Get("log").Bool())
	assert.False(t, b.Get("profile").Bool())
	assert.True(t, b.Get("has_log").Bool())
	assert.True(t, b.Get("has_profile").Bool())
	assert.EqualValues(t, 2, b.Get("listeners").Int())
	assert.Equal(t, "log", b.Get("flags").String())

	assert.Equal(t, "tick_event", body.Get("1.name").String())
	assert.False(t, body.Get("1.has_profile").Bool())
	assert.False(t, body.Get("1.subscribers").Exists())
}

func TestEventGet(t *testing.T) {
	srv, _ := newTestAPI(t)

	status, body := do(t, http.MethodGet, srv.URL+"/v1/events/button_event", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"click_detector", "recorder"}, toStrings(body.Get("subscribers.#.listener")))
	assert.Equal(t, []string{"early", "normal"}, toStrings(body.Get("subscribers.#.priority")))

	status, body = do(t, http.MethodGet, srv.URL+"/v1/events/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body.Get("error").String(), "nope")
}

func TestToggleLog(t *testing.T) {
	srv, m := newTestAPI(t)
	typ, ok := m.Table().TypeByName("button_event")
	require.True(t, ok)

	status, body := do(t, http.MethodPut, srv.URL+"/v1/events/button_event/log", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, body.Get("log").Bool())
	assert.False(t, typ.LogEnabled())

	status, _ = do(t, http.MethodPut, srv.URL+"/v1/events/button_event/log", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, typ.LogEnabled())
}

func TestToggleProfile(t *testing.T) {
	srv, m := newTestAPI(t)

	status, body := do(t, http.MethodPut, srv.URL+"/v1/events/button_event/profile", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, body.Get("profile").Bool())
	typ, _ := m.Table().TypeByName("button_event")
	assert.True(t, typ.ProfileEnabled())

	status, body = do(t, http.MethodPut, srv.URL+"/v1/events/tick_event/profile", `{"enabled":true}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body.Get("error").String(), "profiler descriptor")

	status, _ = do(t, http.MethodPut, srv.URL+"/v1/events/tick_event/profile", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestToggle_BadRequests(t *testing.T) {
	srv, _ := newTestAPI(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed", "/v1/events/button_event/log", `{`, http.StatusBadRequest},
		{"missing enabled", "/v1/events/button_event/log", `{}`, http.StatusBadRequest},
		{"wrong type", "/v1/events/button_event/log", `{"enabled":"yes"}`, http.StatusBadRequest},
		{"unknown event", "/v1/events/nope/profile", `{"enabled":true}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodPut, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.True(t, body.Get("error").Exists())
		})
	}
}

func TestListenersList(t *testing.T) {
	srv, _ := newTestAPI(t)

	status, body := do(t, http.MethodGet, srv.URL+"/v1/listeners", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"click_detector", "recorder"}, toStrings(body.Get("#.name")))
	assert.Equal(t, []string{"button_event", "tick_event"}, toStrings(body.Get("1.subscriptions.#.type")))
	assert.Equal(t, "early", body.Get("0.subscriptions.0.priority").String())
}

func TestStats(t *testing.T) {
	srv, m := newTestAPI(t, WithStats("power", func() any {
		return map[string]int{"active": 3}
	}))

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	status, body := do(t, http.MethodGet, srv.URL+"/v1/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, m.ID().String(), body.Get("manager.id").String())
	assert.Equal(t, "idle", body.Get("manager.state").String())
	assert.EqualValues(t, 3, body.Get("power.active").Int())
	assert.True(t, body.Get("manager.pool").Exists())
	assert.True(t, body.Get("manager.listener_calls").Exists())
	assert.True(t, body.Get("manager.listener_time_ns").Exists())
}

func TestServer_ListenAndShutdown(t *testing.T) {
	r := event.NewRegistry()
	m, err := event.NewManager(r.MustBuild())
	require.NoError(t, err)

	s, err := Listen("127.0.0.1:0", New(nil, m))
	require.NoError(t, err)
	s.Serve()

	status, body := do(t, http.MethodGet, "http://"+s.Addr()+"/v1/events", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Array())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestServer_ShutdownWithoutServe(t *testing.T) {
	m, err := event.NewManager(event.NewRegistry().MustBuild())
	require.NoError(t, err)

	s, err := Listen("127.0.0.1:0", New(nil, m))
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))

	_, err = net.Dial("tcp", s.Addr())
	assert.Error(t, err)
}

func toStrings(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}
