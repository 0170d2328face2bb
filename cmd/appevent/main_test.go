package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	tableJSON = false
	configPath = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "appevent version dev")
	assert.Contains(t, out, "commit:")
}

func TestEvents(t *testing.T) {
	out, err := execute(t, "events")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, []string{"ID", "NAME", "FLAGS", "SIZE", "LOG", "PROFILE", "LISTENERS"}, strings.Fields(lines[0]))
	assert.Contains(t, out, "module_state_event")
	assert.Contains(t, out, "button_event")
}

func TestEvents_JSON(t *testing.T) {
	out, err := execute(t, "events", "--json")
	require.NoError(t, err)

	res := gjson.Parse(out)
	require.True(t, res.IsArray())
	click := res.Get(`#(name=="click_event")`)
	require.True(t, click.Exists(), out)
	assert.Equal(t, int64(1), click.Get("listeners").Int())
	assert.True(t, click.Get("log").Bool())
}

func TestListeners_JSON(t *testing.T) {
	out, err := execute(t, "listeners", "--json")
	require.NoError(t, err)

	detector := gjson.Parse(out).Get(`#(name=="click_detector")`)
	require.True(t, detector.Exists(), out)
	assert.Equal(t, "button_event", detector.Get("subscriptions.0.event").String())
	assert.Equal(t, "early", detector.Get("subscriptions.0.priority").String())
}

func TestListeners_Table(t *testing.T) {
	out, err := execute(t, "listeners")
	require.NoError(t, err)
	assert.Contains(t, out, "LISTENER")
	assert.Contains(t, out, "click_logger")
	assert.Contains(t, out, "click_event:final")
}

func TestRun_InvalidFlag(t *testing.T) {
	_, err := execute(t, "run", "--heartbeat", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample.heartbeat")
}
