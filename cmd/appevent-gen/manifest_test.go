package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/appevent/internal/event"
)

const validManifest = `
package: demo
events:
  - name: button_event
    type: ButtonEvent
    fields:
      - {name: KeyID, type: uint16}
      - {name: Pressed, type: bool}
    log: "key:%d pressed:%t"
    profile: true
    flags: [log, profile]
  - name: shutdown_event
    type: ShutdownEvent
    flags: [final_only]
listeners:
  - name: detector
    func: detect
    subscribe:
      - {event: button_event, priority: early}
  - name: closer
    func: closeAll
    subscribe:
      - {event: shutdown_event, priority: final}
      - {event: button_event}
`

func TestParse_Valid(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Package)
	require.Len(t, m.Events, 2)
	assert.Equal(t, "KeyID", m.Events[0].Fields[0].Name)
	require.Len(t, m.Listeners, 2)
	assert.Equal(t, "final", m.Listeners[1].Subscribe[0].Priority)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("package: demo\nevnts: []\n"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     error
		path     string
	}{
		{
			name: "duplicate final",
			manifest: `
package: demo
events:
  - {name: a, type: A}
listeners:
  - {name: one, func: one, subscribe: [{event: a, priority: final}]}
  - {name: two, func: two, subscribe: [{event: a, priority: final}]}
`,
			want: event.ErrDuplicateFinal,
			path: "listeners[1].subscribe[0].priority",
		},
		{
			name: "duplicate first",
			manifest: `
package: demo
events:
  - {name: a, type: A}
listeners:
  - {name: one, func: one, subscribe: [{event: a, priority: first}]}
  - {name: two, func: two, subscribe: [{event: a, priority: first}]}
`,
			want: event.ErrDuplicateFirst,
			path: "listeners[1].subscribe[0].priority",
		},
		{
			name: "unknown event",
			manifest: `
package: demo
listeners:
  - {name: one, func: one, subscribe: [{event: missing}]}
`,
			want: event.ErrUnknownType,
			path: "listeners[0].subscribe[0].event",
		},
		{
			name: "final only",
			manifest: `
package: demo
events:
  - {name: a, type: A, flags: [final_only]}
listeners:
  - {name: one, func: one, subscribe: [{event: a, priority: normal}]}
`,
			want: event.ErrFinalOnly,
			path: "listeners[0].subscribe[0].priority",
		},
		{
			name: "duplicate subscription",
			manifest: `
package: demo
events:
  - {name: a, type: A}
listeners:
  - {name: one, func: one, subscribe: [{event: a}, {event: a, priority: early}]}
`,
			want: event.ErrDuplicateSubscription,
			path: "listeners[0].subscribe[1].event",
		},
		{
			name: "bad priority",
			manifest: `
package: demo
events:
  - {name: a, type: A}
listeners:
  - {name: one, func: one, subscribe: [{event: a, priority: late}]}
`,
			want: event.ErrInvalidPriority,
			path: "listeners[0].subscribe[0].priority",
		},
		{
			name: "duplicate type",
			manifest: `
package: demo
events:
  - {name: a, type: A}
  - {name: a, type: B}
`,
			want: event.ErrDuplicateType,
			path: "events[1].name",
		},
		{
			name: "duplicate listener",
			manifest: `
package: demo
listeners:
  - {name: one, func: one}
  - {name: one, func: two}
`,
			want: event.ErrDuplicateListener,
			path: "listeners[1].name",
		},
		{
			name: "unsupported field",
			manifest: `
package: demo
events:
  - {name: a, type: A, fields: [{name: X, type: float64}]}
`,
			want: ErrUnsupportedField,
			path: "events[0].fields[0].type",
		},
		{
			name: "unexported type",
			manifest: `
package: demo
events:
  - {name: a, type: a}
`,
			want: ErrInvalidIdentifier,
			path: "events[0].type",
		},
		{
			name: "unknown flag",
			manifest: `
package: demo
events:
  - {name: a, type: A, flags: [loud]}
`,
			want: ErrUnknownFlag,
			path: "events[0].flags[0]",
		},
		{
			name:     "bad package",
			manifest: `package: "my-pkg"`,
			want:     ErrInvalidIdentifier,
			path:     "package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			require.ErrorIs(t, err, tt.want)

			var me *ManifestError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.path, me.Path)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	_, err := Parse([]byte(`
package: demo
events:
  - {name: a, type: A}
listeners:
  - {name: one, func: one, subscribe: [{event: a, priority: final}, {event: b}]}
  - {name: two, func: two, subscribe: [{event: a, priority: final}]}
`))
	assert.ErrorIs(t, err, event.ErrUnknownType)
	assert.ErrorIs(t, err, event.ErrDuplicateFinal)
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"KeyID":      "key_id",
		"At":         "at",
		"Count":      "count",
		"ClickType":  "click_type",
		"HTTPServer": "http_server",
		"ID":         "id",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
