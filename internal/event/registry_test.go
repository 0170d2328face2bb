package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Header
	N int
}

type blob struct {
	Header
	DynData
	Kind uint8
}

type pong struct {
	Header
}

func nop(Event) bool { return false }

func TestRegistry_TypeIDsUnique(t *testing.T) {
	r := NewRegistry()
	names := []string{"a", "b", "c", "d", "e"}
	seen := make(map[TypeID]string)
	for i, name := range names {
		d := DeclareIn[ping](r, name)
		id := d.EventType().ID()
		assert.Equal(t, TypeID(i), id)
		if other, dup := seen[id]; dup {
			t.Fatalf("types %q and %q share id %d", other, name, id)
		}
		seen[id] = name
	}

	tab, err := r.Build()
	require.NoError(t, err)
	for id, name := range seen {
		assert.Equal(t, name, tab.Type(id).Name())
	}
	assert.Nil(t, tab.Type(TypeID(len(names))))
}

func TestRegistry_RegisterType(t *testing.T) {
	r := NewRegistry()

	typ, err := r.RegisterType("button", WithFlags(FlagLogEnabled))
	require.NoError(t, err)
	assert.True(t, typ.LogEnabled())
	assert.False(t, typ.ProfileEnabled())

	_, err = r.RegisterType("button")
	assert.ErrorIs(t, err, ErrDuplicateType)

	_, err = r.RegisterType("")
	assert.ErrorIs(t, err, ErrInvalidName)

	got, ok := r.TypeByName("button")
	require.True(t, ok)
	assert.Same(t, typ, got)
	assert.Len(t, r.Types(), 1)
}

func TestRegistry_ProfileFlagNeedsInfo(t *testing.T) {
	r := NewRegistry()
	typ, err := r.RegisterType("x", WithFlags(FlagProfileEnabled))
	require.NoError(t, err)
	assert.False(t, typ.ProfileEnabled())

	typ.SetProfileEnabled(true)
	assert.False(t, typ.ProfileEnabled(), "a type without profiler info cannot be profiled")
}

func TestBuild_Order(t *testing.T) {
	r := NewRegistry()
	pingType := DeclareIn[ping](r, "ping")

	r.Listen("final", nop).SubscribeFinal(pingType)
	r.Listen("normal1", nop).Subscribe(pingType)
	r.Listen("early1", nop).SubscribeEarly(pingType)
	r.Listen("normal2", nop).Subscribe(pingType)
	r.Listen("first", nop).SubscribeFirst(pingType)
	r.Listen("early2", nop).SubscribeEarly(pingType)

	tab, err := r.Build()
	require.NoError(t, err)

	var got []string
	for _, sub := range tab.Subscribers(pingType) {
		got = append(got, sub.Listener.Name())
	}
	assert.Equal(t, []string{"first", "early1", "early2", "normal1", "normal2", "final"}, got)
}

func TestBuild_DuplicateFinal(t *testing.T) {
	r := NewRegistry()
	pingType := DeclareIn[ping](r, "ping")

	r.Listen("a", nop).SubscribeFinal(pingType)
	r.Listen("b", nop).SubscribeFinal(pingType)

	tab, err := r.Build()
	assert.Nil(t, tab)
	require.ErrorIs(t, err, ErrDuplicateFinal)

	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Len(t, be.Errs, 1)
	assert.Contains(t, err.Error(), `"ping"`)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		declare func(r *Registry)
		want    error
	}{
		{
			name: "duplicate first",
			declare: func(r *Registry) {
				typ := DeclareIn[ping](r, "ping")
				r.Listen("a", nop).SubscribeFirst(typ)
				r.Listen("b", nop).SubscribeFirst(typ)
			},
			want: ErrDuplicateFirst,
		},
		{
			name: "type from another registry",
			declare: func(r *Registry) {
				foreign := DeclareIn[ping](NewRegistry(), "ping")
				r.Listen("a", nop).Subscribe(foreign)
			},
			want: ErrUnknownType,
		},
		{
			name: "listener from another registry",
			declare: func(r *Registry) {
				typ := DeclareIn[ping](r, "ping")
				l := NewRegistry().Listen("a", nop)
				r.Subscribe(l, typ, PriorityNormal)
			},
			want: ErrUnknownListener,
		},
		{
			name: "final only",
			declare: func(r *Registry) {
				typ := DeclareIn[ping](r, "ping", WithFlags(FlagFinalOnly))
				r.Listen("a", nop).SubscribeFinal(typ)
				r.Listen("b", nop).Subscribe(typ)
			},
			want: ErrFinalOnly,
		},
		{
			name: "duplicate subscription",
			declare: func(r *Registry) {
				typ := DeclareIn[ping](r, "ping")
				r.Listen("a", nop).Subscribe(typ).SubscribeEarly(typ)
			},
			want: ErrDuplicateSubscription,
		},
		{
			name: "duplicate type",
			declare: func(r *Registry) {
				DeclareIn[ping](r, "ping")
				DeclareIn[pong](r, "ping")
			},
			want: ErrDuplicateType,
		},
		{
			name: "duplicate listener",
			declare: func(r *Registry) {
				r.Listen("a", nop)
				r.Listen("a", nop)
			},
			want: ErrDuplicateListener,
		},
		{
			name: "nil callback",
			declare: func(r *Registry) {
				r.Listen("a", nil)
			},
			want: ErrNilHandler,
		},
		{
			name: "empty listener name",
			declare: func(r *Registry) {
				r.Listen("", nop)
			},
			want: ErrInvalidName,
		},
		{
			name: "invalid priority",
			declare: func(r *Registry) {
				typ := DeclareIn[ping](r, "ping")
				r.Subscribe(r.Listen("a", nop), typ, Priority(42))
			},
			want: ErrInvalidPriority,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.declare(r)
			_, err := r.Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuild_ReportsAllErrors(t *testing.T) {
	r := NewRegistry()
	typ := DeclareIn[ping](r, "ping")
	r.Listen("a", nop).SubscribeFinal(typ)
	r.Listen("b", nop).SubscribeFinal(typ)
	r.Listen("a", nop)

	_, err := r.Build()
	assert.ErrorIs(t, err, ErrDuplicateFinal)
	assert.ErrorIs(t, err, ErrDuplicateListener)
}

func TestBuild_OnceAndFrozen(t *testing.T) {
	r := NewRegistry()
	typ := DeclareIn[ping](r, "ping")
	l := r.Listen("a", nop).Subscribe(typ)

	t1, err := r.Build()
	require.NoError(t, err)
	t2, err := r.Build()
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.True(t, r.Frozen())

	_, err = r.RegisterType("late")
	assert.ErrorIs(t, err, ErrRegistryFrozen)

	assert.Panics(t, func() { DeclareIn[pong](r, "late") })
	assert.Panics(t, func() { r.Listen("late", nop) })
	assert.Panics(t, func() { l.SubscribeEarly(typ) })
}

func TestTable_Queries(t *testing.T) {
	r := NewRegistry()
	pingType := DeclareIn[ping](r, "ping")
	pongType := DeclareIn[pong](r, "pong")
	a := r.Listen("a", nop).Subscribe(pingType).SubscribeFinal(pongType)
	r.Listen("b", nop).Subscribe(pongType)

	tab := r.MustBuild()

	assert.Same(t, r, tab.Registry())
	assert.Len(t, tab.Types(), 2)
	assert.Len(t, tab.Listeners(), 2)

	typ, ok := tab.TypeByName("pong")
	require.True(t, ok)
	assert.Same(t, pongType.EventType(), typ)

	got, ok := tab.Listener("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = tab.Listener("zzz")
	assert.False(t, ok)

	subs := tab.SubscriptionsOf(a)
	require.Len(t, subs, 2)
	assert.Equal(t, "ping", subs[0].Type.Name())
	assert.Equal(t, PriorityFinal, subs[1].Priority)

	assert.Nil(t, tab.Subscribers(nil))
	assert.Nil(t, tab.Subscribers(DeclareIn[ping](NewRegistry(), "ping")))
	assert.True(t, tab.Contains(typ))
}

func TestMustBuild_Panics(t *testing.T) {
	r := NewRegistry()
	r.Listen("", nop)
	assert.Panics(t, func() { r.MustBuild() })
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"", PriorityNormal, false},
		{"normal", PriorityNormal, false},
		{"EARLY", PriorityEarly, false},
		{" final ", PriorityFinal, false},
		{"first", PriorityFirst, false},
		{"late", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPriority, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.want, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) Priority {
	t.Helper()
	p, err := ParsePriority(s)
	require.NoError(t, err)
	return p
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "none", Flags(0).String())
	assert.Equal(t, "log|final-only", (FlagLogEnabled | FlagFinalOnly).String())
	assert.True(t, (FlagLogEnabled | FlagProfileEnabled).Has(FlagProfileEnabled))
	assert.False(t, FlagLogEnabled.Has(FlagLogEnabled|FlagFinalOnly))
}
