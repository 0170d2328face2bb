package lua

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/appevent/internal/event"
)

// Bridge converts between Go and Lua values.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

var (
	headerType  = reflect.TypeOf(event.Header{})
	dynDataType = reflect.TypeOf(event.DynData{})
)

// EventTable builds the table passed to on_event. It carries the header
// fields type, seq and size, a data string for dynamic-data events, and
// every exported payload field under its Go name.
func (b *Bridge) EventTable(evt event.Event) *lua.LTable {
	t := b.L.NewTable()
	h := evt.EventHeader()
	t.RawSetString("type", lua.LString(h.TypeName()))
	t.RawSetString("seq", lua.LNumber(h.Seq()))
	t.RawSetString("size", lua.LNumber(h.Size()))

	rv := reflect.ValueOf(evt)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return t
	}
	b.payloadFields(t, rv)
	return t
}

func (b *Bridge) payloadFields(t *lua.LTable, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rt.Field(i)
		switch {
		case f.Type == headerType:
			continue
		case f.Type == dynDataType:
			t.RawSetString("data", lua.LString(rv.Field(i).Interface().(event.DynData).Data))
			continue
		case !f.IsExported():
			continue
		}
		t.RawSetString(f.Name, b.ToLuaValue(rv.Field(i).Interface()))
	}
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case lua.LValue:
		return val
	}
	return b.reflectToLua(reflect.ValueOf(v))
}

func (b *Bridge) reflectToLua(rv reflect.Value) lua.LValue {
	switch rv.Kind() {
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return b.reflectToLua(rv.Elem())
	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.reflectToLua(rv.Index(i)))
		}
		return t
	case reflect.Map:
		t := b.L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.reflectToLua(iter.Key()), b.reflectToLua(iter.Value()))
		}
		return t
	case reflect.Struct:
		t := b.L.NewTable()
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if f := rt.Field(i); f.IsExported() {
				t.RawSetString(f.Name, b.reflectToLua(rv.Field(i)))
			}
		}
		return t
	}
	return lua.LNil
}

// ToGoValue converts a Lua value to a Go value. Tables become maps, or
// slices when their keys are 1..n.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		if n := v.Len(); n > 0 && countKeys(v) == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = b.toGo(v.RawGetInt(i), visited)
			}
			return arr
		}
		m := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			m[k.String()] = b.toGo(val, visited)
		})
		return m
	case *lua.LUserData:
		return v.Value
	}
	return nil
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}
