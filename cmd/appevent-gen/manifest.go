package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/appevent/internal/event"
)

// Manifest declares a package's event types and listeners.
type Manifest struct {
	Package   string     `yaml:"package"`
	Events    []Event    `yaml:"events"`
	Listeners []Listener `yaml:"listeners"`
}

// Event declares one event type.
type Event struct {
	// Name is the registry name, e.g. button_event.
	Name string `yaml:"name"`
	// Type is the Go struct name, e.g. ButtonEvent.
	Type string `yaml:"type"`
	Doc  string `yaml:"doc"`
	// Dynamic embeds event.DynData.
	Dynamic bool    `yaml:"dynamic"`
	Fields  []Field `yaml:"fields"`
	// Log is a fmt format applied to the fields in order.
	Log string `yaml:"log"`
	// Profile encodes every field as a profiler argument.
	Profile bool     `yaml:"profile"`
	Flags   []string `yaml:"flags"`
}

// Field is one payload field.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Listener declares a listener bound to a package-level function with the
// signature func(event.Event) bool.
type Listener struct {
	Name      string         `yaml:"name"`
	Func      string         `yaml:"func"`
	Subscribe []Subscription `yaml:"subscribe"`
}

// Subscription subscribes a listener to an event declared in the manifest.
type Subscription struct {
	Event    string `yaml:"event"`
	Priority string `yaml:"priority"`
}

// argTypes maps supported field types to profiler argument types.
var argTypes = map[string]string{
	"bool":          "ArgU8",
	"uint8":         "ArgU8",
	"byte":          "ArgU8",
	"int8":          "ArgS8",
	"uint16":        "ArgU16",
	"int16":         "ArgS16",
	"uint32":        "ArgU32",
	"int32":         "ArgS32",
	"string":        "ArgString",
	"time.Duration": "ArgTime",
}

var flagNames = map[string]string{
	"log":        "FlagLogEnabled",
	"profile":    "FlagProfileEnabled",
	"final_only": "FlagFinalOnly",
}

var (
	// ErrUnsupportedField is returned for a field type with no profiler
	// encoding.
	ErrUnsupportedField = errors.New("unsupported field type")

	// ErrInvalidIdentifier is returned for a name that is not a Go identifier.
	ErrInvalidIdentifier = errors.New("invalid Go identifier")

	// ErrUnknownFlag is returned for a flag outside log, profile, final_only.
	ErrUnknownFlag = errors.New("unknown flag")
)

// ManifestError locates a validation failure in the manifest.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Decode decodes a YAML manifest. Unknown keys are errors.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Parse decodes a YAML manifest and validates it.
func Parse(data []byte) (*Manifest, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports every problem in the manifest, including the listener
// table errors the registry would report at Build.
func (m *Manifest) Validate() error {
	var errs []error
	fail := func(path string, err error) {
		errs = append(errs, &ManifestError{Path: path, Err: err})
	}

	if !token.IsIdentifier(m.Package) {
		fail("package", fmt.Errorf("%w %q", ErrInvalidIdentifier, m.Package))
	}

	events := make(map[string]*Event)
	goTypes := make(map[string]bool)
	for i := range m.Events {
		e := &m.Events[i]
		path := fmt.Sprintf("events[%d]", i)

		switch {
		case e.Name == "":
			fail(path+".name", event.ErrInvalidName)
		case events[e.Name] != nil:
			fail(path+".name", fmt.Errorf("%w: %q", event.ErrDuplicateType, e.Name))
		default:
			events[e.Name] = e
		}
		switch {
		case !token.IsIdentifier(e.Type) || !token.IsExported(e.Type):
			fail(path+".type", fmt.Errorf("%w %q", ErrInvalidIdentifier, e.Type))
		case goTypes[e.Type]:
			fail(path+".type", fmt.Errorf("duplicate Go type %q", e.Type))
		}
		goTypes[e.Type] = true

		fields := make(map[string]bool)
		for j, f := range e.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			switch {
			case !token.IsIdentifier(f.Name) || !token.IsExported(f.Name):
				fail(fpath+".name", fmt.Errorf("%w %q", ErrInvalidIdentifier, f.Name))
			case fields[f.Name]:
				fail(fpath+".name", fmt.Errorf("duplicate field %q", f.Name))
			}
			fields[f.Name] = true
			if _, ok := argTypes[f.Type]; !ok {
				fail(fpath+".type", fmt.Errorf("%w %q", ErrUnsupportedField, f.Type))
			}
		}

		for j, fl := range e.Flags {
			fpath := fmt.Sprintf("%s.flags[%d]", path, j)
			if _, ok := flagNames[fl]; !ok {
				fail(fpath, fmt.Errorf("%w %q", ErrUnknownFlag, fl))
			}
			if fl == "profile" && !e.Profile {
				fail(fpath, errors.New("profile flag requires profile: true"))
			}
		}
	}

	type slot struct{ first, final int }
	slots := make(map[string]*slot)
	listeners := make(map[string]bool)
	for i, l := range m.Listeners {
		path := fmt.Sprintf("listeners[%d]", i)
		switch {
		case l.Name == "":
			fail(path+".name", event.ErrInvalidName)
		case listeners[l.Name]:
			fail(path+".name", fmt.Errorf("%w: %q", event.ErrDuplicateListener, l.Name))
		}
		listeners[l.Name] = true
		if !token.IsIdentifier(l.Func) {
			fail(path+".func", fmt.Errorf("%w %q", ErrInvalidIdentifier, l.Func))
		}

		seen := make(map[string]bool)
		for j, s := range l.Subscribe {
			spath := fmt.Sprintf("%s.subscribe[%d]", path, j)
			e, ok := events[s.Event]
			if !ok {
				fail(spath+".event", fmt.Errorf("%w: %q", event.ErrUnknownType, s.Event))
				continue
			}
			if seen[s.Event] {
				fail(spath+".event", fmt.Errorf("%w: %q", event.ErrDuplicateSubscription, s.Event))
				continue
			}
			seen[s.Event] = true

			p, err := event.ParsePriority(s.Priority)
			if err != nil {
				fail(spath+".priority", err)
				continue
			}
			if slots[s.Event] == nil {
				slots[s.Event] = &slot{}
			}
			sl := slots[s.Event]
			switch p {
			case event.PriorityFirst:
				sl.first++
				if sl.first > 1 {
					fail(spath+".priority", fmt.Errorf("%w: %q", event.ErrDuplicateFirst, s.Event))
				}
			case event.PriorityFinal:
				sl.final++
				if sl.final > 1 {
					fail(spath+".priority", fmt.Errorf("%w: %q", event.ErrDuplicateFinal, s.Event))
				}
			}
			if p != event.PriorityFinal && slices.Contains(e.Flags, "final_only") {
				fail(spath+".priority", fmt.Errorf("%w: %q", event.ErrFinalOnly, s.Event))
			}
		}
	}

	return errors.Join(errs...)
}

// snakeCase converts a Go field name to a profiler label: KeyID -> key_id.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
