package main

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"github.com/dshills/appevent/internal/event"
)

var putMethods = map[string]string{
	"bool":          "PutBool",
	"uint8":         "PutU8",
	"byte":          "PutU8",
	"int8":          "PutS8",
	"uint16":        "PutU16",
	"int16":         "PutS16",
	"uint32":        "PutU32",
	"int32":         "PutS32",
	"string":        "PutString",
	"time.Duration": "PutTime",
}

var subscribeMethods = map[event.Priority]string{
	event.PriorityFirst:  "SubscribeFirst",
	event.PriorityEarly:  "SubscribeEarly",
	event.PriorityNormal: "Subscribe",
	event.PriorityFinal:  "SubscribeFinal",
}

type fileData struct {
	Source         string
	Package        string
	ImportFmt      bool
	ImportTime     bool
	ImportProfiler bool
	Events         []eventData
	Listeners      []listenerData
}

type eventData struct {
	Event
	Var      string
	HasOpts  bool
	FlagExpr string
	LogArgs  string
	Labels   string
	ArgTypes string
	Puts     []string
}

type listenerData struct {
	Name  string
	Func  string
	Calls []string
}

var fileTemplate = template.Must(template.New("events").Parse(`// Code generated by appevent-gen from {{.Source}}. DO NOT EDIT.

package {{.Package}}

import (
{{- if .ImportFmt}}
	"fmt"
{{- end}}
{{- if .ImportTime}}
	"time"
{{- end}}
{{if or .ImportFmt .ImportTime}}
{{end -}}
	"github.com/dshills/appevent/internal/event"
{{- if .ImportProfiler}}
	"github.com/dshills/appevent/internal/profiler"
{{- end}}
)
{{range .Events}}
{{if .Doc}}// {{.Type}} {{.Doc}}{{else}}// {{.Type}} is the payload of {{.Name}}.{{end}}
type {{.Type}} struct {
	event.Header
{{- if .Dynamic}}
	event.DynData
{{- end}}
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
}

// {{.Var}} is the registered type of {{.Type}}.
{{- if not .HasOpts}}
var {{.Var}} = event.Declare[{{.Type}}]({{printf "%q" .Name}})
{{- else}}
var {{.Var}} = event.Declare[{{.Type}}]({{printf "%q" .Name}},
{{- if .FlagExpr}}
	event.WithFlags({{.FlagExpr}}),
{{- end}}
{{- if .Log}}
	event.WithLog(func(e *{{.Type}}) string {
		return fmt.Sprintf({{printf "%q" .Log}}{{.LogArgs}})
	}),
{{- end}}
{{- if .Profile}}
	event.WithProfile(profiler.Info{
		Labels: []string{ {{- .Labels -}} },
		Types:  []profiler.ArgType{ {{- .ArgTypes -}} },
	}, func(e *{{.Type}}, b *profiler.Buffer) {
{{- range .Puts}}
		{{.}}
{{- end}}
	}),
{{- end}}
)
{{- end}}
{{end}}
{{- if .Listeners}}
func init() {
{{- range .Listeners}}
	event.Listen({{printf "%q" .Name}}, {{.Func}}){{range .Calls}}.
		{{.}}{{end}}
{{- end}}
}
{{- end}}
`))

// Generate renders m as Go source. source names the manifest in the
// generated header.
func Generate(m *Manifest, source string) ([]byte, error) {
	data := fileData{Source: source, Package: m.Package}

	vars := make(map[string]string, len(m.Events))
	for _, e := range m.Events {
		ed := eventData{Event: e, Var: e.Type + "Type"}
		vars[e.Name] = ed.Var

		var flags []string
		for _, f := range e.Flags {
			flags = append(flags, "event."+flagNames[f])
		}
		ed.FlagExpr = strings.Join(flags, " | ")

		var labels, types, logArgs []string
		for _, f := range e.Fields {
			labels = append(labels, fmt.Sprintf("%q", snakeCase(f.Name)))
			types = append(types, "profiler."+argTypes[f.Type])
			ed.Puts = append(ed.Puts, fmt.Sprintf("b.%s(e.%s)", putMethods[f.Type], f.Name))
			logArgs = append(logArgs, ", e."+f.Name)
			if f.Type == "time.Duration" {
				data.ImportTime = true
			}
		}
		ed.Labels = strings.Join(labels, ", ")
		ed.ArgTypes = strings.Join(types, ", ")
		ed.LogArgs = strings.Join(logArgs, "")

		ed.HasOpts = ed.FlagExpr != "" || e.Log != "" || e.Profile
		data.ImportFmt = data.ImportFmt || e.Log != ""
		data.ImportProfiler = data.ImportProfiler || e.Profile
		data.Events = append(data.Events, ed)
	}

	for _, l := range m.Listeners {
		ld := listenerData{Name: l.Name, Func: l.Func}
		for _, s := range l.Subscribe {
			p, err := event.ParsePriority(s.Priority)
			if err != nil {
				return nil, err
			}
			ld.Calls = append(ld.Calls, fmt.Sprintf("%s(%s)", subscribeMethods[p], vars[s.Event]))
		}
		data.Listeners = append(data.Listeners, ld)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", source, err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w\n%s", source, err, buf.Bytes())
	}
	return out, nil
}
