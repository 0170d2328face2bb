package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/appevent/internal/app"
	"github.com/dshills/appevent/internal/config"
	"github.com/dshills/appevent/internal/event"
)

var (
	tableJSON bool

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List registered event types",
		Long: `List every registered event type with its flags, size, trace
toggles and listener count. Lua listeners from the configuration are
included.

Examples:
  appevent events
  appevent events --json`,
		RunE: listTable(printEvents),
		Args: cobra.NoArgs,
	}

	listenersCmd = &cobra.Command{
		Use:   "listeners",
		Short: "List listeners and their subscriptions",
		RunE:  listTable(printListeners),
		Args:  cobra.NoArgs,
	}
)

func init() {
	eventsCmd.Flags().BoolVar(&tableJSON, "json", false, "Output as JSON")
	listenersCmd.Flags().BoolVar(&tableJSON, "json", false, "Output as JSON")
}

// listTable builds the listener table from the configuration without
// starting the dispatcher and hands it to show.
func listTable(show func(w io.Writer, t *event.Table, asJSON bool) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg.Admin.Addr = ""
		cfg.Profiler = config.ProfilerConfig{Sink: "none"}

		a, err := app.New(app.Options{ConfigPath: configPath, Config: cfg, LogOutput: io.Discard})
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return show(cmd.OutOrStdout(), a.Table(), tableJSON)
	}
}

type eventRow struct {
	ID        event.TypeID `json:"id"`
	Name      string       `json:"name"`
	Flags     string       `json:"flags"`
	Size      int64        `json:"size"`
	Log       bool         `json:"log"`
	Profile   bool         `json:"profile"`
	Listeners int          `json:"listeners"`
}

func printEvents(w io.Writer, t *event.Table, asJSON bool) error {
	rows := make([]eventRow, 0, len(t.Types()))
	for _, typ := range t.Types() {
		rows = append(rows, eventRow{
			ID:        typ.ID(),
			Name:      typ.Name(),
			Flags:     typ.Flags().String(),
			Size:      typ.Size(),
			Log:       typ.LogEnabled(),
			Profile:   typ.ProfileEnabled(),
			Listeners: len(t.Subscribers(typ)),
		})
	}
	if asJSON {
		return encode(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tFLAGS\tSIZE\tLOG\tPROFILE\tLISTENERS")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%d\n",
			r.ID, r.Name, r.Flags, r.Size, onOff(r.Log), onOff(r.Profile), r.Listeners)
	}
	return tw.Flush()
}

type listenerRow struct {
	Name          string            `json:"name"`
	Subscriptions []subscriptionRow `json:"subscriptions"`
}

type subscriptionRow struct {
	Event    string `json:"event"`
	Priority string `json:"priority"`
}

func printListeners(w io.Writer, t *event.Table, asJSON bool) error {
	rows := make([]listenerRow, 0, len(t.Listeners()))
	for _, l := range t.Listeners() {
		row := listenerRow{Name: l.Name(), Subscriptions: []subscriptionRow{}}
		for _, sub := range t.SubscriptionsOf(l) {
			row.Subscriptions = append(row.Subscriptions, subscriptionRow{
				Event:    sub.Type.Name(),
				Priority: sub.Priority.String(),
			})
		}
		rows = append(rows, row)
	}
	if asJSON {
		return encode(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LISTENER\tSUBSCRIPTIONS")
	for _, r := range rows {
		subs := make([]string, len(r.Subscriptions))
		for i, s := range r.Subscriptions {
			subs[i] = s.Event + ":" + s.Priority
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Name, strings.Join(subs, ", "))
	}
	return tw.Flush()
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
