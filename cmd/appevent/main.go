// Command appevent runs the event manager with the sample application and
// inspects the registered event types and listeners.
//
//	appevent run --config appevent.toml
//	appevent events
//	appevent listeners --json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "appevent",
	Short: "Application event manager",
	Long: `appevent delivers typed events to prioritized listeners on a single
dispatcher goroutine.

The run command starts the manager with the sample click detector, the
module power tracker and any Lua listeners named in the configuration.
The events and listeners commands print the listener table without
starting anything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the TOML configuration file")
	rootCmd.AddCommand(runCmd, eventsCmd, listenersCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "appevent: %v\n", err)
		os.Exit(1)
	}
}
