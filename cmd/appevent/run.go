package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/appevent/internal/app"
	"github.com/dshills/appevent/internal/config"
)

var (
	// Run command flags.
	runAdmin     string
	runHeartbeat string
	runLogLevel  string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the event manager",
		Long: `Run the event manager until interrupted.

This starts:
- the dispatcher goroutine and every registered listener
- the sample heartbeat producer and click detector
- the admin API when an address is configured
- a watcher that reloads the trace settings when the config file changes

Examples:
  # Run with defaults
  appevent run

  # Trace every event and serve the admin API
  APPEVENT_TRACE_LOG='*' appevent run --admin 127.0.0.1:7070

  # Run a configuration with Lua listeners
  appevent run -c examples/appevent.toml`,
		RunE: runManager,
		Args: cobra.NoArgs,
	}
)

func init() {
	runCmd.Flags().StringVar(&runAdmin, "admin", "", "Admin API listen address (overrides admin.addr)")
	runCmd.Flags().StringVar(&runHeartbeat, "heartbeat", "", "Sample heartbeat interval, 0 to disable (overrides sample.heartbeat)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
}

func runManager(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	a, err := app.New(app.Options{
		ConfigPath: configPath,
		Watch:      configPath != "",
		LogOutput:  cmd.ErrOrStderr(),
		Override: func(cfg *config.Config) {
			if flags.Changed("admin") {
				cfg.Admin.Addr = runAdmin
			}
			if flags.Changed("heartbeat") {
				cfg.Sample.Heartbeat = runHeartbeat
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = runLogLevel
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}
