package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version information about appevent.`,
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "appevent version %s\n", version)
		_, _ = fmt.Fprintf(w, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(w, "  built:  %s\n", date)
	},
	Args: cobra.NoArgs,
}
