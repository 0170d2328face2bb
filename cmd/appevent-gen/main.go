// Command appevent-gen generates event type declarations and listener
// registrations from a YAML manifest.
//
//	//go:generate go run ../../cmd/appevent-gen -i events.yaml -o events_gen.go
//
// The manifest is validated the way the registry validates at Build, so a
// duplicate FINAL listener or a subscription to an undeclared type fails
// at generation time.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	inPath  string
	outPath string
	pkgName string
)

var rootCmd = &cobra.Command{
	Use:   "appevent-gen",
	Short: "Generate event declarations from a manifest",
	Long: `Generate Go event types, their registry declarations and listener
subscriptions from a YAML manifest.

Example manifest:

  package: sample
  events:
    - name: button_event
      type: ButtonEvent
      fields:
        - {name: KeyID, type: uint16}
        - {name: Pressed, type: bool}
      log: "key:%d pressed:%t"
      profile: true
      flags: [log]
  listeners:
    - name: click_detector
      func: detectClick
      subscribe:
        - {event: button_event, priority: early}`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return generateFile(inPath, outPath, pkgName)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inPath, "in", "i", "events.yaml", "Manifest to read")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().StringVarP(&pkgName, "package", "p", "", "Override the manifest package name")
}

func generateFile(in, out, pkg string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	m, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if pkg != "" {
		m.Package = pkg
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	src, err := Generate(m, filepath.Base(in))
	if err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err = os.Stdout.Write(src)
		return err
	}
	return os.WriteFile(out, src, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "appevent-gen: %v\n", err)
		os.Exit(1)
	}
}
