// TelemetryOps: satellite telemetry ingest, windowed aggregation and
// threshold alerting.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const asciiLogo = `
  ╔╦╗┌─┐┬  ┌─┐┌┬┐┌─┐┌┬┐┬─┐┬ ┬╔═╗┌─┐┌─┐
   ║ ├┤ │  ├┤ │││├┤  │ ├┬┘└┬┘║ ║├─┘└─┐
   ╩ └─┘┴─┘└─┘┴ ┴└─┘ ┴ ┴└─ ┴ ╚═╝┴  └─┘
`

const version = "v0.1.0"

func printBanner(w io.Writer, mode string) {
	fmt.Fprint(w, asciiLogo)
	fmt.Fprintf(w, "  ► TelemetryOps %s  |  Mode: %s\n\n", version, mode)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "telemetryops",
		Short: "TelemetryOps — telemetry ingest, aggregation and alerting",
		Long: `TelemetryOps ingests link telemetry from a satellite fleet, aggregates it
into windowed statistics and raises alerts when thresholds are crossed.

Run the planes separately (ingest, aggregator, controlplane) or all in one
process (serve).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to config.yaml (default ./config.yaml or ~/.telemetryops/config.yaml)")

	root.AddCommand(
		ingestCmd(),
		aggregatorCmd(),
		controlplaneCmd(),
		serveCmd(),
		loadgenCmd(),
		tokenCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}
