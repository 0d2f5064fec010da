package cli

import (
	"github.com/spf13/cobra"
)

var (
	runMetricsAddr string
	runNoMetrics   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily weather refresh, alerting and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runMetricsAddr != "" {
			a.Config.Metrics.Addr = runMetricsAddr
		}
		if runNoMetrics {
			a.Config.Metrics.Enabled = false
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Override metrics.addr")
	runCmd.Flags().BoolVar(&runNoMetrics, "no-metrics", false, "Do not serve /metrics")
}
