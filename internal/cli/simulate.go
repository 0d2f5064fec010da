package cli

import (
	"github.com/spf13/cobra"

	"gas-weather-analytics/internal/alerting"
	"gas-weather-analytics/internal/app"
)

var (
	simulateKind      string
	simulateAvgTemp   float64
	simulateThreshold float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic extreme-weather alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Kind:      simulateKind,
			AvgTemp:   simulateAvgTemp,
			Threshold: simulateThreshold,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", alerting.KindHDD, "Degree-day kind: cdd or hdd")
	simulateCmd.Flags().Float64Var(&simulateAvgTemp, "avg-temp", -10, "Average temperature in Celsius")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 15, "Threshold reported in the message")
}
