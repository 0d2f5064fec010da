package cli

import (
	"github.com/spf13/cobra"

	"gas-weather-analytics/internal/app"
)

var (
	fetchFrom   string
	fetchTo     string
	fetchDryRun bool
)

var fetchWeatherCmd = &cobra.Command{
	Use:   "fetch-weather",
	Short: "Fetch daily temperatures and store degree days",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDate("from", fetchFrom)
		if err != nil {
			return err
		}
		to, err := parseDate("to", fetchTo)
		if err != nil {
			return err
		}

		return getApp().FetchWeather(cmd.Context(), app.FetchOptions{
			From:   from,
			To:     to,
			DryRun: fetchDryRun,
		})
	},
}

func init() {
	fetchWeatherCmd.Flags().StringVar(&fetchFrom, "from", "", "First day (YYYY-MM-DD, inclusive; defaults to weather.lookback_days ago)")
	fetchWeatherCmd.Flags().StringVar(&fetchTo, "to", "", "Last day (YYYY-MM-DD, inclusive; defaults to today)")
	fetchWeatherCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Fetch and compute without writing to storage")
}
