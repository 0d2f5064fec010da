package cli

import (
	"github.com/spf13/cobra"

	"gas-weather-analytics/internal/app"
)

var (
	analyzeVariant  string
	analyzePipeline string
	analyzeAsOf     string
	analyzeOut      string
	analyzePersist  bool
	analyzePartial  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Correlate weather with prices and write report artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDate("as-of", analyzeAsOf)
		if err != nil {
			return err
		}

		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{
			Variant:      analyzeVariant,
			Pipeline:     analyzePipeline,
			AsOf:         asOf,
			OutputDir:    analyzeOut,
			Persist:      analyzePersist,
			AllowPartial: analyzePartial,
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeVariant, "variant", "", "Price source: futures or settlement (defaults to analysis.variant)")
	analyzeCmd.Flags().StringVar(&analyzePipeline, "pipeline", "", "Settlement pipeline (defaults to analysis.pipeline)")
	analyzeCmd.Flags().StringVar(&analyzeAsOf, "as-of", "", "Ignore dates after this day (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Output directory (defaults to analysis.output_dir)")
	analyzeCmd.Flags().BoolVar(&analyzePersist, "persist", false, "Store the run summary in analysis_runs")
	analyzeCmd.Flags().BoolVar(&analyzePartial, "allow-partial", false, "Exit successfully when some statistics lack data")
}
