package cli

import (
	"github.com/spf13/cobra"

	"gas-weather-analytics/internal/app"
)

var (
	ticksFile       string
	ticksBatchSize  int
	ticksWorkers    int
	settlementsFile string
)

var ingestTicksCmd = &cobra.Command{
	Use:   "ingest-ticks",
	Short: "Load a zstd-compressed OHLCV feed into futures_data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().IngestTicks(cmd.Context(), app.IngestTicksOptions{
			Path:      ticksFile,
			BatchSize: ticksBatchSize,
			Workers:   ticksWorkers,
		})
	},
}

var ingestSettlementsCmd = &cobra.Command{
	Use:   "ingest-settlements",
	Short: "Load a date,pipeline,settlement_price CSV into settlement_prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().IngestSettlements(cmd.Context(), settlementsFile)
	},
}

func init() {
	ingestTicksCmd.Flags().StringVar(&ticksFile, "file", "", "Path to the .json.zst feed")
	ingestTicksCmd.Flags().IntVar(&ticksBatchSize, "batch-size", 0, "Rows per transaction (defaults to ingest.batch_size)")
	ingestTicksCmd.Flags().IntVar(&ticksWorkers, "workers", 0, "Concurrent batches (defaults to ingest.workers)")

	ingestSettlementsCmd.Flags().StringVar(&settlementsFile, "file", "", "Path to the settlement CSV")
}
