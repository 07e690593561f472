package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"btc-trend-watch/internal/app"
)

var (
	trendCurrency     string
	trendShort        int
	trendLong         int
	trendThresholdBps float64
	trendLookback     int
	trendNoBackfill   bool
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Evaluate the SMA trend signal once and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trendThresholdBps < 0 {
			return fmt.Errorf("--threshold-bps cannot be negative")
		}

		opts := app.TrendOptions{
			Currency:        trendCurrency,
			ShortWindow:     trendShort,
			LongWindow:      trendLong,
			ThresholdBps:    trendThresholdBps,
			LookbackMinutes: trendLookback,
			NoBackfill:      trendNoBackfill,
		}

		return getApp().Trend(cmd.Context(), opts)
	},
}

func init() {
	trendCmd.Flags().StringVar(&trendCurrency, "currency", "USD", "Fiat currency to quote against")
	trendCmd.Flags().IntVar(&trendShort, "short", 0, "Short SMA window in samples (defaults to config)")
	trendCmd.Flags().IntVar(&trendLong, "long", 0, "Long SMA window in samples (defaults to config)")
	trendCmd.Flags().Float64Var(&trendThresholdBps, "threshold-bps", 0, "Neutral band half-width in basis points (defaults to config)")
	trendCmd.Flags().IntVar(&trendLookback, "lookback", 0, "Lookback window in minutes (defaults to config)")
	trendCmd.Flags().BoolVar(&trendNoBackfill, "no-backfill", false, "Fail instead of synthesizing history when data is short")
}
