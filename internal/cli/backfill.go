package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"btc-trend-watch/internal/app"
)

var (
	backfillCurrencies []string
	backfillPoints     int
	backfillDryRun     bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed synthetic history anchored at the live spot price",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillPoints < 0 {
			return fmt.Errorf("--points cannot be negative")
		}

		opts := app.BackfillOptions{
			Currencies: backfillCurrencies,
			Points:     backfillPoints,
			DryRun:     backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringSliceVar(&backfillCurrencies, "currency", nil, "Currencies to seed (defaults to scheduler.currencies)")
	backfillCmd.Flags().IntVar(&backfillPoints, "points", 0, "Synthetic points per currency (defaults to the long SMA window)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage")
}
