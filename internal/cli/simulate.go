package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateCurrency string
	simulateShort    float64
	simulateLong     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Classify a fabricated SMA pair and dispatch an alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateShort <= 0 || simulateLong <= 0 {
			return errors.New("--short and --long must be greater than 0")
		}

		short := decimal.NewFromFloat(simulateShort)
		long := decimal.NewFromFloat(simulateLong)
		return getApp().SimulateAlert(cmd.Context(), simulateCurrency, short, long)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCurrency, "currency", "USD", "Fiat currency to report against")
	simulateCmd.Flags().Float64Var(&simulateShort, "short", 0, "Short SMA value")
	simulateCmd.Flags().Float64Var(&simulateLong, "long", 0, "Long SMA value")
}
