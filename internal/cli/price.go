package cli

import (
	"github.com/spf13/cobra"
)

var priceCurrency string

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Fetch the current BTC spot price and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Price(cmd.Context(), priceCurrency)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceCurrency, "currency", "USD", "Fiat currency to quote against")
}
