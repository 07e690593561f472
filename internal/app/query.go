package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/service"
)

// Price fetches one spot quote and prints it as JSON. Pipeline errors are
// printed as structured error results, not process faults.
func (a *App) Price(ctx context.Context, currency string) error {
	svc, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	report, err := svc.Price(ctx, currency)
	if err != nil {
		return printJSON(service.Describe(err))
	}
	return printJSON(report)
}

// TrendOptions configure a one-shot trend evaluation.
type TrendOptions struct {
	Currency        string
	ShortWindow     int
	LongWindow      int
	ThresholdBps    float64
	LookbackMinutes int
	NoBackfill      bool
}

// Trend evaluates the trend signal once and prints it as JSON.
func (a *App) Trend(ctx context.Context, opts TrendOptions) error {
	svc, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	req := service.TrendRequest{
		Currency:        opts.Currency,
		ShortWindow:     opts.ShortWindow,
		LongWindow:      opts.LongWindow,
		LookbackMinutes: opts.LookbackMinutes,
	}
	if opts.ThresholdBps > 0 {
		req.ThresholdBps = decimal.NewFromFloat(opts.ThresholdBps)
	}
	if opts.NoBackfill {
		allow := false
		req.AllowBackfill = &allow
	}

	report, err := svc.Trend(ctx, req)
	if err != nil {
		return printJSON(service.Describe(err))
	}
	return printJSON(report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
