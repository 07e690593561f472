package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/market"
)

// Show prints recent samples, and optionally recent signal transitions.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	currency, err := market.NormalizeCurrency(opts.Currency)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.ListRecentSamples(ctx, currency, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time (UTC)\tCurrency\tPrice\tSMA short\tSMA long\tSpread bps\tSignal\tStatus\tError")

		for _, sample := range samples {
			errMsg := ""
			if sample.Error != nil {
				errMsg = sanitizeInline(*sample.Error)
			}
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				sample.Bucket.UTC().Format(time.RFC3339),
				sample.Currency,
				formatDecimal(sample.Price, 2),
				formatDecimal(sample.SMAShort, 2),
				formatDecimal(sample.SMALong, 2),
				formatDecimal(sample.RatioBps, 2),
				sample.Signal,
				sample.Status,
				errMsg,
			)
		}

		writer.Flush()
	}

	if !opts.Events {
		return nil
	}

	events, err := store.ListRecentEvents(ctx, currency, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no signal events found")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCurrency\tPrev\tNew\tSpread bps\tThreshold bps\tChannels")

	for _, event := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			event.SampleTS.UTC().Format(time.RFC3339),
			event.Currency,
			event.PrevSignal,
			event.NewSignal,
			formatDecimal(event.RatioBps, 2),
			formatDecimal(event.ThresholdBps, 2),
			strings.Join(event.Channels, ","),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
