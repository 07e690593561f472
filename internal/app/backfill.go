package app

import (
	"context"
	"errors"
	"time"

	"btc-trend-watch/internal/history"
	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/storage"
)

// Backfill seeds synthetic history anchored at the live spot price, so a
// fresh deployment has enough points for the long SMA window from the first
// bucket. Synthetic rows are stored with a distinct status and never pretend
// to be observations.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.Points <= 0 {
		opts.Points = a.Config.Signal.LongWindow
	}
	currencies := opts.Currencies
	if len(currencies) == 0 {
		currencies = a.Config.Scheduler.Currencies
	}
	if len(currencies) == 0 {
		return errors.New("no currencies to backfill; pass --currency or set scheduler.currencies")
	}

	var store *storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		var closeStore func()
		var err error
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		defer closeStore()
	}

	fetcher := a.newFetcher()
	book := history.NewBook(a.Config.History.Capacity)

	seeded := 0
	failed := 0
	for _, currency := range currencies {
		cur, err := market.NormalizeCurrency(currency)
		if err != nil {
			return err
		}

		quote, err := fetcher.FetchQuote(ctx, cur)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("currency", cur).Msg("spot fetch failed; currency skipped")
			continue
		}

		added := book.Backfill(cur, opts.Points, history.BackfillOptions{
			Anchor:      quote.Price,
			Drift24hPct: quote.PercentChange24h,
		})
		samples := book.Recent(cur, time.Time{})

		if store != nil {
			for _, sample := range samples {
				if !sample.Synthetic {
					continue
				}
				row := storage.PriceSample{
					Bucket:          sample.Time.Truncate(a.Config.Scheduler.Interval),
					Currency:        cur,
					Price:           sample.Price,
					SyntheticPoints: 1,
					Status:          "synthetic",
					CreatedAt:       time.Now().UTC(),
				}
				if err := store.UpsertPriceSample(ctx, row); err != nil {
					failed++
					a.Logger.Error().Err(err).Str("currency", cur).Time("bucket", row.Bucket).Msg("persist synthetic sample failed")
				}
			}
		}

		seeded += added
		a.Logger.Info().Str("currency", cur).Int("points", added).Msg("synthetic history seeded")
	}

	a.Logger.Info().Int("seeded", seeded).Int("failed", failed).Msg("backfill finished")
	if failed > 0 {
		return errors.New("some currencies failed to backfill; check the logs")
	}
	return nil
}
