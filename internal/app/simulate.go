package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alerting"
	"btc-trend-watch/internal/market"
	"btc-trend-watch/internal/signal"
)

// SimulateAlert classifies a fabricated SMA pair and pushes the result
// through the configured alert channel. Useful for verifying delivery
// without waiting for a real crossover.
func (a *App) SimulateAlert(ctx context.Context, currency string, short, long decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	normalized, err := market.NormalizeCurrency(currency)
	if err != nil {
		return err
	}

	summary, err := signal.Compare(short, long, decimal.NewFromFloat(a.Config.Signal.ThresholdBps))
	if err != nil {
		return err
	}

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	notification := alerting.Notification{
		Bucket:         bucket,
		Currency:       normalized,
		Price:          long,
		SMAShort:       summary.Short,
		SMALong:        summary.Long,
		RatioBps:       summary.RatioBps,
		ThresholdBps:   summary.ThresholdBps,
		Signal:         string(summary.Label),
		PreviousSignal: "simulated",
		Note:           "simulated alert, not derived from live data",
		Channels:       []string{"telegram"},
	}

	if err := notifier.Notify(ctx, notification); err != nil {
		return err
	}

	a.Logger.Info().
		Str("currency", normalized).
		Str("signal", string(summary.Label)).
		Str("ratio_bps", summary.RatioBps.String()).
		Msg("simulated alert dispatched")
	return nil
}
