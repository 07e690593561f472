package history

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// backfillStep is the assumed spacing between synthetic points.
	backfillStep = time.Minute
	// backfillVolBps is the per-step random-walk volatility in basis points.
	backfillVolBps = 5.0
	minutesPerDay  = 1440.0
)

// BackfillOptions anchor a synthetic series to the latest observed market
// state. Drift24hPct biases the walk so the fabricated past is consistent
// with the reported 24h change.
type BackfillOptions struct {
	Anchor      decimal.Decimal
	Drift24hPct decimal.Decimal
	Rand        *rand.Rand
}

// Backfill prepends synthetic samples for a currency until the series holds
// at least target points, and returns how many were added. Synthetic points
// are spaced one minute apart, dated strictly before the earliest real
// sample, and flagged Synthetic. Adding nothing is not an error: a series
// already at target is left untouched.
func (b *Book) Backfill(currency string, target int, opts BackfillOptions) int {
	if target > b.capacity {
		target = b.capacity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	series := b.series[currency]
	missing := target - len(series)
	if missing <= 0 {
		return 0
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	driftPerStep := perMinuteDrift(opts.Drift24hPct)
	vol := backfillVolBps / 10000.0

	base := opts.Anchor
	oldest := b.now().UTC()
	if len(series) > 0 {
		base = series[0].Price
		oldest = series[0].Time
	}

	synthetic := make([]Sample, 0, missing)
	price := base.InexactFloat64()
	for i := missing; i > 0; i-- {
		shock := rng.NormFloat64()*vol + driftPerStep
		price *= 1.0 + shock
		synthetic = append(synthetic, Sample{
			Time:      oldest.Add(-time.Duration(i) * backfillStep),
			Price:     decimal.NewFromFloat(price),
			Synthetic: true,
		})
	}

	merged := append(synthetic, series...)
	if over := len(merged) - b.capacity; over > 0 {
		merged = merged[over:]
	}
	b.series[currency] = merged
	return missing
}

// perMinuteDrift converts a 24h percent change into the equivalent compounded
// per-minute drift: (1 + pct/100)^(1/1440) - 1.
func perMinuteDrift(pct24h decimal.Decimal) float64 {
	growth := 1.0 + pct24h.InexactFloat64()/100.0
	if growth <= 0 {
		return 0
	}
	return math.Pow(growth, 1.0/minutesPerDay) - 1.0
}
